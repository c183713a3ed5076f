package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
)

var (
	validLogLevels    = []string{"debug", "info", "warn", "error"}
	validLogFormats   = []string{"json", "text"}
	validCompressions = []string{"", "none", "s2", "zstd"}
)

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Node.ContextName == "" {
		return errors.New("node.context_name is required")
	}
	if err := verifyAddr("server.http.addr", cfg.Server.HTTP.Addr); err != nil {
		return err
	}
	if err := verifyCluster(&cfg.Cluster); err != nil {
		return err
	}
	if err := verifyReplication(&cfg.Replication); err != nil {
		return err
	}
	if !slices.Contains(validLogLevels, cfg.Log.Level) {
		return fmt.Errorf("log.level %q is not one of %v", cfg.Log.Level, validLogLevels)
	}
	if !slices.Contains(validLogFormats, cfg.Log.Format) {
		return fmt.Errorf("log.format %q is not one of %v", cfg.Log.Format, validLogFormats)
	}
	return nil
}

func verifyCluster(cfg *ClusterSection) error {
	if cfg.GossipPort < 0 || cfg.GossipPort > 65535 {
		return fmt.Errorf("cluster.gossip_port %d out of range", cfg.GossipPort)
	}
	if err := verifyAddr("cluster.rpc_addr", cfg.RPCAddr); err != nil {
		return err
	}
	if cfg.AdvertiseRPCAddr != "" {
		if err := verifyAddr("cluster.advertise_rpc_addr", cfg.AdvertiseRPCAddr); err != nil {
			return err
		}
	}
	if cfg.SendTimeout <= 0 {
		return errors.New("cluster.send_timeout must be positive")
	}
	if cfg.AsyncQueueSize <= 0 {
		return errors.New("cluster.async_queue_size must be positive")
	}
	if cfg.SendRetries < 0 {
		return errors.New("cluster.send_retries must not be negative")
	}
	return nil
}

func verifyReplication(cfg *ReplicationSection) error {
	if cfg.SendAllSessionsSize <= 0 {
		return errors.New("replication.send_all_sessions_size must be positive")
	}
	if cfg.SendAllSessionsWaitTime < 0 {
		return errors.New("replication.send_all_sessions_wait_time must not be negative")
	}
	if cfg.ProcessExpiresFrequency <= 0 {
		return errors.New("replication.process_expires_frequency must be positive")
	}
	if cfg.BulkMaxRateMBps < 0 {
		return errors.New("replication.bulk_max_rate_mbps must not be negative")
	}
	if cfg.SnapshotCompressThreshold < 0 {
		return errors.New("replication.snapshot_compress_threshold must not be negative")
	}
	if !slices.Contains(validCompressions, cfg.SnapshotCompression) {
		return fmt.Errorf("replication.snapshot_compression %q is not supported", cfg.SnapshotCompression)
	}
	return nil
}

func verifyAddr(field, addr string) error {
	if addr == "" {
		return fmt.Errorf("%s is required", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}
