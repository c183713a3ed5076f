package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
	"github.com/yndnr/deltamesh-go/internal/core/service"
	"github.com/yndnr/deltamesh-go/internal/server/clusterserver"
)

// ResolveNodeID returns the configured node ID, generating one when empty.
func ResolveNodeID(cfg *ServerConfig, logger *slog.Logger) (string, error) {
	if cfg.Node.ID != "" {
		return cfg.Node.ID, nil
	}
	id, err := generateNodeID()
	if err != nil {
		return "", fmt.Errorf("generate node ID: %w", err)
	}
	if logger != nil {
		logger.Info("generated cluster node ID", "node_id", id)
	}
	cfg.Node.ID = id
	return id, nil
}

// AdvertiseAddr returns the replication address announced to peers.
func (c *ClusterSection) AdvertiseAddr() string {
	if c.AdvertiseRPCAddr != "" {
		return c.AdvertiseRPCAddr
	}
	return c.RPCAddr
}

// ToReplicationConfig maps the replication section to manager settings.
func ToReplicationConfig(cfg *ServerConfig, logger *slog.Logger) replication.Config {
	r := cfg.Replication
	out := replication.DefaultConfig()
	out.Name = cfg.Node.ContextName
	out.StateTransferTimeout = r.StateTransferTimeout
	out.SendAllSessions = r.SendAllSessions
	out.SendAllSessionsSize = r.SendAllSessionsSize
	out.SendAllSessionsWaitTime = r.SendAllSessionsWaitTime
	out.StateTimestampDrop = r.StateTimestampDrop
	out.NotifySessionListenersOnReplication = r.NotifySessionListenersOnReplication
	out.NotifyContainerListenersOnReplication = r.NotifyContainerListenersOnReplication
	out.EnableStatistics = r.EnableStatistics
	out.ExpireSessionsOnShutdown = r.ExpireSessionsOnShutdown
	out.BulkMaxRateBytesPerSec = int64(r.BulkMaxRateMBps) * 1024 * 1024
	out.SnapshotCompression = r.SnapshotCompression
	out.SnapshotCompressThreshold = r.SnapshotCompressThreshold
	out.SendTimeout = cfg.Cluster.SendTimeout
	out.Logger = logger
	return out
}

// ToSessionConfig maps session expiry settings.
func ToSessionConfig(cfg *ServerConfig, logger *slog.Logger) service.Config {
	return service.Config{
		SessionTimeout: cfg.Replication.SessionTimeout,
		ExpiryInterval: cfg.Replication.ProcessExpiresFrequency,
		Logger:         logger,
	}
}

// ToTransportConfig maps delivery settings for node nodeID.
func ToTransportConfig(cfg *ServerConfig, nodeID string, logger *slog.Logger) clusterserver.TransportConfig {
	out := clusterserver.DefaultTransportConfig()
	out.NodeID = nodeID
	out.AdvertiseAddr = cfg.Cluster.AdvertiseAddr()
	out.QueueSize = cfg.Cluster.AsyncQueueSize
	out.SendTimeout = cfg.Cluster.SendTimeout
	out.MaxAttempts = cfg.Cluster.SendRetries + 1
	out.Logger = logger
	return out
}

// ToDiscoveryConfig maps gossip settings for node nodeID.
func ToDiscoveryConfig(cfg *ServerConfig, nodeID string, logger *slog.Logger) clusterserver.DiscoveryConfig {
	return clusterserver.DiscoveryConfig{
		NodeID:          nodeID,
		BindAddr:        cfg.Cluster.GossipAddr,
		BindPort:        cfg.Cluster.GossipPort,
		ReplicationAddr: cfg.Cluster.AdvertiseAddr(),
		SeedNodes:       cfg.Cluster.Seeds,
		Logger:          logger,
	}
}

// generateNodeID generates a unique node identifier.
//
// Format: dmnode-<16 hex chars> (e.g., "dmnode-a1b2c3d4e5f67890")
func generateNodeID() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return "dmnode-" + hex.EncodeToString(buf), nil
}
