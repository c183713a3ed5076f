package config

import "time"

// ServerConfig is the root configuration for deltamesh-server.
type ServerConfig struct {
	Node        NodeSection        `koanf:"node"`
	Server      ServerSection      `koanf:"server"`
	Cluster     ClusterSection     `koanf:"cluster"`
	Replication ReplicationSection `koanf:"replication"`
	Log         LogSection         `koanf:"log"`
}

// NodeSection identifies this node and the application context it hosts.
type NodeSection struct {
	// ID is the unique node identifier. If empty, a random ID is
	// generated at startup.
	ID string `koanf:"id"`

	// ContextName is the replication context. Only nodes with the same
	// context exchange sessions.
	ContextName string `koanf:"context_name"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the admin and session HTTP server.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// ClusterSection configures membership and inter-node delivery.
type ClusterSection struct {
	// GossipAddr and GossipPort are the memberlist bind address.
	GossipAddr string `koanf:"gossip_addr"`
	GossipPort int    `koanf:"gossip_port"`

	// RPCAddr is the replication listener (host:port).
	RPCAddr string `koanf:"rpc_addr"`

	// AdvertiseRPCAddr is announced to peers. Empty means RPCAddr.
	AdvertiseRPCAddr string `koanf:"advertise_rpc_addr"`

	// Seeds are gossip addresses of existing members.
	// Format: ["192.168.1.10:7946", "192.168.1.11:7946"]
	Seeds []string `koanf:"seeds"`

	SendTimeout    time.Duration `koanf:"send_timeout"`
	AsyncQueueSize int           `koanf:"async_queue_size"`
	SendRetries    int           `koanf:"send_retries"`
}

// ReplicationSection configures the delta manager.
type ReplicationSection struct {
	// StateTransferTimeout bounds the startup handshake. Negative waits
	// indefinitely, zero does not wait.
	StateTransferTimeout time.Duration `koanf:"state_transfer_timeout"`

	SendAllSessions         bool          `koanf:"send_all_sessions"`
	SendAllSessionsSize     int           `koanf:"send_all_sessions_size"`
	SendAllSessionsWaitTime time.Duration `koanf:"send_all_sessions_wait_time"`
	StateTimestampDrop      bool          `koanf:"state_timestamp_drop"`

	NotifySessionListenersOnReplication   bool `koanf:"notify_session_listeners_on_replication"`
	NotifyContainerListenersOnReplication bool `koanf:"notify_container_listeners_on_replication"`

	EnableStatistics         bool `koanf:"enable_statistics"`
	ExpireSessionsOnShutdown bool `koanf:"expire_sessions_on_shutdown"`

	// SessionTimeout is the max inactive interval of new and mirrored
	// sessions. Negative disables idle expiry.
	SessionTimeout          time.Duration `koanf:"session_timeout"`
	ProcessExpiresFrequency time.Duration `koanf:"process_expires_frequency"`

	// BulkMaxRateMBps caps bulk transfer bandwidth. Zero is unlimited.
	BulkMaxRateMBps int `koanf:"bulk_max_rate_mbps"`

	SnapshotCompression       string `koanf:"snapshot_compression"`
	SnapshotCompressThreshold int    `koanf:"snapshot_compress_threshold"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
