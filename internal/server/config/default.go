package config

import "time"

// Default configuration values.
const (
	DefaultContextName = "default"

	DefaultHTTPAddr   = "127.0.0.1:8080"
	DefaultGossipAddr = "0.0.0.0"
	DefaultGossipPort = 7946
	DefaultRPCAddr    = "127.0.0.1:7100"

	DefaultSendTimeout    = 10 * time.Second
	DefaultAsyncQueueSize = 1024
	DefaultSendRetries    = 3

	DefaultStateTransferTimeout    = 60 * time.Second
	DefaultSendAllSessionsSize     = 1000
	DefaultSendAllSessionsWaitTime = 2 * time.Second
	DefaultSessionTimeout          = 30 * time.Minute
	DefaultProcessExpiresFrequency = 10 * time.Second
	DefaultSnapshotCompression     = "zstd"
	DefaultCompressThreshold       = 64 * 1024

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Node: NodeSection{
			ContextName: DefaultContextName,
		},
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr: DefaultHTTPAddr,
			},
		},
		Cluster: ClusterSection{
			GossipAddr:     DefaultGossipAddr,
			GossipPort:     DefaultGossipPort,
			RPCAddr:        DefaultRPCAddr,
			SendTimeout:    DefaultSendTimeout,
			AsyncQueueSize: DefaultAsyncQueueSize,
			SendRetries:    DefaultSendRetries,
		},
		Replication: ReplicationSection{
			StateTransferTimeout:                  DefaultStateTransferTimeout,
			SendAllSessions:                       true,
			SendAllSessionsSize:                   DefaultSendAllSessionsSize,
			SendAllSessionsWaitTime:               DefaultSendAllSessionsWaitTime,
			StateTimestampDrop:                    true,
			NotifySessionListenersOnReplication:   true,
			NotifyContainerListenersOnReplication: true,
			EnableStatistics:                      true,
			SessionTimeout:                        DefaultSessionTimeout,
			ProcessExpiresFrequency:               DefaultProcessExpiresFrequency,
			SnapshotCompression:                   DefaultSnapshotCompression,
			SnapshotCompressThreshold:             DefaultCompressThreshold,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
