package replication

import (
	"log/slog"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// Config configures a DeltaManager.
type Config struct {
	// Name is the application context name. Peers only exchange messages
	// between managers with the same name.
	Name string

	// StateTransferTimeout bounds the startup handshake. Negative waits
	// until a peer answers; zero does not wait at all.
	StateTransferTimeout time.Duration

	// SendAllSessions sends the whole session set as one ALL_DATA message.
	// When false, sessions go out in batches of SendAllSessionsSize with
	// SendAllSessionsWaitTime between batches.
	SendAllSessions         bool
	SendAllSessionsSize     int
	SendAllSessionsWaitTime time.Duration

	// StateTimestampDrop discards queued messages older than the transfer
	// epoch when the handshake ends.
	StateTimestampDrop bool

	// Listener notification for changes that arrive from peers.
	NotifySessionListenersOnReplication   bool
	NotifyContainerListenersOnReplication bool

	// EnableStatistics turns the per-event counters on.
	EnableStatistics bool

	// ExpireSessionsOnShutdown announces the expiry of primary sessions
	// when the manager stops.
	ExpireSessionsOnShutdown bool

	// BulkMaxRateBytesPerSec caps bulk transfer bandwidth. Zero is unlimited.
	BulkMaxRateBytesPerSec int64

	// SnapshotCompression selects the bulk payload codec: "none", "s2"
	// or "zstd".
	SnapshotCompression string

	// SnapshotCompressThreshold compresses bulk payloads at least this
	// large. Zero disables compression.
	SnapshotCompressThreshold int

	// SendTimeout bounds each acknowledged ALL_DATA send.
	SendTimeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		Name:                                  "default",
		StateTransferTimeout:                  60 * time.Second,
		SendAllSessions:                       true,
		SendAllSessionsSize:                   1000,
		SendAllSessionsWaitTime:               2 * time.Second,
		StateTimestampDrop:                    true,
		NotifySessionListenersOnReplication:   true,
		NotifyContainerListenersOnReplication: true,
		EnableStatistics:                      true,
		ExpireSessionsOnShutdown:              false,
		SnapshotCompression:                   CompressionZstd,
		SnapshotCompressThreshold:             64 * 1024,
		SendTimeout:                           30 * time.Second,
	}
}

// Validate checks the configuration for out-of-range values.
func (c Config) Validate() error {
	switch {
	case c.Name == "":
		return domain.ErrInvalidConfig.WithDetails("name is required")
	case c.SendAllSessionsSize <= 0:
		return domain.ErrInvalidConfig.WithDetails("send all sessions size must be positive")
	case c.SendAllSessionsWaitTime < 0:
		return domain.ErrInvalidConfig.WithDetails("send all sessions wait time must not be negative")
	case c.BulkMaxRateBytesPerSec < 0:
		return domain.ErrInvalidConfig.WithDetails("bulk max rate must not be negative")
	case c.SnapshotCompressThreshold < 0:
		return domain.ErrInvalidConfig.WithDetails("snapshot compress threshold must not be negative")
	case c.SnapshotCompression != "" && !validCompression(c.SnapshotCompression):
		return domain.ErrInvalidConfig.WithDetails("unknown snapshot compression " + c.SnapshotCompression)
	case c.SendTimeout <= 0:
		return domain.ErrInvalidConfig.WithDetails("send timeout must be positive")
	}
	return nil
}
