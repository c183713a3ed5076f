package replication

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
	"github.com/yndnr/deltamesh-go/internal/core/service"
)

// maxBulkBurst caps a single rate limiter reservation.
const maxBulkBurst = 1 << 20

type handlerFunc func(msg *Message, sender Member) error

// DeltaManager replicates session changes to the other cluster members.
type DeltaManager struct {
	cfg      Config
	sessions *service.SessionService
	channel  Channel
	logger   *slog.Logger
	stats    *Statistics
	codec    SnapshotCodec
	limiter  *rate.Limiter
	handlers [numEventTypes]handlerFunc
	transfer *transfer
	now      func() time.Time

	started atomic.Bool
	ready   atomic.Bool
	mu      sync.Mutex
	runCtx  context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a DeltaManager for cfg.Name on top of sessions. The caller
// must route inbound messages for cfg.Name to MessageReceived.
func New(cfg Config, sessions *service.SessionService, ch Channel) (*DeltaManager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sessions == nil || ch == nil {
		return nil, domain.ErrMissingArgument.WithDetails("sessions and channel are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := &DeltaManager{
		cfg:      cfg,
		sessions: sessions,
		channel:  ch,
		logger:   logger.With("component", "replication", "context", cfg.Name),
		stats:    newStatistics(cfg.EnableStatistics),
		codec:    SnapshotCodec{Compression: cfg.SnapshotCompression, Threshold: cfg.SnapshotCompressThreshold},
		transfer: newTransfer(),
		now:      time.Now,
		runCtx:   context.Background(),
	}
	if cfg.BulkMaxRateBytesPerSec > 0 {
		burst := int(min(cfg.BulkMaxRateBytesPerSec, maxBulkBurst))
		m.limiter = rate.NewLimiter(rate.Limit(cfg.BulkMaxRateBytesPerSec), burst)
	}
	m.handlers = [numEventTypes]handlerFunc{
		EventGetAll:           m.handleGetAll,
		EventAllData:          m.handleAllData,
		EventAllDataComplete:  m.handleAllDataComplete,
		EventSessionCreated:   m.handleSessionCreated,
		EventSessionExpired:   m.handleSessionExpired,
		EventSessionAccessed:  m.handleSessionAccessed,
		EventSessionDelta:     m.handleSessionDelta,
		EventChangeSessionID:  m.handleChangeSessionID,
		EventNoContextManager: m.handleNoContextManager,
	}
	sessions.OnExpire(m.idleExpired)
	return m, nil
}

// Name returns the application context name.
func (m *DeltaManager) Name() string {
	return m.cfg.Name
}

// Sessions returns the underlying session service.
func (m *DeltaManager) Sessions() *service.SessionService {
	return m.sessions
}

// Start begins the expiry sweep and, when the cluster has members, runs
// the state-transfer handshake. It returns once the handshake reached a
// terminal state and the queued messages were replayed. A snapshot that
// fails to load is reported as an error; the manager keeps running.
func (m *DeltaManager) Start(ctx context.Context) error {
	if !m.started.CompareAndSwap(false, true) {
		return domain.ErrManagerStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Lock()
	m.runCtx, m.cancel = runCtx, cancel
	m.mu.Unlock()
	m.transfer.reset()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.sessions.Run(runCtx)
	}()

	m.logger.Info("delta manager starting",
		"send_all_sessions", m.cfg.SendAllSessions,
		"state_transfer_timeout", m.cfg.StateTransferTimeout,
		"statistics", m.stats.Enabled())
	err := m.getAllClusterSessions(ctx)
	m.ready.Store(true)
	return err
}

// Stop expires every valid session locally and stops background work.
// Expiry of primary sessions is broadcast only with
// ExpireSessionsOnShutdown.
func (m *DeltaManager) Stop(ctx context.Context) error {
	if !m.started.Load() {
		return domain.ErrManagerNotStarted
	}
	m.ready.Store(false)

	expired := 0
	for _, s := range m.sessions.Sessions() {
		if !s.IsValid() {
			continue
		}
		if m.expire(ctx, s, m.cfg.ExpireSessionsOnShutdown) {
			expired++
		}
	}

	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	m.started.Store(false)

	m.logger.Info("delta manager stopped", "expired", expired)
	return nil
}

func (m *DeltaManager) runContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runCtx
}

// CreateSession creates a primary session. With distribute set and peers
// present, SESSION_CREATED is broadcast carrying the creation time.
func (m *DeltaManager) CreateSession(ctx context.Context, id string, distribute bool) (*domain.Session, error) {
	s, err := m.sessions.CreateSession(id)
	if err != nil {
		return nil, err
	}
	if distribute && len(m.channel.Members()) > 0 {
		m.Send(ctx, NewMessage(m.cfg.Name, EventSessionCreated, s.ID(), nil, s.CreationTime()))
	}
	return s, nil
}

// RequestCompleted decides what the cluster must learn about the request
// that just finished on session id. In priority order: pending attribute
// changes go out as SESSION_DELTA; otherwise a session this node does not
// own yet, or whose peers have not heard about it within its max inactive
// interval, yields SESSION_ACCESSED. Unless expires is set the node takes
// ownership. The message, if any, is returned for the caller to Send.
func (m *DeltaManager) RequestCompleted(id string, expires bool) *Message {
	s, err := m.sessions.FindSession(id)
	if err != nil {
		m.logger.Debug("request completed for unknown session", "session_id", id)
		return nil
	}

	var t EventType
	var payload []byte
	produced := false

	diff, err := s.TakeDiff()
	if err != nil {
		m.logger.Error("failed to serialize session delta",
			"session_id", id,
			"error", err)
		return nil
	}
	if diff != nil {
		t, payload, produced = EventSessionDelta, diff, true
	} else if !expires && !s.IsPrimary() {
		t, produced = EventSessionAccessed, true
	}

	if !expires && !s.IsPrimary() {
		s.SetPrimary(true)
	}

	now := m.now()
	if !produced && !expires {
		maxInactive := s.MaxInactive()
		sinceReplicated := time.Duration(now.UnixMilli()-s.LastReplicatedTime()) * time.Millisecond
		if maxInactive >= 0 && sinceReplicated > maxInactive {
			t, produced = EventSessionAccessed, true
		}
	}
	if !produced {
		return nil
	}

	s.SetLastReplicatedTime(now.UnixMilli())
	return NewMessage(m.cfg.Name, t, s.ID(), payload, now.UnixMilli())
}

// Send broadcasts msg. A nil msg is ignored. Failures are logged and
// never returned: replication does not fail the request behind it.
func (m *DeltaManager) Send(ctx context.Context, msg *Message) {
	if msg == nil {
		return
	}
	m.stats.countSent(msg.Type())
	if err := m.channel.Send(ctx, msg); err != nil {
		m.logger.Warn("failed to send replication message",
			"event", msg.Type(),
			"session_id", msg.SessionID(),
			"error", err)
	}
}

// ChangeSessionID renames s and, with notify set and peers present,
// broadcasts CHANGE_SESSION_ID keyed by the old ID.
func (m *DeltaManager) ChangeSessionID(ctx context.Context, s *domain.Session, newID string, notify bool) error {
	oldID := s.ID()
	if err := m.sessions.ChangeSessionID(s, newID, true, true); err != nil {
		return err
	}
	if notify && len(m.channel.Members()) > 0 {
		m.Send(ctx, NewMessage(m.cfg.Name, EventChangeSessionID, oldID, []byte(newID), m.now().UnixMilli()))
	}
	return nil
}

// RotateSessionID gives s a fresh ID, announces it and returns it.
func (m *DeltaManager) RotateSessionID(ctx context.Context, s *domain.Session) (string, error) {
	newID, err := domain.GenerateSessionID()
	if err != nil {
		return "", err
	}
	if err := m.ChangeSessionID(ctx, s, newID, true); err != nil {
		return "", err
	}
	return newID, nil
}

// ExpireSession expires session id when this node owns it and broadcasts
// SESSION_EXPIRED. Mirrored sessions are left to their owner.
func (m *DeltaManager) ExpireSession(ctx context.Context, id string) bool {
	s, err := m.sessions.FindSession(id)
	if err != nil || !s.IsValid() || !s.IsPrimary() {
		return false
	}
	return m.expire(ctx, s, true)
}

// ExpireAllLocalSessions expires every valid session this node owns and
// returns how many were expired.
func (m *DeltaManager) ExpireAllLocalSessions(ctx context.Context) int {
	start := time.Now()
	direct, indirect := 0, 0
	for _, s := range m.sessions.Sessions() {
		if !s.IsPrimary() {
			continue
		}
		if s.IsValid() && m.expire(ctx, s, true) {
			direct++
		} else {
			indirect++
		}
	}
	m.logger.Debug("expired local sessions",
		"expired", direct,
		"skipped", indirect,
		"duration", time.Since(start))
	return direct
}

// Invalidate expires session id regardless of ownership and broadcasts
// SESSION_EXPIRED, so the owner and every other mirror drop it as well.
func (m *DeltaManager) Invalidate(ctx context.Context, id string) error {
	s, err := m.sessions.FindSession(id)
	if err != nil {
		return err
	}
	if !m.sessions.Expire(s, true) {
		return domain.ErrSessionInvalid.WithDetails(id)
	}
	m.sendExpired(ctx, id)
	return nil
}

func (m *DeltaManager) expire(ctx context.Context, s *domain.Session, notifyCluster bool) bool {
	primary := s.IsPrimary()
	if !m.sessions.Expire(s, true) {
		return false
	}
	if primary && notifyCluster {
		m.sendExpired(ctx, s.ID())
	}
	return true
}

// idleExpired runs after the sweeper expired s.
func (m *DeltaManager) idleExpired(s *domain.Session) {
	if s.IsPrimary() && m.started.Load() {
		m.sendExpired(m.runContext(), s.ID())
	}
}

func (m *DeltaManager) sendExpired(ctx context.Context, id string) {
	if len(m.channel.Members()) == 0 {
		return
	}
	m.Send(ctx, NewMessage(m.cfg.Name, EventSessionExpired, id, nil, m.now().UnixMilli()))
}

// Started reports whether Start ran and Stop has not.
func (m *DeltaManager) Started() bool {
	return m.started.Load()
}

// Ready reports whether Start finished its state transfer, whatever the
// outcome, and Stop has not been called since.
func (m *DeltaManager) Ready() bool {
	return m.ready.Load()
}

// State returns the handshake state.
func (m *DeltaManager) State() TransferState {
	return TransferState(m.transfer.state.Load())
}

// StateTransferred reports whether ALL_DATA_COMPLETE has been received.
func (m *DeltaManager) StateTransferred() bool {
	return m.transfer.transferred.Load()
}

// NoContextManagerReceived reports whether a peer answered GET_ALL with
// NO_CONTEXT_MANAGER.
func (m *DeltaManager) NoContextManagerReceived() bool {
	return m.transfer.noContext.Load()
}

// ReceivedQueueSize returns the number of messages held back by an
// in-progress transfer.
func (m *DeltaManager) ReceivedQueueSize() int {
	return m.transfer.queueLen()
}

// Statistics returns the replication counters.
func (m *DeltaManager) Statistics() *Statistics {
	return m.stats
}

// ResetStatistics zeroes the replication counters.
func (m *DeltaManager) ResetStatistics() {
	m.stats.Reset()
	m.logger.Info("replication statistics reset")
}

// SetStatisticsEnabled turns counter collection on or off.
func (m *DeltaManager) SetStatisticsEnabled(v bool) {
	if m.stats.Enabled() != v {
		m.logger.Info("replication statistics toggled", "enabled", v)
	}
	m.stats.SetEnabled(v)
}

// Members returns the current peers.
func (m *DeltaManager) Members() []Member {
	return m.channel.Members()
}

// getAllClusterSessions runs the state-transfer handshake against the
// first member. The wait cannot be cancelled; it ends on completion, on
// NO_CONTEXT_MANAGER or on StateTransferTimeout.
func (m *DeltaManager) getAllClusterSessions(ctx context.Context) error {
	members := m.channel.Members()
	if len(members) == 0 {
		m.logger.Info("no cluster members, skipping state transfer")
		return nil
	}
	master := members[0]

	start := m.now()
	done := m.transfer.begin(start.UnixMilli())

	m.logger.Info("requesting session state", "master", master.String())
	msg := NewMessage(m.cfg.Name, EventGetAll, SessionIDGetAll, nil, start.UnixMilli())
	m.stats.countSent(EventGetAll)
	if err := m.channel.SendTo(ctx, msg, master, SendOptions{Mode: SendAsync}); err != nil {
		m.logger.Warn("failed to request session state",
			"master", master.String(),
			"error", err)
	}

	state := m.transfer.await(done, m.cfg.StateTransferTimeout)
	elapsed := time.Since(start)
	switch state {
	case TransferComplete:
		m.logger.Info("session state transferred",
			"master", master.String(),
			"sessions", m.sessions.Count(),
			"duration", elapsed)
	case TransferNoPeerContext:
		m.logger.Warn("master has no matching context, starting without session state",
			"master", master.String(),
			"duration", elapsed)
	default:
		m.stats.countNoStateTransferred()
		m.logger.Error("session state transfer timed out",
			"master", master.String(),
			"timeout", m.cfg.StateTransferTimeout)
	}

	return m.drainQueue()
}

// drainQueue replays messages queued during the transfer in arrival
// order. Snapshot load failures are collected and returned.
func (m *DeltaManager) drainQueue() error {
	var errs []error
	replayed, dropped := 0, 0
	for {
		batch := m.transfer.take()
		if len(batch) == 0 {
			break
		}
		for _, q := range batch {
			if m.cfg.StateTimestampDrop && m.transfer.stale(q.msg) {
				dropped++
				m.logger.Warn("dropping stale queued message",
					"event", q.msg.Type(),
					"session_id", q.msg.SessionID(),
					"timestamp", q.msg.Timestamp(),
					"epoch", m.transfer.epoch.Load())
				continue
			}
			replayed++
			if err := m.handle(q.msg, q.from); errors.Is(err, domain.ErrSnapshotFormat) {
				errs = append(errs, err)
			}
		}
	}
	if replayed > 0 || dropped > 0 {
		m.logger.Info("replayed queued messages", "replayed", replayed, "dropped", dropped)
	}
	return errors.Join(errs...)
}
