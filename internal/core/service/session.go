package service

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// SessionRepository defines the storage interface for sessions.
// internal/storage/memory.Store implements it.
type SessionRepository interface {
	Get(id string) (*domain.Session, bool)
	Insert(session *domain.Session) error
	Put(session *domain.Session) (*domain.Session, bool)
	Remove(session *domain.Session) bool
	Rename(oldID, newID string) error
	List() []*domain.Session
	Range(fn func(*domain.Session) bool)
	Count() int
}

// SessionListener observes session lifecycle events.
type SessionListener interface {
	SessionCreated(s *domain.Session)
	SessionDestroyed(s *domain.Session)
	SessionIDChanged(s *domain.Session, oldID string)
}

// ContainerEvent is a container-level notification.
type ContainerEvent struct {
	Type  string
	OldID string
	NewID string
}

// ContainerEventChangeSessionID is fired when a session ID changes.
const ContainerEventChangeSessionID = "changeSessionId"

// ContainerListener observes container-level events.
type ContainerListener interface {
	ContainerEvent(ev ContainerEvent)
}

// SessionListenerFuncs adapts plain functions to SessionListener.
// Nil fields are skipped.
type SessionListenerFuncs struct {
	Created   func(s *domain.Session)
	Destroyed func(s *domain.Session)
	IDChanged func(s *domain.Session, oldID string)
}

func (f SessionListenerFuncs) SessionCreated(s *domain.Session) {
	if f.Created != nil {
		f.Created(s)
	}
}

func (f SessionListenerFuncs) SessionDestroyed(s *domain.Session) {
	if f.Destroyed != nil {
		f.Destroyed(s)
	}
}

func (f SessionListenerFuncs) SessionIDChanged(s *domain.Session, oldID string) {
	if f.IDChanged != nil {
		f.IDChanged(s, oldID)
	}
}

// Config holds SessionService settings.
type Config struct {
	// SessionTimeout is the max inactive interval given to new sessions.
	// Negative disables idle expiry.
	SessionTimeout time.Duration

	// ExpiryInterval is how often Run sweeps for idle sessions.
	ExpiryInterval time.Duration

	Logger *slog.Logger
}

// DefaultConfig returns the default service configuration.
func DefaultConfig() Config {
	return Config{
		SessionTimeout: 30 * time.Minute,
		ExpiryInterval: 10 * time.Second,
	}
}

// SessionService handles session lifecycle operations.
type SessionService struct {
	repo   SessionRepository
	cfg    Config
	logger *slog.Logger

	mu                 sync.RWMutex
	sessionListeners   []SessionListener
	containerListeners []ContainerListener
	expireHooks        []func(*domain.Session)

	created atomic.Int64
	expired atomic.Int64
}

// NewSessionService creates a new SessionService.
func NewSessionService(repo SessionRepository, cfg Config) *SessionService {
	if cfg.ExpiryInterval <= 0 {
		cfg.ExpiryInterval = DefaultConfig().ExpiryInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		repo:   repo,
		cfg:    cfg,
		logger: logger.With("component", "session"),
	}
}

// SessionTimeout returns the max inactive interval for new sessions.
func (s *SessionService) SessionTimeout() time.Duration {
	return s.cfg.SessionTimeout
}

// AddSessionListener registers a session listener.
func (s *SessionService) AddSessionListener(l SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionListeners = append(s.sessionListeners, l)
}

// AddContainerListener registers a container listener.
func (s *SessionService) AddContainerListener(l ContainerListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containerListeners = append(s.containerListeners, l)
}

// OnExpire registers fn to run for every session the background sweep
// expires, after the session has been invalidated and unregistered.
func (s *SessionService) OnExpire(fn func(*domain.Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireHooks = append(s.expireHooks, fn)
}

// CreateSession creates and registers a locally owned session.
// An empty id generates a new one. The session starts valid and primary.
func (s *SessionService) CreateSession(id string) (*domain.Session, error) {
	if id == "" {
		var err error
		if id, err = domain.GenerateSessionID(); err != nil {
			return nil, err
		}
	}
	if !domain.IsValidSessionID(id) {
		return nil, domain.ErrSessionIDInvalid.WithDetails(id)
	}

	session := domain.NewSession(id)
	session.SetMaxInactiveLocal(s.cfg.SessionTimeout)
	session.SetValid(true)
	session.SetPrimary(true)

	if err := s.repo.Insert(session); err != nil {
		return nil, err
	}
	s.created.Add(1)
	s.fireCreated(session)
	return session, nil
}

// Add registers session, replacing any session with the same ID. It
// returns the replaced session, if any. Listeners are told about the new
// session only when notify is set.
func (s *SessionService) Add(session *domain.Session, notify bool) (*domain.Session, bool) {
	prev, replaced := s.repo.Put(session)
	if notify {
		s.fireCreated(session)
	}
	return prev, replaced
}

// FindSession returns the session registered under id.
func (s *SessionService) FindSession(id string) (*domain.Session, error) {
	session, ok := s.repo.Get(id)
	if !ok {
		return nil, domain.ErrSessionNotFound.WithDetails(id)
	}
	return session, nil
}

// Sessions returns all registered sessions ordered by ID.
func (s *SessionService) Sessions() []*domain.Session {
	return s.repo.List()
}

// Count returns the number of registered sessions.
func (s *SessionService) Count() int {
	return s.repo.Count()
}

// CreatedCount returns the number of sessions created locally.
func (s *SessionService) CreatedCount() int64 {
	return s.created.Load()
}

// ExpiredCount returns the number of sessions expired on this node.
func (s *SessionService) ExpiredCount() int64 {
	return s.expired.Load()
}

func (s *SessionService) fireCreated(session *domain.Session) {
	s.mu.RLock()
	listeners := s.sessionListeners
	s.mu.RUnlock()
	for _, l := range listeners {
		l.SessionCreated(session)
	}
}

func (s *SessionService) fireDestroyed(session *domain.Session) {
	s.mu.RLock()
	listeners := s.sessionListeners
	s.mu.RUnlock()
	for _, l := range listeners {
		l.SessionDestroyed(session)
	}
}
