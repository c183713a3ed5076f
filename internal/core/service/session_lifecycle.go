package service

import (
	"context"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// Expire invalidates and unregisters session. It returns false when the
// session was already invalid. Session listeners are told only when
// notify is set.
func (s *SessionService) Expire(session *domain.Session, notify bool) bool {
	if !session.Expire() {
		return false
	}
	s.repo.Remove(session)
	s.expired.Add(1)
	if notify {
		s.fireDestroyed(session)
	}
	return true
}

// ChangeSessionID moves session to newID in the registry and fires the
// requested listener notifications.
func (s *SessionService) ChangeSessionID(session *domain.Session, newID string, notifySessionListeners, notifyContainerListeners bool) error {
	if !domain.IsValidSessionID(newID) {
		return domain.ErrSessionIDInvalid.WithDetails(newID)
	}
	oldID := session.ID()
	if err := s.repo.Rename(oldID, newID); err != nil {
		return err
	}
	session.SetID(newID)

	s.mu.RLock()
	sessionListeners := s.sessionListeners
	containerListeners := s.containerListeners
	s.mu.RUnlock()

	if notifySessionListeners {
		for _, l := range sessionListeners {
			l.SessionIDChanged(session, oldID)
		}
	}
	if notifyContainerListeners {
		ev := ContainerEvent{Type: ContainerEventChangeSessionID, OldID: oldID, NewID: newID}
		for _, l := range containerListeners {
			l.ContainerEvent(ev)
		}
	}
	return nil
}

// RotateSessionID gives session a freshly generated ID and returns it.
func (s *SessionService) RotateSessionID(session *domain.Session) (string, error) {
	newID, err := domain.GenerateSessionID()
	if err != nil {
		return "", err
	}
	if err := s.ChangeSessionID(session, newID, true, true); err != nil {
		return "", err
	}
	return newID, nil
}

// ProcessExpires expires every valid session idle past its max inactive
// interval at now and returns how many were expired.
func (s *SessionService) ProcessExpires(now time.Time) int {
	var idle []*domain.Session
	s.repo.Range(func(session *domain.Session) bool {
		if session.IsValid() && session.IsExpired(now) {
			idle = append(idle, session)
		}
		return true
	})

	s.mu.RLock()
	hooks := s.expireHooks
	s.mu.RUnlock()

	count := 0
	for _, session := range idle {
		if !s.Expire(session, true) {
			continue
		}
		count++
		for _, fn := range hooks {
			fn(session)
		}
	}
	return count
}

// Run sweeps idle sessions every ExpiryInterval until ctx is done.
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ExpiryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			start := time.Now()
			if n := s.ProcessExpires(now); n > 0 {
				s.logger.Debug("expired idle sessions",
					"count", n,
					"active", s.repo.Count(),
					"duration", time.Since(start))
			}
		}
	}
}
