package replication

import (
	"fmt"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// MessageReceived is the inbound entry point. While a state transfer is in
// progress replication traffic is queued; everything else is dispatched
// immediately. It never panics and never returns an error: failures are
// logged per message.
func (m *DeltaManager) MessageReceived(msg *Message, sender Member) {
	if msg == nil {
		return
	}
	if !m.started.Load() {
		m.logger.Debug("manager not started, dropping message", "event", msg.Type())
		return
	}
	if msg.ContextName() != m.cfg.Name {
		m.logger.Debug("message for another context",
			"event", msg.Type(),
			"target", msg.ContextName())
		return
	}
	if msg.Type().queuedDuringTransfer() && m.transfer.enqueue(msg, sender) {
		m.logger.Debug("queued message during state transfer",
			"event", msg.Type(),
			"session_id", msg.SessionID())
		return
	}
	_ = m.handle(msg, sender)
}

// handle dispatches msg and logs any failure. Panics are recovered so one
// bad message cannot stop the delivery goroutine.
func (m *DeltaManager) handle(msg *Message, sender Member) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = domain.ErrInternalServer.WithCause(fmt.Errorf("panic: %v", r))
		}
		if err != nil {
			m.logger.Error("failed to handle replication message",
				"event", msg.Type(),
				"session_id", msg.SessionID(),
				"sender", sender.String(),
				"error", err)
		}
	}()
	return m.dispatch(msg, sender)
}

func (m *DeltaManager) dispatch(msg *Message, sender Member) error {
	t := msg.Type()
	if !t.Valid() {
		return domain.ErrMessageFormat.WithDetails(t.String())
	}
	m.stats.countReceived(t)
	return m.handlers[t](msg, sender)
}

// lookup returns the target session, or nil when it is gone. Missing
// targets are normal races with local invalidation.
func (m *DeltaManager) lookup(msg *Message) *domain.Session {
	s, err := m.sessions.FindSession(msg.SessionID())
	if err != nil {
		m.logger.Debug("replication target not found",
			"event", msg.Type(),
			"session_id", msg.SessionID())
		return nil
	}
	return s
}

func (m *DeltaManager) handleGetAll(msg *Message, sender Member) error {
	if sender.IsZero() {
		return domain.ErrMemberUnknown.WithDetails("GET_ALL without sender")
	}
	m.logger.Info("session state requested", "from", sender.String())
	return m.sendSessions(m.runContext(), sender)
}

// handleAllData loads a snapshot batch. The batch is decoded in full
// before any session is registered.
func (m *DeltaManager) handleAllData(msg *Message, sender Member) error {
	sessions, err := m.codec.Decode(msg.Payload())
	if err != nil {
		return err
	}

	notify := m.cfg.NotifySessionListenersOnReplication
	for _, s := range sessions {
		s.SetValid(true)
		s.SetPrimary(false)
		s.Access()
		s.EndAccess()
		s.ResetDelta()
		if _, replaced := m.sessions.Add(s, notify); replaced {
			m.stats.countSessionReplaced()
			m.logger.Warn("session replaced by state transfer", "session_id", s.ID())
		}
	}
	m.logger.Info("session state batch loaded",
		"from", sender.String(),
		"sessions", len(sessions))
	return nil
}

func (m *DeltaManager) handleAllDataComplete(msg *Message, sender Member) error {
	if !m.transfer.complete(msg.Timestamp()) {
		m.logger.Warn("ignoring state transfer completion outside a transfer",
			"from", sender.String(),
			"state", m.State())
		return nil
	}
	m.logger.Debug("session state transfer complete",
		"from", sender.String(),
		"epoch", msg.Timestamp())
	return nil
}

func (m *DeltaManager) handleSessionCreated(msg *Message, _ Member) error {
	if !domain.IsValidSessionID(msg.SessionID()) {
		return domain.ErrSessionIDInvalid.WithDetails(msg.SessionID())
	}
	s := domain.NewSession(msg.SessionID())
	s.SetValid(true)
	s.SetPrimary(false)
	s.SetCreationTime(msg.Timestamp())
	s.SetMaxInactiveLocal(m.sessions.SessionTimeout())
	s.Access()
	if _, replaced := m.sessions.Add(s, m.cfg.NotifySessionListenersOnReplication); replaced {
		m.logger.Debug("replicated session replaced existing copy", "session_id", s.ID())
	}
	s.EndAccess()
	return nil
}

func (m *DeltaManager) handleSessionExpired(msg *Message, _ Member) error {
	if s := m.lookup(msg); s != nil {
		m.sessions.Expire(s, m.cfg.NotifySessionListenersOnReplication)
	}
	return nil
}

func (m *DeltaManager) handleSessionAccessed(msg *Message, _ Member) error {
	if s := m.lookup(msg); s != nil {
		s.Access()
		s.SetPrimary(false)
		s.EndAccess()
	}
	return nil
}

func (m *DeltaManager) handleSessionDelta(msg *Message, _ Member) error {
	s := m.lookup(msg)
	if s == nil {
		return nil
	}
	if err := s.ApplyDiff(msg.Payload()); err != nil {
		return err
	}
	s.SetPrimary(false)
	return nil
}

func (m *DeltaManager) handleChangeSessionID(msg *Message, _ Member) error {
	s := m.lookup(msg)
	if s == nil {
		return nil
	}
	s.SetPrimary(false)
	return m.sessions.ChangeSessionID(s, string(msg.Payload()),
		m.cfg.NotifySessionListenersOnReplication,
		m.cfg.NotifyContainerListenersOnReplication)
}

func (m *DeltaManager) handleNoContextManager(_ *Message, sender Member) error {
	if !m.transfer.noPeerContext() {
		m.logger.Debug("ignoring NO_CONTEXT_MANAGER outside a transfer", "from", sender.String())
		return nil
	}
	m.logger.Debug("peer has no matching context", "from", sender.String())
	return nil
}
