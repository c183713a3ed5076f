package replication

import (
	"context"
	"fmt"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
)

// sendSessions answers GET_ALL from to. Every ALL_DATA batch and the
// closing ALL_DATA_COMPLETE carry the time captured before the session
// set was read, which becomes the requester's staleness cutoff.
func (m *DeltaManager) sendSessions(ctx context.Context, to Member) error {
	findTimestamp := m.now().UnixMilli()
	start := time.Now()

	var sessions []*domain.Session
	for _, s := range m.sessions.Sessions() {
		if s.IsValid() {
			sessions = append(sessions, s)
		}
	}

	size := m.cfg.SendAllSessionsSize
	if m.cfg.SendAllSessions || len(sessions) <= size {
		if err := m.sendSessionBatch(ctx, to, sessions, findTimestamp); err != nil {
			return err
		}
	} else {
		for i := 0; i < len(sessions); i += size {
			end := min(i+size, len(sessions))
			if err := m.sendSessionBatch(ctx, to, sessions[i:end], findTimestamp); err != nil {
				return err
			}
			if end < len(sessions) && m.cfg.SendAllSessionsWaitTime > 0 {
				if err := sleepContext(ctx, m.cfg.SendAllSessionsWaitTime); err != nil {
					return err
				}
			}
		}
	}

	done := NewMessage(m.cfg.Name, EventAllDataComplete, SessionIDStateTransferred, nil, findTimestamp)
	m.stats.countSent(EventAllDataComplete)
	if err := m.channel.SendTo(ctx, done, to, SendOptions{Mode: SendAsync}); err != nil {
		return fmt.Errorf("send %s to %s: %w", EventAllDataComplete, to, err)
	}

	m.logger.Info("session state sent",
		"to", to.String(),
		"sessions", len(sessions),
		"duration", time.Since(start))
	return nil
}

func (m *DeltaManager) sendSessionBatch(ctx context.Context, to Member, batch []*domain.Session, ts int64) error {
	data := m.codec.Encode(batch)
	if err := m.throttle(ctx, len(data)); err != nil {
		return err
	}

	msg := NewMessage(m.cfg.Name, EventAllData, SessionIDState, data, ts)
	m.stats.countSent(EventAllData)

	sendCtx, cancel := context.WithTimeout(ctx, m.cfg.SendTimeout)
	defer cancel()
	opts := SendOptions{Mode: SendSyncAck, Timeout: m.cfg.SendTimeout}
	if err := m.channel.SendTo(sendCtx, msg, to, opts); err != nil {
		return fmt.Errorf("send %s to %s: %w", EventAllData, to, err)
	}

	m.logger.Debug("session batch sent",
		"to", to.String(),
		"sessions", len(batch),
		"bytes", len(data))
	return nil
}

// throttle waits until n bytes fit the bulk bandwidth budget.
func (m *DeltaManager) throttle(ctx context.Context, n int) error {
	if m.limiter == nil {
		return nil
	}
	burst := m.limiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := m.limiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
