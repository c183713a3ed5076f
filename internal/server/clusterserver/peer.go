package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/sony/gobreaker"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
	"github.com/yndnr/deltamesh-go/internal/core/replication"
)

// peer owns the client, circuit breaker and async queue for one member.
// Queued messages are delivered one at a time so a peer sees this node's
// async traffic in send order.
type peer struct {
	member  replication.Member
	client  *connect.Client[replication.Message, deliverAck]
	breaker *gobreaker.CircuitBreaker
	queue   chan *replication.Message
	cfg     TransportConfig
	logger  *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func newPeer(member replication.Member, cfg TransportConfig, logger *slog.Logger) *peer {
	p := &peer{
		member: member,
		client: connect.NewClient[replication.Message, deliverAck](
			cfg.HTTPClient,
			"http://"+member.Addr+DeliverProcedure,
			connect.WithCodec(wireCodec{}),
		),
		queue:  make(chan *replication.Message, cfg.QueueSize),
		cfg:    cfg,
		logger: logger.With("peer", member.ID),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        member.ID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     cfg.BreakerResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("peer circuit breaker state changed",
				"peer", name,
				"from", from.String(),
				"to", to.String())
		},
	})
	return p
}

// enqueue schedules msg for async delivery.
func (p *peer) enqueue(msg *replication.Message) error {
	select {
	case <-p.stop:
		return domain.ErrTransportClosed
	default:
	}
	select {
	case p.queue <- msg:
		return nil
	default:
		return domain.ErrSendFailed.WithDetails("queue full for " + p.member.ID)
	}
}

// run delivers queued messages until the peer is closed or ctx is done.
func (p *peer) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case msg := <-p.queue:
			if err := p.deliverWithRetry(ctx, msg); err != nil {
				p.logger.Error("replication message dropped",
					"event", msg.Type(),
					"session_id", msg.SessionID(),
					"error", err)
			}
		}
	}
}

// deliverWithRetry retries with exponential backoff. An open breaker
// fails fast.
func (p *peer) deliverWithRetry(ctx context.Context, msg *replication.Message) error {
	var lastErr error
	for attempt := range p.cfg.MaxAttempts {
		lastErr = p.deliver(ctx, msg, p.cfg.SendTimeout)
		if lastErr == nil || errors.Is(lastErr, domain.ErrCircuitOpen) {
			return lastErr
		}
		if attempt < p.cfg.MaxAttempts-1 {
			delay := p.cfg.RetryBaseDelay << attempt
			p.logger.Debug("replication delivery failed, retrying",
				"event", msg.Type(),
				"attempt", attempt+1,
				"retry_after", delay,
				"error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-p.stop:
				return domain.ErrTransportClosed
			case <-time.After(delay):
			}
		}
	}
	return lastErr
}

// deliver sends msg once and waits for the acknowledgement.
func (p *peer) deliver(ctx context.Context, msg *replication.Message, timeout time.Duration) error {
	_, err := p.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return p.client.CallUnary(callCtx, connect.NewRequest(msg))
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return domain.ErrCircuitOpen.WithDetails(p.member.ID).WithCause(err)
	default:
		return domain.ErrSendFailed.WithDetails(p.member.ID).WithCause(err)
	}
}

func (p *peer) close() {
	p.stopOnce.Do(func() { close(p.stop) })
}
