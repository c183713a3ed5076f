package clusterserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/deltamesh-go/internal/core/domain"
	"github.com/yndnr/deltamesh-go/internal/core/replication"
)

// MemberSource lists the live cluster nodes. Discovery implements it.
type MemberSource interface {
	Members() []replication.Member
}

// MemberSourceFunc adapts a function to MemberSource.
type MemberSourceFunc func() []replication.Member

// Members implements MemberSource.
func (f MemberSourceFunc) Members() []replication.Member {
	return f()
}

// StaticMembers is a fixed member list.
type StaticMembers []replication.Member

// Members implements MemberSource.
func (s StaticMembers) Members() []replication.Member {
	return s
}

// TransportConfig configures a Transport.
type TransportConfig struct {
	// NodeID identifies this node; it must match its gossip name.
	NodeID string

	// AdvertiseAddr is the replication address peers reach this node at.
	AdvertiseAddr string

	// QueueSize bounds each peer's async queue.
	QueueSize int

	// SendTimeout bounds one delivery attempt.
	SendTimeout time.Duration

	// MaxAttempts and RetryBaseDelay control async retries. The delay
	// doubles after each attempt.
	MaxAttempts    int
	RetryBaseDelay time.Duration

	// BreakerFailureThreshold consecutive failures open a peer's breaker
	// for BreakerResetTimeout.
	BreakerFailureThreshold uint32
	BreakerResetTimeout     time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// DefaultTransportConfig returns the default transport settings.
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		QueueSize:               1024,
		SendTimeout:             10 * time.Second,
		MaxAttempts:             3,
		RetryBaseDelay:          250 * time.Millisecond,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     10 * time.Second,
	}
}

func (c *TransportConfig) applyDefaults() {
	d := DefaultTransportConfig()
	if c.QueueSize <= 0 {
		c.QueueSize = d.QueueSize
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = d.SendTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = d.RetryBaseDelay
	}
	if c.BreakerFailureThreshold == 0 {
		c.BreakerFailureThreshold = d.BreakerFailureThreshold
	}
	if c.BreakerResetTimeout <= 0 {
		c.BreakerResetTimeout = d.BreakerResetTimeout
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Transport delivers replication messages between nodes. It implements
// replication.Channel.
type Transport struct {
	cfg     TransportConfig
	self    replication.Member
	members MemberSource
	logger  *slog.Logger

	mu        sync.RWMutex
	receivers map[string]replication.Receiver

	peersMu sync.Mutex
	peers   map[string]*peer
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTransport creates a transport for the node described by cfg.
func NewTransport(cfg TransportConfig, members MemberSource) (*Transport, error) {
	if cfg.NodeID == "" || cfg.AdvertiseAddr == "" {
		return nil, domain.ErrMissingArgument.WithDetails("node id and advertise address are required")
	}
	if members == nil {
		return nil, domain.ErrMissingArgument.WithDetails("member source is required")
	}
	cfg.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		cfg:       cfg,
		self:      replication.Member{ID: cfg.NodeID, Addr: cfg.AdvertiseAddr},
		members:   members,
		logger:    cfg.Logger.With("component", "transport"),
		receivers: make(map[string]replication.Receiver),
		peers:     make(map[string]*peer),
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Self returns the local member.
func (t *Transport) Self() replication.Member {
	return t.self
}

// Register routes messages for contextName to r.
func (t *Transport) Register(contextName string, r replication.Receiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receivers[contextName] = r
}

// Unregister stops routing messages for contextName.
func (t *Transport) Unregister(contextName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.receivers, contextName)
}

func (t *Transport) receiver(contextName string) replication.Receiver {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.receivers[contextName]
}

// Members returns the peers ordered by ID, excluding this node.
func (t *Transport) Members() []replication.Member {
	all := t.members.Members()
	out := make([]replication.Member, 0, len(all))
	for _, m := range all {
		if m.ID != t.self.ID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Send queues msg for every peer.
func (t *Transport) Send(ctx context.Context, msg *replication.Message) error {
	msg = msg.WithSender(t.self)
	var errs []error
	for _, m := range t.Members() {
		p, err := t.peer(m)
		if err == nil {
			err = p.enqueue(msg)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SendTo delivers msg to one member. SendSyncAck blocks until the peer
// acknowledged receipt; SendAsync queues behind earlier async traffic.
func (t *Transport) SendTo(ctx context.Context, msg *replication.Message, to replication.Member, opts replication.SendOptions) error {
	p, err := t.peer(to)
	if err != nil {
		return err
	}
	msg = msg.WithSender(t.self)
	if opts.Mode == replication.SendSyncAck {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = t.cfg.SendTimeout
		}
		return p.deliver(ctx, msg, timeout)
	}
	return p.enqueue(msg)
}

// peer returns the worker for m, replacing it if m moved address.
func (t *Transport) peer(m replication.Member) (*peer, error) {
	if m.Addr == "" {
		return nil, domain.ErrMemberUnknown.WithDetails(m.ID)
	}
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	if t.closed {
		return nil, domain.ErrTransportClosed
	}
	if p, ok := t.peers[m.ID]; ok {
		if p.member.Addr == m.Addr {
			return p, nil
		}
		p.close()
	}
	p := newPeer(m, t.cfg, t.logger)
	t.peers[m.ID] = p
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		p.run(t.ctx)
	}()
	return p, nil
}

// ForgetMember drops the worker for a departed node. Queued messages
// for it are discarded.
func (t *Transport) ForgetMember(nodeID string) {
	t.peersMu.Lock()
	p, ok := t.peers[nodeID]
	delete(t.peers, nodeID)
	t.peersMu.Unlock()
	if ok {
		p.close()
		t.logger.Debug("peer removed", "peer", nodeID)
	}
}

// QueueDepth returns the number of messages waiting for each peer.
func (t *Transport) QueueDepth() map[string]int {
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	out := make(map[string]int, len(t.peers))
	for id, p := range t.peers {
		out[id] = len(p.queue)
	}
	return out
}

// Handler returns the Connect handler serving inbound deliveries.
func (t *Transport) Handler(interceptors ...connect.Interceptor) (string, http.Handler) {
	h := connect.NewUnaryHandler(
		DeliverProcedure,
		t.handleDeliver,
		connect.WithCodec(wireCodec{}),
		connect.WithInterceptors(interceptors...),
	)
	return DeliverProcedure, h
}

func (t *Transport) handleDeliver(ctx context.Context, req *connect.Request[replication.Message]) (*connect.Response[deliverAck], error) {
	msg := req.Msg
	sender := msg.Sender()
	if sender.IsZero() {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("message without sender"))
	}

	r := t.receiver(msg.ContextName())
	if r == nil {
		t.logger.Debug("no receiver for context",
			"context", msg.ContextName(),
			"event", msg.Type(),
			"sender", sender.ID)
		if msg.Type() == replication.EventGetAll {
			t.replyNoContext(msg, sender)
		}
		return connect.NewResponse(&deliverAck{}), nil
	}

	// GET_ALL triggers a bulk transfer back to the sender; answer it off
	// the request path so the sender's queue is not held up.
	if msg.Type() == replication.EventGetAll {
		if !t.spawn(func() { r.MessageReceived(msg, sender) }) {
			return nil, connect.NewError(connect.CodeUnavailable, domain.ErrTransportClosed)
		}
	} else {
		r.MessageReceived(msg, sender)
	}
	return connect.NewResponse(&deliverAck{}), nil
}

// spawn runs fn on a goroutine that Close waits for. Nothing is started
// once the transport is closed.
func (t *Transport) spawn(fn func()) bool {
	t.peersMu.Lock()
	defer t.peersMu.Unlock()
	if t.closed {
		return false
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn()
	}()
	return true
}

func (t *Transport) replyNoContext(req *replication.Message, to replication.Member) {
	reply := replication.NewMessage(req.ContextName(), replication.EventNoContextManager,
		replication.SessionIDNoContextManager, nil, time.Now().UnixMilli())
	if err := t.SendTo(t.ctx, reply, to, replication.SendOptions{Mode: replication.SendAsync}); err != nil {
		t.logger.Warn("failed to answer GET_ALL for unknown context",
			"context", req.ContextName(),
			"to", to.ID,
			"error", err)
	}
}

// Close stops every peer worker. Undelivered async messages are dropped.
func (t *Transport) Close() error {
	t.peersMu.Lock()
	if t.closed {
		t.peersMu.Unlock()
		return nil
	}
	t.closed = true
	for _, p := range t.peers {
		p.close()
	}
	t.peersMu.Unlock()

	t.cancel()
	t.wg.Wait()
	t.logger.Info("transport closed")
	return nil
}
