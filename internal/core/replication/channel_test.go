package replication

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/deltamesh-go/internal/core/service"
	"github.com/yndnr/deltamesh-go/internal/storage/memory"
)

var errUnreachable = errors.New("member unreachable")

// hub connects fake channels in process. Delivery is synchronous.
type hub struct {
	mu    sync.Mutex
	nodes map[string]*fakeChannel
}

func newHub() *hub {
	return &hub{nodes: make(map[string]*fakeChannel)}
}

func (h *hub) join(id string) *fakeChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &fakeChannel{hub: h, self: Member{ID: id, Addr: id + ":7100"}}
	h.nodes[id] = c
	return c
}

func (h *hub) node(id string) (*fakeChannel, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.nodes[id]
	return c, ok
}

type sentMessage struct {
	msg  *Message
	to   Member
	opts SendOptions
}

// fakeChannel records outbound traffic and delivers it through its hub.
// Extra members that are not attached to the hub swallow everything.
type fakeChannel struct {
	hub   *hub
	self  Member
	extra []Member

	mu       sync.Mutex
	receiver Receiver
	sent     []sentMessage
}

func (c *fakeChannel) setReceiver(r Receiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receiver = r
}

func (c *fakeChannel) Send(ctx context.Context, msg *Message) error {
	for _, m := range c.Members() {
		c.record(msg, Member{}, SendOptions{Mode: SendAsync})
		c.deliver(msg, m)
	}
	return nil
}

func (c *fakeChannel) SendTo(ctx context.Context, msg *Message, to Member, opts SendOptions) error {
	c.record(msg, to, opts)
	if !slices.Contains(c.Members(), to) {
		return errUnreachable
	}
	c.deliver(msg, to)
	return nil
}

func (c *fakeChannel) Members() []Member {
	members := slices.Clone(c.extra)
	if c.hub != nil {
		c.hub.mu.Lock()
		for id, n := range c.hub.nodes {
			if id != c.self.ID {
				members = append(members, n.self)
			}
		}
		c.hub.mu.Unlock()
	}
	sort.Slice(members, func(i, j int) bool { return members[i].ID < members[j].ID })
	return members
}

func (c *fakeChannel) record(msg *Message, to Member, opts SendOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{msg: msg, to: to, opts: opts})
}

func (c *fakeChannel) deliver(msg *Message, to Member) {
	if c.hub == nil {
		return
	}
	peer, ok := c.hub.node(to.ID)
	if !ok {
		return
	}
	peer.mu.Lock()
	r := peer.receiver
	peer.mu.Unlock()
	if r != nil {
		r.MessageReceived(msg.WithSender(c.self), c.self)
	}
}

func (c *fakeChannel) sentOf(t EventType) []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentMessage
	for _, s := range c.sent {
		if s.msg.Type() == t {
			out = append(out, s)
		}
	}
	return out
}

type receiverFunc func(msg *Message, sender Member)

func (f receiverFunc) MessageReceived(msg *Message, sender Member) { f(msg, sender) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = discardLogger()
	cfg.StateTransferTimeout = 5 * time.Second
	return cfg
}

// newTestManager builds a manager on ch, wires it as the channel's
// receiver and starts it. It is stopped when the test ends.
func newTestManager(t *testing.T, ch *fakeChannel, mutate func(*Config)) *DeltaManager {
	t.Helper()
	m := buildManager(t, ch, mutate)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = m.Stop(context.Background()) })
	return m
}

func buildManager(t *testing.T, ch *fakeChannel, mutate func(*Config)) *DeltaManager {
	t.Helper()
	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	svcCfg := service.DefaultConfig()
	svcCfg.Logger = discardLogger()
	sessions := service.NewSessionService(memory.New(), svcCfg)

	m, err := New(cfg, sessions, ch)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ch.setReceiver(m)
	return m
}
