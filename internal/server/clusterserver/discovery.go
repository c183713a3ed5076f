package clusterserver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/memberlist"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
)

// Discovery handles node discovery and membership using Gossip protocol.
type Discovery struct {
	config     *memberlist.Config
	memberList *memberlist.Memberlist
	logger     *slog.Logger

	mu       sync.Mutex
	shutdown bool

	// Callbacks
	cbMu     sync.RWMutex
	onJoin   func(member replication.Member)
	onLeave  func(nodeID string)
	onUpdate func(member replication.Member)
}

// DiscoveryConfig configures the discovery mechanism.
type DiscoveryConfig struct {
	// NodeID is the unique node identifier.
	NodeID string

	// BindAddr is the address to bind for gossip communication.
	BindAddr string

	// BindPort is the port to bind for gossip communication.
	BindPort int

	// AdvertiseAddr and AdvertisePort override the gossip address
	// announced to peers. Empty means the bind address.
	AdvertiseAddr string
	AdvertisePort int

	// ReplicationAddr is where this node accepts replication traffic
	// (host:port). It is gossiped in node metadata.
	ReplicationAddr string

	// SeedNodes are the initial nodes to join.
	SeedNodes []string

	// Logger for logging.
	Logger *slog.Logger
}

// nodeMetadata is gossiped with every node.
type nodeMetadata struct {
	ReplicationAddr string `json:"repl_addr"`
}

// NewDiscovery creates a new discovery instance and joins the seed nodes.
func NewDiscovery(cfg DiscoveryConfig) (*Discovery, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NodeID == "" {
		return nil, fmt.Errorf("node id is required")
	}

	meta, err := json.Marshal(nodeMetadata{ReplicationAddr: cfg.ReplicationAddr})
	if err != nil {
		return nil, fmt.Errorf("encode node metadata: %w", err)
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.NodeID
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	if cfg.AdvertiseAddr != "" {
		mlConfig.AdvertiseAddr = cfg.AdvertiseAddr
		mlConfig.AdvertisePort = cfg.AdvertisePort
	}
	mlConfig.Delegate = &metadataDelegate{meta: meta}

	// memberlist logs through the standard library logger; route it to slog.
	mlConfig.Logger = NewHCLogAdapter(cfg.Logger, "memberlist").
		StandardLogger(&hclog.StandardLoggerOptions{InferLevels: true})

	d := &Discovery{
		config: mlConfig,
		logger: cfg.Logger,
	}
	mlConfig.Events = &eventDelegate{discovery: d}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	d.memberList = ml

	if len(cfg.SeedNodes) > 0 {
		n, err := ml.Join(cfg.SeedNodes)
		if err != nil {
			_ = ml.Shutdown()
			return nil, fmt.Errorf("join seed nodes: %w", err)
		}
		cfg.Logger.Info("joined cluster",
			"node_id", cfg.NodeID,
			"seed_nodes", cfg.SeedNodes,
			"joined_count", n)
	} else {
		cfg.Logger.Info("started discovery (bootstrap mode)",
			"node_id", cfg.NodeID)
	}

	return d, nil
}

// Members returns every live node, this one included, ordered by ID.
func (d *Discovery) Members() []replication.Member {
	if d.memberList == nil {
		return nil
	}
	nodes := d.memberList.Members()
	out := make([]replication.Member, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, memberFromNode(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NumMembers returns the number of live nodes.
func (d *Discovery) NumMembers() int {
	if d.memberList == nil {
		return 0
	}
	return d.memberList.NumMembers()
}

// Leave gracefully leaves the cluster.
func (d *Discovery) Leave() error {
	if d.memberList == nil {
		return nil
	}

	if err := d.memberList.Leave(0); err != nil {
		d.logger.Error("failed to leave cluster", "error", err)
		return err
	}

	d.logger.Info("left cluster")
	return nil
}

// Shutdown stops the discovery mechanism.
func (d *Discovery) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown || d.memberList == nil {
		return nil
	}
	d.shutdown = true

	if err := d.memberList.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}

	d.logger.Info("discovery shutdown complete")
	return nil
}

// OnJoin registers a callback for node join events.
func (d *Discovery) OnJoin(fn func(member replication.Member)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onJoin = fn
}

// OnLeave registers a callback for node leave events.
func (d *Discovery) OnLeave(fn func(nodeID string)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onLeave = fn
}

// OnUpdate registers a callback for node update events.
func (d *Discovery) OnUpdate(fn func(member replication.Member)) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()
	d.onUpdate = fn
}

// LocalNode returns the local node information.
func (d *Discovery) LocalNode() *memberlist.Node {
	if d.memberList == nil {
		return nil
	}
	return d.memberList.LocalNode()
}

// memberFromNode maps a gossip node to a replication member. Nodes that
// gossip no replication address fall back to the gossip address.
func memberFromNode(n *memberlist.Node) replication.Member {
	var meta nodeMetadata
	if len(n.Meta) > 0 {
		_ = json.Unmarshal(n.Meta, &meta)
	}
	addr := meta.ReplicationAddr
	if addr == "" {
		addr = net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
	}
	return replication.Member{ID: n.Name, Addr: addr}
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	discovery *Discovery
}

// NotifyJoin is called when a node joins.
func (e *eventDelegate) NotifyJoin(node *memberlist.Node) {
	m := memberFromNode(node)
	e.discovery.logger.Info("node joined",
		"node_id", m.ID,
		"gossip_addr", node.Address(),
		"repl_addr", m.Addr)

	e.discovery.cbMu.RLock()
	fn := e.discovery.onJoin
	e.discovery.cbMu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

// NotifyLeave is called when a node leaves.
func (e *eventDelegate) NotifyLeave(node *memberlist.Node) {
	e.discovery.logger.Info("node left",
		"node_id", node.Name,
		"addr", node.Addr.String())

	e.discovery.cbMu.RLock()
	fn := e.discovery.onLeave
	e.discovery.cbMu.RUnlock()
	if fn != nil {
		fn(node.Name)
	}
}

// NotifyUpdate is called when a node is updated.
func (e *eventDelegate) NotifyUpdate(node *memberlist.Node) {
	m := memberFromNode(node)
	e.discovery.logger.Debug("node updated",
		"node_id", m.ID,
		"repl_addr", m.Addr)

	e.discovery.cbMu.RLock()
	fn := e.discovery.onUpdate
	e.discovery.cbMu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

// metadataDelegate provides node metadata to memberlist.
type metadataDelegate struct {
	meta []byte
}

// NodeMeta returns metadata about this node (up to limit bytes).
func (m *metadataDelegate) NodeMeta(limit int) []byte {
	if len(m.meta) > limit {
		return m.meta[:limit]
	}
	return m.meta
}

// NotifyMsg is called when a user message is received (not used).
func (m *metadataDelegate) NotifyMsg([]byte) {}

// GetBroadcasts is called to get broadcasts to send (not used).
func (m *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte {
	return nil
}

// LocalState returns the local state for synchronization (not used).
func (m *metadataDelegate) LocalState(join bool) []byte {
	return nil
}

// MergeRemoteState merges remote state (not used).
func (m *metadataDelegate) MergeRemoteState(buf []byte, join bool) {}
