package metric

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/deltamesh-go/internal/core/replication"
	"github.com/yndnr/deltamesh-go/internal/core/service"
)

// ReplicationSource is the manager view the collector reads on scrape.
type ReplicationSource interface {
	Name() string
	Statistics() *replication.Statistics
	State() replication.TransferState
	ReceivedQueueSize() int
	Members() []replication.Member
	Sessions() *service.SessionService
}

// QueueSource reports the async send backlog per peer.
type QueueSource interface {
	QueueDepth() map[string]int
}

// ReplicationCollector exports replication statistics. Values are read
// at scrape time, so a statistics reset shows up as a counter reset.
type ReplicationCollector struct {
	source ReplicationSource
	queues QueueSource

	sent               *prometheus.Desc
	received           *prometheus.Desc
	noStateTransferred *prometheus.Desc
	sessionReplaced    *prometheus.Desc
	sessionsActive     *prometheus.Desc
	sessionsCreated    *prometheus.Desc
	sessionsExpired    *prometheus.Desc
	transferState      *prometheus.Desc
	receivedQueue      *prometheus.Desc
	members            *prometheus.Desc
	peerQueue          *prometheus.Desc
}

// NewReplicationCollector creates a collector for source. queues may be nil.
func NewReplicationCollector(source ReplicationSource, queues QueueSource) *ReplicationCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "replication", name),
			help,
			append([]string{"context"}, labels...),
			nil,
		)
	}
	return &ReplicationCollector{
		source:             source,
		queues:             queues,
		sent:               desc("messages_sent_total", "Replication messages sent, by event type.", "event"),
		received:           desc("messages_received_total", "Replication messages received, by event type.", "event"),
		noStateTransferred: desc("no_state_transferred_total", "Startup handshakes that ended without a complete transfer."),
		sessionReplaced:    desc("sessions_replaced_total", "Sessions overwritten by a bulk transfer."),
		sessionsActive:     desc("sessions_active", "Sessions held by this node."),
		sessionsCreated:    desc("sessions_created_total", "Sessions created on this node."),
		sessionsExpired:    desc("sessions_expired_total", "Sessions expired on this node."),
		transferState:      desc("transfer_state", "Startup handshake state (0 idle, 1 awaiting, 2 complete, 3 timed out, 4 no peer context)."),
		receivedQueue:      desc("received_queue_size", "Messages held back while the startup handshake runs."),
		members:            desc("cluster_members", "Peers visible to this node."),
		peerQueue:          desc("peer_queue_depth", "Messages waiting for async delivery, by peer.", "peer"),
	}
}

// Describe implements prometheus.Collector.
func (c *ReplicationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sent
	ch <- c.received
	ch <- c.noStateTransferred
	ch <- c.sessionReplaced
	ch <- c.sessionsActive
	ch <- c.sessionsCreated
	ch <- c.sessionsExpired
	ch <- c.transferState
	ch <- c.receivedQueue
	ch <- c.members
	ch <- c.peerQueue
}

// Collect implements prometheus.Collector.
func (c *ReplicationCollector) Collect(ch chan<- prometheus.Metric) {
	name := c.source.Name()
	snap := c.source.Statistics().Snapshot()

	for _, t := range replication.EventTypes() {
		ch <- prometheus.MustNewConstMetric(c.sent, prometheus.CounterValue, float64(snap.SentCount(t)), name, t.String())
		ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(snap.ReceivedCount(t)), name, t.String())
	}
	ch <- prometheus.MustNewConstMetric(c.noStateTransferred, prometheus.CounterValue, float64(snap.NoStateTransferred), name)
	ch <- prometheus.MustNewConstMetric(c.sessionReplaced, prometheus.CounterValue, float64(snap.SessionReplaced), name)

	sessions := c.source.Sessions()
	ch <- prometheus.MustNewConstMetric(c.sessionsActive, prometheus.GaugeValue, float64(sessions.Count()), name)
	ch <- prometheus.MustNewConstMetric(c.sessionsCreated, prometheus.CounterValue, float64(sessions.CreatedCount()), name)
	ch <- prometheus.MustNewConstMetric(c.sessionsExpired, prometheus.CounterValue, float64(sessions.ExpiredCount()), name)

	ch <- prometheus.MustNewConstMetric(c.transferState, prometheus.GaugeValue, float64(c.source.State()), name)
	ch <- prometheus.MustNewConstMetric(c.receivedQueue, prometheus.GaugeValue, float64(c.source.ReceivedQueueSize()), name)
	ch <- prometheus.MustNewConstMetric(c.members, prometheus.GaugeValue, float64(len(c.source.Members())), name)

	if c.queues != nil {
		for peer, depth := range c.queues.QueueDepth() {
			ch <- prometheus.MustNewConstMetric(c.peerQueue, prometheus.GaugeValue, float64(depth), name, peer)
		}
	}
}
