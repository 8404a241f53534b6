// Package promcollector is the Prometheus-backed implementation of
// rspmetrics.Collector, built on github.com/prometheus/client_golang the
// same way this codebase's other instrumented subsystems are.
package promcollector

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coredump-labs/rspd/internal/rspmetrics"
)

// Collector is a rspmetrics.Collector backed by a Prometheus registry.
type Collector struct {
	sessionsActive   prometheus.Gauge
	sessionInfo      *prometheus.GaugeVec
	packetsReceived  *prometheus.CounterVec
	packetsSent      *prometheus.CounterVec
	checksumMismatch prometheus.Counter
	stopReplies      prometheus.Counter
}

// New registers the RSP server's metrics with reg and returns a Collector
// backed by them. Pass prometheus.DefaultRegisterer for the global
// registry, or a fresh prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Collector {
	return &Collector{
		sessionsActive: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "rspd_sessions_active",
			Help: "Number of currently attached debugger sessions.",
		}),
		sessionInfo: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "rspd_session_info",
			Help: "Present (value 1) for each currently attached session, labeled by its xid.",
		}, []string{"session"}),
		packetsReceived: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rspd_packets_received_total",
			Help: "Inbound RSP packets, labeled by command letter.",
		}, []string{"command"}),
		packetsSent: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rspd_packets_sent_total",
			Help: "Outbound RSP packets, labeled by kind (reply, stop_reply).",
		}, []string{"kind"}),
		checksumMismatch: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rspd_checksum_mismatches_total",
			Help: "Inbound packets rejected for a checksum mismatch.",
		}),
		stopReplies: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "rspd_stop_replies_total",
			Help: "Asynchronous Txx stop-reply packets emitted.",
		}),
	}
}

var _ rspmetrics.Collector = (*Collector)(nil)

func (c *Collector) SessionOpened(sessionID string) {
	c.sessionsActive.Inc()
	c.sessionInfo.WithLabelValues(sessionID).Set(1)
}

func (c *Collector) SessionClosed(sessionID string) {
	c.sessionsActive.Dec()
	c.sessionInfo.DeleteLabelValues(sessionID)
}

func (c *Collector) PacketReceived(command byte) {
	c.packetsReceived.WithLabelValues(string(command)).Inc()
}

func (c *Collector) PacketSent(kind string) {
	c.packetsSent.WithLabelValues(kind).Inc()
}

func (c *Collector) ChecksumMismatch() { c.checksumMismatch.Inc() }
func (c *Collector) StopReplyEmitted() { c.stopReplies.Inc() }
