// Package metrics exposes tracker health as Prometheus collectors on a
// private registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"celestetracker.ai/internal/tracker/session"
)

const namespace = "celeste_tracker"

var connectionStates = []string{"disconnected", "connecting", "open", "manually_disconnected"}

type Metrics struct {
	Registry *prometheus.Registry

	ConnectionState   *prometheus.GaugeVec
	ReconnectAttempts prometheus.Counter
	Exhausted         prometheus.Counter
	Messages          *prometheus.CounterVec
	Sent              *prometheus.CounterVec
	Refusals          prometheus.Counter
	Objectives        *prometheus.GaugeVec
	PendingItems      prometheus.Gauge
	Strawberries      prometheus.Gauge
	PersistErrors     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		ConnectionState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current connection manager state, 0 otherwise.",
		}, []string{"state"}),
		ReconnectAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnects scheduled after an abnormal close.",
		}),
		Exhausted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_exhausted_total",
			Help:      "Times the reconnect budget ran out.",
		}),
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages dispatched, by command.",
		}, []string{"cmd"}),
		Sent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Outbound messages, by command and result.",
		}, []string{"cmd", "result"}),
		Refusals: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_refusals_total",
			Help:      "ConnectionRefused and ConnectionError messages.",
		}),
		Objectives: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "objectives",
			Help:      "Objective counts by status.",
		}, []string{"status"}),
		PendingItems: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_items",
			Help:      "Items waiting for a data package.",
		}),
		Strawberries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "strawberries",
			Help:      "Strawberries received this session.",
		}),
		PersistErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed writes to the state store.",
		}),
	}
}

func (m *Metrics) SetConnectionState(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ConnectionState.WithLabelValues(s).Set(v)
	}
}

// ObserveState refreshes the gauges derived from tracker state.
func (m *Metrics) ObserveState(s session.State) {
	c := s.Counts()
	m.Objectives.WithLabelValues("total").Set(float64(c.Total))
	m.Objectives.WithLabelValues("included").Set(float64(c.Included))
	m.Objectives.WithLabelValues("checked").Set(float64(c.Checked))
	m.Objectives.WithLabelValues("reachable").Set(float64(c.Reachable))
	m.Objectives.WithLabelValues("mapped").Set(float64(c.Mapped))
	m.PendingItems.Set(float64(s.Pending.Len()))
	m.Strawberries.Set(float64(s.Strawberries))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
