package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat"

// Metrics owns its own prometheus registry so that every server (and every
// test) starts from zero instead of sharing the global default registry.
type Metrics struct {
	Registry      *prometheus.Registry
	MessagesSent  prometheus.Counter
	MessagesRead  prometheus.Counter
	Pushes        *prometheus.CounterVec
	PushesDropped *prometheus.CounterVec
	LiveSessions  prometheus.Gauge
	OnlineUsers   prometheus.Gauge
	ProcessRSS    prometheus.Gauge
	ProcessCPU    prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_sent_total",
			Help: "Messages persisted by the delivery coordinator.",
		}),
		MessagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_read_total",
			Help: "Messages flipped from unread to read.",
		}),
		Pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pushes_total",
			Help: "Events handed to live sessions.",
		}, []string{"event"}),
		PushesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "pushes_dropped_total",
			Help: "Events dropped because the session was closed or too slow.",
		}, []string{"event"}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_sessions",
			Help: "Live transport sessions currently registered.",
		}),
		OnlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "online_users",
			Help: "Users holding at least one live session.",
		}),
		ProcessRSS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_rss_bytes",
			Help: "Resident memory of the server process.",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "process_cpu_percent",
			Help: "CPU usage of the server process.",
		}),
	}
	m.Registry.MustRegister(
		m.MessagesSent, m.MessagesRead, m.Pushes, m.PushesDropped,
		m.LiveSessions, m.OnlineUsers, m.ProcessRSS, m.ProcessCPU,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
