package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds the gateway's instruments. A nil *Collector records nothing.
type Collector struct {
	Connections prometheus.Gauge
	OnlineUsers prometheus.Gauge
	Events      *prometheus.CounterVec
	Broadcasts  prometheus.Counter
	Jobs        *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)
	return &Collector{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "appchat",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		OnlineUsers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "appchat",
			Name:      "online_users",
			Help:      "Users registered in the presence table.",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appchat",
			Name:      "ws_events_total",
			Help:      "Inbound websocket events by outcome.",
		}, []string{"event", "outcome"}),
		Broadcasts: f.NewCounter(prometheus.CounterOpts{
			Namespace: "appchat",
			Name:      "broadcast_frames_total",
			Help:      "Frames queued to client connections.",
		}),
		Jobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "appchat",
			Name:      "jobs_total",
			Help:      "Background jobs by type and outcome.",
		}, []string{"type", "outcome"}),
	}
}

func (c *Collector) ConnectionOpened() {
	if c != nil {
		c.Connections.Inc()
	}
}

func (c *Collector) ConnectionClosed() {
	if c != nil {
		c.Connections.Dec()
	}
}

func (c *Collector) SetOnlineUsers(n int) {
	if c != nil {
		c.OnlineUsers.Set(float64(n))
	}
}

func (c *Collector) ObserveEvent(event, outcome string) {
	if c != nil {
		c.Events.WithLabelValues(event, outcome).Inc()
	}
}

func (c *Collector) AddBroadcasts(n int) {
	if c != nil && n > 0 {
		c.Broadcasts.Add(float64(n))
	}
}

func (c *Collector) ObserveJob(jobType, outcome string) {
	if c != nil {
		c.Jobs.WithLabelValues(jobType, outcome).Inc()
	}
}
