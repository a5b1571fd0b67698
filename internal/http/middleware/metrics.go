package middleware

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Gauges and counters for the hub's own operation, replacing the
// teacher's rate-limiter counters (rate limiting is a Non-goal here)
// with metrics that describe room/session/game lifecycle instead.
var (
	RoomCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "codenames_rooms_active",
		Help: "Number of rooms currently open",
	})
	ActiveSessionCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "codenames_sessions_active",
		Help: "Number of connected sessions across all rooms",
	})
	FlipsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codenames_flips_total",
		Help: "Total card flips applied by the hub",
	})
	GamesCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "codenames_games_completed_total",
		Help: "Total games that reached an OVER status",
	})
	RequestQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "codenames_hub_queue_depth",
		Help: "Pending requests in the hub's serialization queue",
	})
)

func init() {
	prometheus.MustRegister(RoomCount)
	prometheus.MustRegister(ActiveSessionCount)
	prometheus.MustRegister(FlipsProcessed)
	prometheus.MustRegister(GamesCompleted)
	prometheus.MustRegister(RequestQueueDepth)
}
