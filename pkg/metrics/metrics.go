package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConns tracks currently open websocket connections.
	ActiveConns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sketch_ws_active_connections",
		Help: "Open websocket connections.",
	})

	// BroadcastsTotal counts messages fanned out to room members.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_ws_broadcasts_total",
		Help: "Messages accepted for room fan-out.",
	})

	// QueueDepth is the current write-behind buffer depth.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sketch_queue_depth",
		Help: "Pending messages in the write-behind buffer.",
	})

	// ChatsFlushedTotal counts rows durably written by the queue.
	ChatsFlushedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_queue_flushed_total",
		Help: "Messages written to storage by flushes.",
	})

	// ChatsDroppedTotal counts rows lost to failed flushes.
	ChatsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sketch_queue_dropped_total",
		Help: "Messages dropped after a failed flush.",
	})
)

// Handler exposes Prometheus metrics at /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
