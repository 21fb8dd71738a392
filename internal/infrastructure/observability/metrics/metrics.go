// Package metrics provides Prometheus metric collection for the
// notification fan-out and the realtime session layer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector records fan-out and session metrics against a Prometheus registry.
type Collector struct {
	activeSessions    prometheus.Gauge
	connectsTotal     prometheus.Counter
	disconnectsTotal  prometheus.Counter
	refusedConnects   *prometheus.CounterVec
	deliveredTotal    prometheus.Counter
	deliveryFailures  prometheus.Counter
	offlineSkips      prometheus.Counter
	spatialFailures   prometheus.Counter
	droppedFrames     prometheus.Counter
	dispatchLatency   prometheus.Histogram
	dispatchBatchSize prometheus.Histogram
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cropalert_active_sessions",
			Help: "Number of currently connected websocket sessions",
		}),
		connectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_connects_total",
			Help: "Total accepted websocket connections",
		}),
		disconnectsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_disconnects_total",
			Help: "Total completed websocket disconnections",
		}),
		refusedConnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cropalert_refused_connects_total",
			Help: "Refused websocket connections by reason",
		}, []string{"reason"}),
		deliveredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_notifications_delivered_total",
			Help: "Recipients that received at least one notification emit",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_notification_failures_total",
			Help: "Per-recipient notification delivery failures",
		}),
		offlineSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_notification_offline_skips_total",
			Help: "Matched recipients skipped because no session was connected",
		}),
		spatialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_spatial_query_failures_total",
			Help: "Notification attempts aborted by a failed spatial query",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cropalert_dropped_frames_total",
			Help: "Websocket frames dropped due to a full client buffer",
		}),
		dispatchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropalert_dispatch_latency_seconds",
			Help:    "End-to-end latency of one notification fan-out",
			Buckets: prometheus.DefBuckets,
		}),
		dispatchBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cropalert_dispatch_batch_size",
			Help:    "Recipients matched per notification fan-out",
			Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),
	}

	reg.MustRegister(
		c.activeSessions,
		c.connectsTotal,
		c.disconnectsTotal,
		c.refusedConnects,
		c.deliveredTotal,
		c.deliveryFailures,
		c.offlineSkips,
		c.spatialFailures,
		c.droppedFrames,
		c.dispatchLatency,
		c.dispatchBatchSize,
	)

	return c
}

// NewDefaultCollector registers against the default Prometheus registry.
func NewDefaultCollector() *Collector {
	return NewCollector(prometheus.DefaultRegisterer)
}

func (c *Collector) RecordConnect() {
	c.connectsTotal.Inc()
	c.activeSessions.Inc()
}

func (c *Collector) RecordDisconnect() {
	c.disconnectsTotal.Inc()
	c.activeSessions.Dec()
}

func (c *Collector) RecordRefusedConnect(reason string) {
	c.refusedConnects.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordDelivered(count int) {
	c.deliveredTotal.Add(float64(count))
}

func (c *Collector) RecordDeliveryFailure() {
	c.deliveryFailures.Inc()
}

func (c *Collector) RecordOfflineSkip() {
	c.offlineSkips.Inc()
}

func (c *Collector) RecordSpatialFailure() {
	c.spatialFailures.Inc()
}

func (c *Collector) RecordDroppedFrame() {
	c.droppedFrames.Inc()
}

func (c *Collector) RecordDispatch(recipients int, duration time.Duration) {
	c.dispatchBatchSize.Observe(float64(recipients))
	c.dispatchLatency.Observe(duration.Seconds())
}
