// ABOUTME: Prometheus instrumentation of the metering pipeline
// ABOUTME: Implements meter.Observer and tracks relay connections
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/voicerec/recmeter/pkg/audio"
	"github.com/voicerec/recmeter/pkg/meter"
)

// Metrics contains all Prometheus metrics for the level meter
type Metrics struct {
	// Probe metrics
	BuffersMetered  prometheus.Counter
	BuffersRejected *prometheus.CounterVec
	LevelsDropped   prometheus.Counter
	QueueLength     prometheus.Gauge
	ChannelLevel    *prometheus.GaugeVec
	Level           prometheus.Histogram

	// Relay metrics
	RelayClients  prometheus.Gauge
	RelayMessages prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		BuffersMetered: factory.NewCounter(prometheus.CounterOpts{
			Name: "recmeter_buffers_total",
			Help: "Total number of captured buffers that produced levels",
		}),
		BuffersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recmeter_buffers_rejected_total",
			Help: "Total number of buffers whose format could not be metered",
		}, []string{"format"}),
		LevelsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "recmeter_levels_dropped_total",
			Help: "Total number of level updates discarded because the display fell behind",
		}),
		QueueLength: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recmeter_queue_depth",
			Help: "Current number of level updates waiting for the display",
		}),
		ChannelLevel: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "recmeter_channel_level",
			Help: "Most recent volume-scaled level per channel",
		}, []string{"channel"}),
		Level: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "recmeter_level",
			Help:    "Distribution of volume-scaled channel levels",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11), // 0.0 to 1.0
		}),

		RelayClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recmeter_relay_clients",
			Help: "Current number of connected relay clients",
		}),
		RelayMessages: factory.NewCounter(prometheus.CounterOpts{
			Name: "recmeter_relay_messages_total",
			Help: "Total number of level messages sent to relay clients",
		}),
	}
}

// BufferMetered records one metered buffer
func (m *Metrics) BufferMetered(u meter.Update) {
	m.BuffersMetered.Inc()
	for ch, level := range u.Levels {
		m.ChannelLevel.WithLabelValues(strconv.Itoa(ch)).Set(level)
		m.Level.Observe(level)
	}
}

// BufferRejected records a buffer whose format could not be metered
func (m *Metrics) BufferRejected(format audio.Format) {
	m.BuffersRejected.WithLabelValues(format.String()).Inc()
}

// UpdateDropped records an update discarded by the queue
func (m *Metrics) UpdateDropped() {
	m.LevelsDropped.Inc()
}

// QueueDepth records the current queue length
func (m *Metrics) QueueDepth(n int) {
	m.QueueLength.Set(float64(n))
}
