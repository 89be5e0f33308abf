package netclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 丢弃原因
const (
	dropMalformed = "malformed_envelope"
	dropUnknown   = "unknown_protocol"
	dropDecode    = "decode_failed"
	dropUninit    = "uninit"
)

const (
	queueOutbound = "outbound"
	queueInbound  = "inbound"
)

// Metrics 会话管理器指标，nil 时所有方法为空操作
type Metrics struct {
	outboundEnqueued   prometheus.Counter
	outboundSent       prometheus.Counter
	outboundFailed     prometheus.Counter
	inboundReceived    prometheus.Counter
	inboundDispatched  prometheus.Counter
	inboundDropped     *prometheus.CounterVec
	queueDepth         *prometheus.GaugeVec
	updateDuration     prometheus.Histogram
	connectResultTotal *prometheus.CounterVec
}

// NewMetrics 创建并注册指标
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: "netclient", Name: name, Help: help})
	}

	m := &Metrics{
		outboundEnqueued:  counter("outbound_enqueued_total", "Requests serialized and queued for sending"),
		outboundSent:      counter("outbound_sent_total", "Queued requests handed to the transport"),
		outboundFailed:    counter("outbound_failed_total", "Queued requests the transport rejected"),
		inboundReceived:   counter("inbound_received_total", "Messages received from the transport"),
		inboundDispatched: counter("inbound_dispatched_total", "Messages decoded and published"),
		inboundDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netclient",
			Name:      "inbound_dropped_total",
			Help:      "Messages dropped before dispatch",
		}, []string{"reason"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "netclient",
			Name:      "queue_depth",
			Help:      "Messages waiting in the session queues",
		}, []string{"queue"}),
		updateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netclient",
			Name:      "update_duration_seconds",
			Help:      "Time spent in one Update call",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		connectResultTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "netclient",
			Name:      "connect_results_total",
			Help:      "Connection attempts by result",
		}, []string{"result"}),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.outboundEnqueued,
			m.outboundSent,
			m.outboundFailed,
			m.inboundReceived,
			m.inboundDispatched,
			m.inboundDropped,
			m.queueDepth,
			m.updateDuration,
			m.connectResultTotal,
		)
	}
	return m
}

func (m *Metrics) onEnqueued(depth int) {
	if m == nil {
		return
	}
	m.outboundEnqueued.Inc()
	m.queueDepth.WithLabelValues(queueOutbound).Set(float64(depth))
}

func (m *Metrics) onSent(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.outboundFailed.Inc()
		return
	}
	m.outboundSent.Inc()
}

func (m *Metrics) onReceived(depth int) {
	if m == nil {
		return
	}
	m.inboundReceived.Inc()
	m.queueDepth.WithLabelValues(queueInbound).Set(float64(depth))
}

func (m *Metrics) onDispatched() {
	if m == nil {
		return
	}
	m.inboundDispatched.Inc()
}

func (m *Metrics) onDropped(reason string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.inboundDropped.WithLabelValues(reason).Add(float64(n))
}

func (m *Metrics) setDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

func (m *Metrics) onConnectResult(result string) {
	if m == nil {
		return
	}
	m.connectResultTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) observeUpdate(start time.Time) {
	if m == nil {
		return
	}
	m.updateDuration.Observe(time.Since(start).Seconds())
}
