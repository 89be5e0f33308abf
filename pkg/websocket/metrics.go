package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ClientMetrics 客户端指标，nil 时所有方法为空操作
//
// 同一个 Registerer 上只能创建一次，多个 Transport 共享同一份。
type ClientMetrics struct {
	connected         prometheus.Gauge
	dialAttempts      prometheus.Counter
	dialFailures      prometheus.Counter
	connectionsTotal  prometheus.Counter
	disconnectsTotal  *prometheus.CounterVec
	heartbeatSent     prometheus.Counter
	heartbeatReceived prometheus.Counter
	heartbeatTimeouts prometheus.Counter
	messagesSent      prometheus.Counter
	messagesReceived  prometheus.Counter
	bytesSent         prometheus.Counter
	bytesReceived     prometheus.Counter
	sendErrors        prometheus.Counter
}

// NewClientMetrics 创建并注册客户端指标
func NewClientMetrics(registerer prometheus.Registerer) *ClientMetrics {
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: "websocket", Subsystem: "client", Name: name, Help: help}
	}

	m := &ClientMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "websocket",
			Subsystem: "client",
			Name:      "connected",
			Help:      "Whether the client currently holds an established connection (0 or 1)",
		}),
		dialAttempts:      prometheus.NewCounter(opts("dial_attempts_total", "Total number of dial attempts")),
		dialFailures:      prometheus.NewCounter(opts("dial_failures_total", "Total number of failed dial attempts")),
		connectionsTotal:  prometheus.NewCounter(opts("connections_total", "Total number of connections established")),
		disconnectsTotal:  prometheus.NewCounterVec(opts("disconnects_total", "Total number of interrupted connections"), []string{"reason"}),
		heartbeatSent:     prometheus.NewCounter(opts("heartbeat_sent_total", "Total number of heartbeat pings sent")),
		heartbeatReceived: prometheus.NewCounter(opts("heartbeat_received_total", "Total number of heartbeat pongs received")),
		heartbeatTimeouts: prometheus.NewCounter(opts("heartbeat_timeouts_total", "Total number of heartbeat timeouts")),
		messagesSent:      prometheus.NewCounter(opts("messages_sent_total", "Total number of messages written")),
		messagesReceived:  prometheus.NewCounter(opts("messages_received_total", "Total number of messages received")),
		bytesSent:         prometheus.NewCounter(opts("bytes_sent_total", "Total bytes written")),
		bytesReceived:     prometheus.NewCounter(opts("bytes_received_total", "Total bytes received")),
		sendErrors:        prometheus.NewCounter(opts("send_errors_total", "Total number of rejected sends")),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.connected,
			m.dialAttempts,
			m.dialFailures,
			m.connectionsTotal,
			m.disconnectsTotal,
			m.heartbeatSent,
			m.heartbeatReceived,
			m.heartbeatTimeouts,
			m.messagesSent,
			m.messagesReceived,
			m.bytesSent,
			m.bytesReceived,
			m.sendErrors,
		)
	}
	return m
}

func (m *ClientMetrics) onDialAttempt(err error) {
	if m == nil {
		return
	}
	m.dialAttempts.Inc()
	if err != nil {
		m.dialFailures.Inc()
	}
}

func (m *ClientMetrics) onConnected() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connected.Set(1)
}

func (m *ClientMetrics) onDisconnected(reason string) {
	if m == nil {
		return
	}
	m.connected.Set(0)
	m.disconnectsTotal.WithLabelValues(reason).Inc()
}

func (m *ClientMetrics) onClosed() {
	if m == nil {
		return
	}
	m.connected.Set(0)
}

func (m *ClientMetrics) onHeartbeatSent() {
	if m == nil {
		return
	}
	m.heartbeatSent.Inc()
}

func (m *ClientMetrics) onHeartbeatReceived() {
	if m == nil {
		return
	}
	m.heartbeatReceived.Inc()
}

func (m *ClientMetrics) onHeartbeatTimeout() {
	if m == nil {
		return
	}
	m.heartbeatTimeouts.Inc()
}

func (m *ClientMetrics) onMessageSent(n int) {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
	m.bytesSent.Add(float64(n))
}

func (m *ClientMetrics) onMessageReceived(n int) {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
	m.bytesReceived.Add(float64(n))
}

func (m *ClientMetrics) onSendError() {
	if m == nil {
		return
	}
	m.sendErrors.Inc()
}
