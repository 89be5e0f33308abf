// Package netclient 客户端网络会话管理器。
//
// Manager 连接异步的 Transport 与同步的逐帧 Update：
// SendMessage 只负责序列化并入队；transport goroutine 收到的消息只入队；
// 每次 Update 先处理连接通知，再把发送队列交给 transport，最后解码接收队列并在
// 调用方 goroutine 上按协议主题发布事件。
//
// Update 以及所有事件监听者都运行在调用 Update 的 goroutine 上；
// Init、Uninit、SendMessage、IsReady 可以在任意 goroutine 调用。
package netclient

import (
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/protocol"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// 管理器发布的主题
const (
	TopicNetworkReady       = "network_ready"
	TopicNetworkInterrupted = transport.TopicNetworkInterrupted
)

// NetworkReady TopicNetworkReady 的事件内容，每次连接尝试发布一次
type NetworkReady struct {
	// Code 为 transport.ResultOK 表示连接成功
	Code int
}

// OK 连接是否成功
func (r NetworkReady) OK() bool {
	return r.Code == transport.ResultOK
}

// Manager 网络会话管理器
type Manager struct {
	registry   *protocol.Registry
	factory    transport.Factory
	serializer serializer.Serializer
	dispatcher *event.Dispatcher
	logger     logger.Logger
	metrics    *Metrics
	config     *Config

	logPayload atomic.Bool

	mu           sync.Mutex
	state        State
	generation   uint64
	tr           transport.Transport
	interruptSub string
	outbound     *Queue
	inbound      *Queue

	notices noticeList
}

// New 创建会话管理器，必须通过 WithTransportFactory 提供 Transport
func New(registry *protocol.Registry, opts ...Option) (*Manager, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}

	m := &Manager{
		registry: registry,
		config:   DefaultConfig(),
		logger:   logger.NewNoop(),
		state:    StateUninitialized,
		outbound: NewQueue(),
		inbound:  NewQueue(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.factory == nil {
		return nil, ErrNoTransportFactory
	}
	if m.serializer == nil {
		s, err := serializer.ByName(m.config.Serializer)
		if err != nil {
			return nil, errors.Wrap(err, "netclient: serializer")
		}
		m.serializer = s
	}
	if m.dispatcher == nil {
		m.dispatcher = event.NewDispatcher(event.WithLogger(m.logger))
	}
	m.logPayload.Store(m.config.LogPayload)
	return m, nil
}

// Dispatcher 管理器的事件分发器，用于订阅 network_ready、network_interrupted 与 socket_<id>
func (m *Manager) Dispatcher() *event.Dispatcher {
	return m.dispatcher
}

// State 当前状态
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetLogPayload 运行时开关报文内容日志
func (m *Manager) SetLogPayload(enable bool) {
	m.logPayload.Store(enable)
}

// Init 创建 transport 并开始连接，连接结果在之后的 Update 中以 network_ready 发布
func (m *Manager) Init(host string, port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.active() {
		return errors.Wrapf(ErrAlreadyInitialized, "state %s", m.state)
	}

	tr, err := m.factory()
	if err != nil {
		return errors.Wrap(err, "netclient: create transport")
	}

	m.registry.Freeze()
	m.generation++
	gen := m.generation
	out, in := NewQueue(), NewQueue()

	sub := tr.Events().Subscribe(transport.TopicNetworkInterrupted, func(ev *event.Event) {
		m.notices.add(notice{generation: gen, forward: ev})
	})
	onMessage := func(raw []byte) {
		m.metrics.onReceived(in.Push(raw))
	}
	onConnectResult := func(code int) {
		m.notices.add(notice{generation: gen, connected: true, code: code})
	}

	if err := tr.Init(host, port, onMessage, onConnectResult); err != nil {
		tr.Events().Unsubscribe(transport.TopicNetworkInterrupted, sub)
		tr.Uninit()
		return errors.Wrapf(err, "netclient: init transport %s:%d", host, port)
	}

	m.tr = tr
	m.interruptSub = sub
	m.outbound, m.inbound = out, in
	m.state = StateConnecting
	m.metrics.setDepth(queueOutbound, 0)
	m.metrics.setDepth(queueInbound, 0)
	m.logger.Info("network connecting", "host", host, "port", port, "generation", gen)
	return nil
}

// Uninit 关闭 transport 并丢弃未处理的消息与通知，可重复调用
func (m *Manager) Uninit() {
	m.mu.Lock()
	if !m.state.active() {
		m.mu.Unlock()
		return
	}
	tr, sub, dropped := m.releaseLocked()
	m.mu.Unlock()

	m.shutdownTransport(tr, sub)
	m.logger.Info("network uninitialized", "dropped_outbound", dropped[0], "dropped_inbound", dropped[1])
}

// releaseLocked 进入 Closed 并摘下 transport，调用方持有 m.mu
func (m *Manager) releaseLocked() (transport.Transport, string, [2]int) {
	tr, sub := m.tr, m.interruptSub
	m.tr, m.interruptSub = nil, ""
	m.generation++
	m.state = StateClosed

	dropped := [2]int{m.outbound.Clear(), m.inbound.Clear()}
	m.notices.clear()
	m.metrics.onDropped(dropUninit, dropped[1])
	m.metrics.setDepth(queueOutbound, 0)
	m.metrics.setDepth(queueInbound, 0)
	return tr, sub, dropped
}

// shutdownTransport 不能在持有 m.mu 时调用：transport 会等待进行中的回调结束
func (m *Manager) shutdownTransport(tr transport.Transport, sub string) {
	if tr == nil {
		return
	}
	tr.Events().Unsubscribe(transport.TopicNetworkInterrupted, sub)
	tr.Uninit()
}

// IsReady transport 存在且已连接
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	tr := m.tr
	m.mu.Unlock()
	return tr != nil && tr.IsReady()
}

// SendMessage 序列化请求并放入发送队列，在下一次 Update 时发出
func (m *Manager) SendMessage(req any) error {
	if !m.State().active() {
		return ErrNotInitialized
	}

	raw, err := m.serializer.Serialize(req)
	if err != nil {
		return errors.Wrapf(err, "netclient: serialize %T", req)
	}

	m.mu.Lock()
	if !m.state.active() {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	depth := m.outbound.Push(raw)
	m.mu.Unlock()

	m.metrics.onEnqueued(depth)
	return nil
}

// Update 每帧调用一次：处理连接通知、发送、接收并分发
func (m *Manager) Update(dt time.Duration) {
	start := time.Now()
	defer m.metrics.observeUpdate(start)

	m.processNotices()

	m.mu.Lock()
	if !m.state.active() {
		m.mu.Unlock()
		return
	}
	gen, tr, out, in := m.generation, m.tr, m.outbound, m.inbound
	m.mu.Unlock()

	m.flushOutbound(tr, out)
	m.drainInbound(gen, in)
}

func (m *Manager) processNotices() {
	for _, n := range m.notices.take() {
		m.mu.Lock()
		current := m.generation
		m.mu.Unlock()
		if n.generation != current {
			continue
		}

		if n.connected {
			m.applyConnectResult(n.generation, n.code)
			continue
		}
		if n.forward.Topic == transport.TopicNetworkInterrupted {
			if in, ok := n.forward.Payload.(transport.Interruption); ok {
				m.logger.Warn("network interrupted", "reason", in.Reason, "error", in.Err)
			}
		}
		m.dispatcher.Forward(n.forward)
	}
}

func (m *Manager) applyConnectResult(gen uint64, code int) {
	m.mu.Lock()
	if gen != m.generation || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}

	if code == transport.ResultOK {
		m.state = StateReady
		m.mu.Unlock()

		m.metrics.onConnectResult(transport.ResultText(code))
		m.logger.Info("network ready")
		m.dispatcher.Publish(TopicNetworkReady, NetworkReady{Code: code})
		return
	}

	tr, sub, dropped := m.releaseLocked()
	m.mu.Unlock()
	m.shutdownTransport(tr, sub)

	m.metrics.onConnectResult(transport.ResultText(code))
	m.logger.Warn("network connect failed",
		"code", code,
		"result", transport.ResultText(code),
		"dropped_outbound", dropped[0],
	)
	m.dispatcher.Publish(TopicNetworkReady, NetworkReady{Code: code})
}

func (m *Manager) flushOutbound(tr transport.Transport, out *Queue) {
	// 连接建立前保留在队列中
	if tr == nil || !tr.IsReady() {
		return
	}

	batch := out.Drain()
	for _, raw := range batch {
		err := tr.Send(raw)
		m.metrics.onSent(err)
		if err != nil {
			m.logger.Warn("send message failed", "len", len(raw), "error", err)
			continue
		}
		m.logTraffic("message sent", raw)
	}
	if len(batch) > 0 {
		m.metrics.setDepth(queueOutbound, out.Len())
	}
}

func (m *Manager) drainInbound(gen uint64, in *Queue) {
	batch := in.Drain()
	if len(batch) == 0 {
		return
	}
	m.metrics.setDepth(queueInbound, in.Len())

	for i, raw := range batch {
		// 监听者可能调用了 Uninit
		if m.generationChanged(gen) {
			m.metrics.onDropped(dropUninit, len(batch)-i)
			return
		}

		id, err := protocol.PeekID(m.serializer, raw)
		if err != nil {
			m.metrics.onDropped(dropMalformed, 1)
			m.logger.Warn("drop malformed message", "len", len(raw), "error", err)
			continue
		}
		// 错误已在 DispatchProtocol 中记录
		_ = m.DispatchProtocol(id, raw)
	}
}

func (m *Manager) generationChanged(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation != gen
}

// DispatchProtocol 按协议号解码 raw 并同步发布到对应主题
func (m *Manager) DispatchProtocol(id int, raw []byte) error {
	entry, ok := m.registry.Lookup(id)
	if !ok {
		m.metrics.onDropped(dropUnknown, 1)
		m.logger.Warn("drop message with unknown protocol", "protocol_id", id, "len", len(raw))
		return errors.Wrapf(ErrUnknownProtocol, "protocol %d", id)
	}

	msg, err := entry.Decoder(raw)
	if err != nil {
		m.metrics.onDropped(dropDecode, 1)
		m.logger.Warn("drop undecodable message", "protocol_id", id, "len", len(raw), "error", err)
		return errors.Mark(errors.Wrapf(err, "decode protocol %d", id), ErrDecodeFailed)
	}

	m.logTraffic("message received", raw, "protocol_id", id)
	m.dispatcher.Publish(entry.Topic, msg)
	m.metrics.onDispatched()
	return nil
}

func (m *Manager) logTraffic(msg string, raw []byte, keysAndValues ...interface{}) {
	kv := append(keysAndValues, "len", len(raw))
	if m.logPayload.Load() {
		kv = append(kv, "payload", m.payloadText(raw))
	}
	m.logger.Debug(msg, kv...)
}

func (m *Manager) payloadText(raw []byte) string {
	if !utf8.Valid(raw) {
		return "<binary>"
	}
	if limit := m.config.PayloadLogLimit; limit > 0 && len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}
