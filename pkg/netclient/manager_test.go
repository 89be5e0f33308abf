package netclient

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/protocol"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const protoLogin = 1

type loginRequest struct {
	protocol.Header
	Account string `json:"account" codec:"account"`
}

type loginResponse struct {
	protocol.Header
	Code   int    `json:"code" codec:"code"`
	UserID string `json:"userId" codec:"userId"`
}

// fakeTransport 由测试驱动连接结果与收到的消息
type fakeTransport struct {
	mu        sync.Mutex
	events    *event.Dispatcher
	onMessage transport.MessageHandler
	onConnect transport.ConnectResultHandler
	host      string
	port      int
	sent      [][]byte
	failSend  map[int]bool
	sendCalls int
	initErr   error
	closed    bool
	uninits   int

	ready atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: event.NewDispatcher(), failSend: make(map[int]bool)}
}

func (f *fakeTransport) Init(host string, port int, onMessage transport.MessageHandler, onConnect transport.ConnectResultHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.host, f.port = host, port
	if f.initErr != nil {
		return f.initErr
	}
	f.onMessage, f.onConnect = onMessage, onConnect
	return nil
}

func (f *fakeTransport) Send(raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if !f.ready.Load() {
		return transport.ErrNotReady
	}
	if f.failSend[f.sendCalls] {
		return transport.ErrSendQueueFull
	}
	f.sent = append(f.sent, raw)
	return nil
}

func (f *fakeTransport) IsReady() bool { return f.ready.Load() }

func (f *fakeTransport) Uninit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uninits++
	f.closed = true
	f.ready.Store(false)
}

func (f *fakeTransport) Events() *event.Dispatcher { return f.events }

func (f *fakeTransport) connect(code int) {
	f.ready.Store(code == transport.ResultOK)
	f.mu.Lock()
	cb, closed := f.onConnect, f.closed
	f.mu.Unlock()
	if !closed {
		cb(code)
	}
}

func (f *fakeTransport) receive(raw string) {
	f.mu.Lock()
	cb, closed := f.onMessage, f.closed
	f.mu.Unlock()
	if !closed {
		cb([]byte(raw))
	}
}

func (f *fakeTransport) interrupt(reason string) {
	f.ready.Store(false)
	f.events.Publish(transport.TopicNetworkInterrupted, transport.Interruption{Reason: reason})
}

func (f *fakeTransport) sentStrings() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, raw := range f.sent {
		out[i] = string(raw)
	}
	return out
}

func (f *fakeTransport) uninitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uninits
}

// factoryOf 依次返回给定的 transport
func factoryOf(trs ...*fakeTransport) (transport.Factory, *int32) {
	var calls int32
	return func() (transport.Transport, error) {
		i := atomic.AddInt32(&calls, 1) - 1
		if int(i) >= len(trs) {
			return nil, errors.New("no more transports")
		}
		return trs[i], nil
	}, &calls
}

func newRegistry(t *testing.T, s serializer.Serializer) *protocol.Registry {
	t.Helper()
	r := protocol.NewRegistry()
	require.NoError(t, protocol.RegisterType[loginResponse](r, protoLogin, s))
	return r
}

func newTestManager(t *testing.T, trs []*fakeTransport, opts ...Option) (*Manager, *int32) {
	t.Helper()
	factory, calls := factoryOf(trs...)
	opts = append([]Option{WithTransportFactory(factory)}, opts...)
	m, err := New(newRegistry(t, nil), opts...)
	require.NoError(t, err)
	return m, calls
}

// recorder 记录某个主题上收到的事件
type recorder struct {
	mu     sync.Mutex
	events []*event.Event
}

func record(d *event.Dispatcher, topic string) *recorder {
	r := &recorder{}
	d.Subscribe(topic, func(ev *event.Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder) payloads() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]any, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Payload
	}
	return out
}

func connectedManager(t *testing.T, opts ...Option) (*Manager, *fakeTransport) {
	t.Helper()
	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr}, opts...)
	require.NoError(t, m.Init("127.0.0.1", 9000))
	tr.connect(transport.ResultOK)
	m.Update(0)
	require.Equal(t, StateReady, m.State())
	return m, tr
}

func TestNew_Errors(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilRegistry)

	_, err = New(protocol.NewRegistry())
	assert.ErrorIs(t, err, ErrNoTransportFactory)

	factory, _ := factoryOf()
	_, err = New(protocol.NewRegistry(),
		WithTransportFactory(factory),
		WithConfig(&Config{Serializer: "xml"}),
	)
	assert.ErrorIs(t, err, serializer.ErrUnknownSerializer)
}

func TestManager_IsReadyLifecycle(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr})

	assert.False(t, m.IsReady())
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Init("example.com", 8080))
	assert.Equal(t, StateConnecting, m.State())
	assert.False(t, m.IsReady())
	assert.Equal(t, "example.com", tr.host)
	assert.Equal(t, 8080, tr.port)

	tr.connect(transport.ResultOK)
	assert.True(t, m.IsReady())

	m.Uninit()
	assert.False(t, m.IsReady())
	assert.Equal(t, StateClosed, m.State())
}

func TestManager_NetworkReadyOnce(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr})
	ready := record(m.Dispatcher(), TopicNetworkReady)

	require.NoError(t, m.Init("127.0.0.1", 9000))
	m.Update(0)
	assert.Empty(t, ready.payloads())

	tr.connect(transport.ResultOK)
	assert.Empty(t, ready.payloads(), "published on the next Update only")

	m.Update(0)
	m.Update(0)
	assert.Equal(t, []any{NetworkReady{Code: transport.ResultOK}}, ready.payloads())
	assert.True(t, ready.payloads()[0].(NetworkReady).OK())
	assert.Equal(t, StateReady, m.State())
}

func TestManager_UninitDropsUnpublishedConnectResult(t *testing.T) {
	first, second := newFakeTransport(), newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{first, second})
	ready := record(m.Dispatcher(), TopicNetworkReady)

	require.NoError(t, m.Init("127.0.0.1", 9000))
	first.mu.Lock()
	late := first.onConnect
	first.mu.Unlock()
	first.connect(transport.ResultOK)
	m.Uninit()
	m.Update(0)
	assert.Empty(t, ready.payloads(), "the attempt was abandoned before the owner saw its result")
	assert.Equal(t, StateClosed, m.State())

	require.NoError(t, m.Init("127.0.0.1", 9000))
	// 旧 transport 迟到的结果不影响新的连接
	late(transport.ResultDialFailed)
	second.connect(transport.ResultOK)
	m.Update(0)
	assert.Equal(t, []any{NetworkReady{Code: transport.ResultOK}}, ready.payloads())
	assert.Equal(t, StateReady, m.State())
}

func TestManager_ConnectFailure(t *testing.T) {
	first, second := newFakeTransport(), newFakeTransport()
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	m, calls := newTestManager(t, []*fakeTransport{first, second}, WithMetrics(metrics))
	ready := record(m.Dispatcher(), TopicNetworkReady)

	require.NoError(t, m.Init("127.0.0.1", 9000))
	require.NoError(t, m.SendMessage(loginRequest{Header: protocol.NewHeader(protoLogin)}))
	first.connect(transport.ResultDialFailed)
	m.Update(0)

	require.Len(t, ready.payloads(), 1)
	assert.Equal(t, transport.ResultDialFailed, ready.payloads()[0].(NetworkReady).Code)
	assert.False(t, ready.payloads()[0].(NetworkReady).OK())
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 1, first.uninitCount())
	assert.ErrorIs(t, m.SendMessage(loginRequest{}), ErrNotInitialized)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.connectResultTotal.WithLabelValues("dial failed")))

	// 失败后可以重新 Init
	require.NoError(t, m.Init("127.0.0.1", 9000))
	assert.EqualValues(t, 2, atomic.LoadInt32(calls))
	second.connect(transport.ResultOK)
	m.Update(0)
	assert.Equal(t, StateReady, m.State())
	assert.Empty(t, second.sentStrings(), "requests queued before the failure are discarded")
}

func TestManager_InitTwice(t *testing.T) {
	tr := newFakeTransport()
	m, calls := newTestManager(t, []*fakeTransport{tr, newFakeTransport()})

	require.NoError(t, m.Init("127.0.0.1", 9000))
	err := m.Init("127.0.0.1", 9001)
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
	assert.EqualValues(t, 1, atomic.LoadInt32(calls))
	assert.Equal(t, 9000, tr.port)
	assert.Equal(t, 0, tr.uninitCount())

	tr.connect(transport.ResultOK)
	m.Update(0)
	assert.ErrorIs(t, m.Init("127.0.0.1", 9001), ErrAlreadyInitialized)
}

func TestManager_InitTransportError(t *testing.T) {
	tr := newFakeTransport()
	tr.initErr = errors.New("boom")
	m, _ := newTestManager(t, []*fakeTransport{tr})

	err := m.Init("127.0.0.1", 9000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, StateUninitialized, m.State())
	assert.Equal(t, 1, tr.uninitCount())
	assert.False(t, m.IsReady())

	// 工厂失败
	m2, _ := newTestManager(t, nil)
	require.Error(t, m2.Init("127.0.0.1", 9000))
	assert.Equal(t, StateUninitialized, m2.State())
}

func TestManager_SendBeforeInit(t *testing.T) {
	m, _ := newTestManager(t, []*fakeTransport{newFakeTransport()})
	assert.ErrorIs(t, m.SendMessage(loginRequest{}), ErrNotInitialized)
	m.Update(0)
}

func TestManager_SendSerializeError(t *testing.T) {
	m, _ := connectedManager(t)
	err := m.SendMessage(make(chan int))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotInitialized)
}

func TestManager_SendsInOrder(t *testing.T) {
	m, tr := connectedManager(t)

	for _, account := range []string{"a", "b", "c"} {
		require.NoError(t, m.SendMessage(loginRequest{Header: protocol.NewHeader(protoLogin), Account: account}))
	}
	assert.Empty(t, tr.sentStrings(), "nothing is sent before Update")

	m.Update(0)
	assert.Equal(t, []string{
		`{"protocolId":1,"account":"a"}`,
		`{"protocolId":1,"account":"b"}`,
		`{"protocolId":1,"account":"c"}`,
	}, tr.sentStrings())

	m.Update(0)
	assert.Len(t, tr.sentStrings(), 3)
}

func TestManager_BuffersWhileConnecting(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr})
	require.NoError(t, m.Init("127.0.0.1", 9000))

	require.NoError(t, m.SendMessage(loginRequest{Account: "early"}))
	m.Update(0)
	assert.Empty(t, tr.sentStrings())
	assert.Zero(t, tr.sendCalls)

	tr.connect(transport.ResultOK)
	m.Update(0)
	assert.Equal(t, []string{`{"protocolId":0,"account":"early"}`}, tr.sentStrings())
}

func TestManager_SendFailureContinues(t *testing.T) {
	metrics := NewMetrics(nil)
	m, tr := connectedManager(t, WithMetrics(metrics))
	tr.failSend[2] = true

	for i := 0; i < 3; i++ {
		require.NoError(t, m.SendMessage(loginRequest{Account: fmt.Sprint(i)}))
	}
	m.Update(0)

	assert.Equal(t, []string{
		`{"protocolId":0,"account":"0"}`,
		`{"protocolId":0,"account":"2"}`,
	}, tr.sentStrings())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.outboundSent))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.outboundFailed))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.outboundEnqueued))

	// 失败的请求不重试
	m.Update(0)
	assert.Len(t, tr.sentStrings(), 2)
}

func TestManager_LoginEndToEnd(t *testing.T) {
	m, tr := connectedManager(t)
	logins := record(m.Dispatcher(), protocol.Topic(protoLogin))

	tr.receive(`{"protocolId":1,"code":0,"userId":"u-1"}`)
	assert.Empty(t, logins.payloads(), "decoded on Update only")

	m.Update(0)
	require.Len(t, logins.payloads(), 1)
	resp, ok := logins.payloads()[0].(*loginResponse)
	require.True(t, ok)
	assert.Equal(t, protoLogin, resp.ID())
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "u-1", resp.UserID)
}

func TestManager_MsgPack(t *testing.T) {
	s := serializer.NewMsgPack()
	tr := newFakeTransport()
	factory, _ := factoryOf(tr)
	metrics := NewMetrics(nil)
	m, err := New(newRegistry(t, s), WithTransportFactory(factory), WithConfig(&Config{Serializer: "msgpack"}), WithMetrics(metrics))
	require.NoError(t, err)
	logins := record(m.Dispatcher(), protocol.Topic(protoLogin))

	require.NoError(t, m.Init("127.0.0.1", 9000))
	tr.connect(transport.ResultOK)

	encode := func(v any) string {
		raw, err := s.Serialize(v)
		require.NoError(t, err)
		return string(raw)
	}
	// 按位置编码的数组没有 protocolId 字段
	tr.receive(encode([]interface{}{protoLogin, 0, "forged"}))
	// 超出 int 范围的协议号
	tr.receive(encode(map[string]interface{}{"protocolId": uint64(1)<<63 + 1}))
	tr.receive(encode(loginResponse{Header: protocol.NewHeader(protoLogin), UserID: "u-2"}))
	m.Update(0)

	require.Len(t, logins.payloads(), 1)
	assert.Equal(t, "u-2", logins.payloads()[0].(*loginResponse).UserID)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.inboundDropped.WithLabelValues(dropMalformed)))
}

func TestManager_InboundFIFO(t *testing.T) {
	m, tr := connectedManager(t)
	logins := record(m.Dispatcher(), protocol.Topic(protoLogin))

	for i := 0; i < 20; i++ {
		tr.receive(fmt.Sprintf(`{"protocolId":1,"userId":"%d"}`, i))
	}
	m.Update(0)

	require.Len(t, logins.payloads(), 20)
	for i, p := range logins.payloads() {
		assert.Equal(t, fmt.Sprint(i), p.(*loginResponse).UserID)
	}
}

func TestManager_ConcurrentInbound(t *testing.T) {
	const producers, perProducer = 8, 250

	metrics := NewMetrics(nil)
	m, tr := connectedManager(t, WithMetrics(metrics))
	var got atomic.Int64
	m.Dispatcher().Subscribe(protocol.Topic(protoLogin), func(*event.Event) { got.Add(1) })

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				tr.receive(fmt.Sprintf(`{"protocolId":1,"userId":"%d-%d"}`, p, i))
			}
		}(p)
	}

	// 与生产者并发地 Update
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			m.Update(0)
		}
	}
	m.Update(0)

	assert.EqualValues(t, producers*perProducer, got.Load())
	assert.Equal(t, float64(producers*perProducer), testutil.ToFloat64(metrics.inboundReceived))
	assert.Equal(t, float64(producers*perProducer), testutil.ToFloat64(metrics.inboundDispatched))
}

func TestManager_UnknownProtocol(t *testing.T) {
	metrics := NewMetrics(nil)
	m, tr := connectedManager(t, WithMetrics(metrics))
	var published atomic.Int32
	m.Dispatcher().Subscribe(protocol.Topic(999), func(*event.Event) { published.Add(1) })

	err := m.DispatchProtocol(999, []byte(`{"protocolId":999}`))
	assert.ErrorIs(t, err, ErrUnknownProtocol)

	tr.receive(`{"protocolId":999}`)
	m.Update(0)

	assert.Zero(t, published.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.inboundDropped.WithLabelValues(dropUnknown)))
}

func TestManager_MalformedEnvelope(t *testing.T) {
	metrics := NewMetrics(nil)
	m, tr := connectedManager(t, WithMetrics(metrics))
	logins := record(m.Dispatcher(), protocol.Topic(protoLogin))

	tr.receive("not-an-envelope")
	tr.receive(`{"code":0}`)
	tr.receive(`{"protocolId":"one"}`)
	tr.receive(`{"protocolId":1,"userId":"after"}`)
	m.Update(0)

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.inboundDropped.WithLabelValues(dropMalformed)))
	require.Len(t, logins.payloads(), 1, "later messages still dispatch")
	assert.Equal(t, "after", logins.payloads()[0].(*loginResponse).UserID)

	_, err := protocol.PeekID(serializer.NewJSON(), []byte("not-an-envelope"))
	assert.True(t, errors.Is(err, ErrMalformedEnvelope))
}

func TestManager_DecodeFailure(t *testing.T) {
	r := newRegistry(t, nil)
	require.NoError(t, r.Register(2, func([]byte) (any, error) { return nil, errors.New("bad body") }))
	tr := newFakeTransport()
	factory, _ := factoryOf(tr)
	metrics := NewMetrics(nil)
	m, err := New(r, WithTransportFactory(factory), WithMetrics(metrics))
	require.NoError(t, err)

	var published atomic.Int32
	m.Dispatcher().Subscribe(protocol.Topic(2), func(*event.Event) { published.Add(1) })

	err = m.DispatchProtocol(2, []byte(`{"protocolId":2}`))
	assert.True(t, errors.Is(err, ErrDecodeFailed))
	assert.Contains(t, err.Error(), "bad body")
	assert.Zero(t, published.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.inboundDropped.WithLabelValues(dropDecode)))
}

func TestManager_UninitIdempotent(t *testing.T) {
	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr})

	m.Uninit()
	assert.Equal(t, StateUninitialized, m.State())

	require.NoError(t, m.Init("127.0.0.1", 9000))
	tr.connect(transport.ResultOK)
	m.Update(0)

	m.Uninit()
	m.Uninit()
	assert.Equal(t, StateClosed, m.State())
	assert.Equal(t, 1, tr.uninitCount())
	assert.ErrorIs(t, m.SendMessage(loginRequest{}), ErrNotInitialized)
	m.Update(0)
}

func TestManager_UninitDiscardsPending(t *testing.T) {
	metrics := NewMetrics(nil)
	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr}, WithMetrics(metrics))
	ready := record(m.Dispatcher(), TopicNetworkReady)
	logins := record(m.Dispatcher(), protocol.Topic(protoLogin))

	require.NoError(t, m.Init("127.0.0.1", 9000))
	tr.connect(transport.ResultOK)
	tr.receive(`{"protocolId":1}`)
	tr.receive(`{"protocolId":1}`)
	require.NoError(t, m.SendMessage(loginRequest{}))

	m.Uninit()
	m.Update(0)

	assert.Empty(t, ready.payloads(), "stale connect result is not published")
	assert.Empty(t, logins.payloads())
	assert.Empty(t, tr.sentStrings())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.inboundDropped.WithLabelValues(dropUninit)))
}

func TestManager_UninitFromListener(t *testing.T) {
	m, tr := connectedManager(t)
	var got atomic.Int32
	m.Dispatcher().Subscribe(protocol.Topic(protoLogin), func(*event.Event) {
		got.Add(1)
		m.Uninit()
	})

	tr.receive(`{"protocolId":1}`)
	tr.receive(`{"protocolId":1}`)
	m.Update(0)

	assert.EqualValues(t, 1, got.Load())
	assert.Equal(t, StateClosed, m.State())
}

func TestManager_Interrupted(t *testing.T) {
	m, tr := connectedManager(t)
	interrupted := record(m.Dispatcher(), TopicNetworkInterrupted)

	tr.interrupt("eof")
	assert.False(t, m.IsReady())
	assert.Empty(t, interrupted.payloads())

	m.Update(0)
	assert.Equal(t, []any{transport.Interruption{Reason: "eof"}}, interrupted.payloads())

	// 中断后请求留在队列中
	require.NoError(t, m.SendMessage(loginRequest{}))
	m.Update(0)
	assert.Empty(t, tr.sentStrings())
}

func TestManager_SharedDispatcher(t *testing.T) {
	d := event.NewDispatcher()
	ready := record(d, TopicNetworkReady)

	tr := newFakeTransport()
	m, _ := newTestManager(t, []*fakeTransport{tr}, WithDispatcher(d))
	assert.Same(t, d, m.Dispatcher())

	require.NoError(t, m.Init("127.0.0.1", 9000))
	tr.connect(transport.ResultOK)
	m.Update(0)
	assert.Len(t, ready.payloads(), 1)
}

func TestManager_RegistryFrozenOnInit(t *testing.T) {
	r := newRegistry(t, nil)
	factory, _ := factoryOf(newFakeTransport())
	m, err := New(r, WithTransportFactory(factory))
	require.NoError(t, err)

	require.NoError(t, m.Init("127.0.0.1", 9000))
	assert.True(t, r.Frozen())
	assert.ErrorIs(t, r.Register(7, func([]byte) (any, error) { return nil, nil }), protocol.ErrRegistryFrozen)
}

func TestManager_PayloadText(t *testing.T) {
	m, _ := newTestManager(t, nil, WithConfig(&Config{Serializer: "json", PayloadLogLimit: 4}))
	assert.Equal(t, "abc", m.payloadText([]byte("abc")))
	assert.Equal(t, "abcd...", m.payloadText([]byte("abcdef")))
	assert.Equal(t, "<binary>", m.payloadText([]byte{0xff, 0xfe}))

	m.SetLogPayload(true)
	assert.True(t, m.logPayload.Load())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "ready", StateReady.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
