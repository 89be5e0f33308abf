package websocket

import (
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer 原样回显收到的消息
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			mt, data, err := c.ReadMessage()
			if err != nil {
				return
			}
			if err := c.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, p, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return host, port
}

type recorder struct {
	results chan int
	msgs    chan []byte
}

func newRecorder() *recorder {
	return &recorder{results: make(chan int, 4), msgs: make(chan []byte, 16)}
}

func (r *recorder) onMessage(raw []byte) { r.msgs <- raw }
func (r *recorder) onResult(code int)    { r.results <- code }

func (r *recorder) waitResult(t *testing.T) int {
	t.Helper()
	select {
	case code := <-r.results:
		return code
	case <-time.After(5 * time.Second):
		t.Fatal("no connect result")
		return -1
	}
}

func testConfig() *ClientConfig {
	cfg := DefaultClientConfig()
	cfg.Heartbeat.Enable = false
	cfg.Retry = transport.RetryConfig{MaxAttempts: 2, InitialDelay: 5 * time.Millisecond, Multiplier: 1}
	cfg.DialTimeout = time.Second
	return cfg
}

func TestTransport_ConnectAndEcho(t *testing.T) {
	srv := echoServer(t)
	host, port := hostPort(t, srv.URL)

	tr, err := New(testConfig())
	require.NoError(t, err)
	defer tr.Uninit()

	assert.False(t, tr.IsReady())
	assert.ErrorIs(t, tr.Send([]byte("early")), transport.ErrNotReady)

	rec := newRecorder()
	require.NoError(t, tr.Init(host, port, rec.onMessage, rec.onResult))
	assert.ErrorIs(t, tr.Init(host, port, rec.onMessage, rec.onResult), transport.ErrAlreadyInitialized)

	require.Equal(t, transport.ResultOK, rec.waitResult(t))
	assert.True(t, tr.IsReady())

	for _, m := range []string{`{"protocolId":1}`, `{"protocolId":2}`, `{"protocolId":3}`} {
		require.NoError(t, tr.Send([]byte(m)))
	}
	for _, want := range []string{`{"protocolId":1}`, `{"protocolId":2}`, `{"protocolId":3}`} {
		select {
		case got := <-rec.msgs:
			assert.Equal(t, want, string(got))
		case <-time.After(5 * time.Second):
			t.Fatal("echo not received")
		}
	}
}

func TestTransport_DialFailed(t *testing.T) {
	srv := echoServer(t)
	host, port := hostPort(t, srv.URL)
	srv.Close()

	tr, err := New(testConfig())
	require.NoError(t, err)
	defer tr.Uninit()

	rec := newRecorder()
	require.NoError(t, tr.Init(host, port, rec.onMessage, rec.onResult))

	code := rec.waitResult(t)
	assert.NotEqual(t, transport.ResultOK, code)
	assert.False(t, tr.IsReady())
}

func TestTransport_ServerClosesConnection(t *testing.T) {
	closeNow := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		<-closeNow
		_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		_ = c.Close()
	}))
	defer srv.Close()
	host, port := hostPort(t, srv.URL)

	tr, err := New(testConfig())
	require.NoError(t, err)
	defer tr.Uninit()

	interrupted := make(chan transport.Interruption, 1)
	tr.Events().Subscribe(transport.TopicNetworkInterrupted, func(ev *event.Event) {
		interrupted <- ev.Payload.(transport.Interruption)
	})

	rec := newRecorder()
	require.NoError(t, tr.Init(host, port, rec.onMessage, rec.onResult))
	require.Equal(t, transport.ResultOK, rec.waitResult(t))

	close(closeNow)
	select {
	case in := <-interrupted:
		assert.Equal(t, "closed by peer", in.Reason)
	case <-time.After(5 * time.Second):
		t.Fatal("interruption not published")
	}
	assert.False(t, tr.IsReady())
}

func TestTransport_HeartbeatTimeout(t *testing.T) {
	// 服务端不读取，因此不会回复 Pong
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		time.Sleep(2 * time.Second)
	}))
	defer srv.Close()
	host, port := hostPort(t, srv.URL)

	cfg := testConfig()
	cfg.Heartbeat = HeartbeatConfig{Enable: true, Interval: 20 * time.Millisecond, Timeout: 60 * time.Millisecond}

	reg := prometheus.NewRegistry()
	metrics := NewClientMetrics(reg)
	tr, err := New(cfg, WithMetrics(metrics))
	require.NoError(t, err)
	defer tr.Uninit()

	interrupted := make(chan transport.Interruption, 1)
	tr.Events().Subscribe(transport.TopicNetworkInterrupted, func(ev *event.Event) {
		interrupted <- ev.Payload.(transport.Interruption)
	})

	rec := newRecorder()
	require.NoError(t, tr.Init(host, port, rec.onMessage, rec.onResult))
	require.Equal(t, transport.ResultOK, rec.waitResult(t))

	select {
	case in := <-interrupted:
		assert.Equal(t, "heartbeat timeout", in.Reason)
		assert.ErrorIs(t, in.Err, ErrHeartbeatTimeout)
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat timeout not reported")
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.heartbeatTimeouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.disconnectsTotal.WithLabelValues("heartbeat timeout")))
}

func TestTransport_UninitIdempotent(t *testing.T) {
	srv := echoServer(t)
	host, port := hostPort(t, srv.URL)

	tr, err := New(testConfig())
	require.NoError(t, err)

	interrupted := 0
	tr.Events().Subscribe(transport.TopicNetworkInterrupted, func(*event.Event) { interrupted++ })

	rec := newRecorder()
	require.NoError(t, tr.Init(host, port, rec.onMessage, rec.onResult))
	require.Equal(t, transport.ResultOK, rec.waitResult(t))

	tr.Uninit()
	tr.Uninit()

	assert.False(t, tr.IsReady())
	assert.ErrorIs(t, tr.Send([]byte("x")), transport.ErrNotReady)
	assert.ErrorIs(t, tr.Init(host, port, rec.onMessage, rec.onResult), transport.ErrClosed)

	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, interrupted, "local Uninit must not raise an interruption")
}

func TestTransport_UninitBeforeConnect(t *testing.T) {
	// 监听但不 accept 握手，拨号一直挂起
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	host, port := hostPort(t, "ws://"+ln.Addr().String())

	tr, err := New(testConfig())
	require.NoError(t, err)

	rec := newRecorder()
	require.NoError(t, tr.Init(host, port, rec.onMessage, rec.onResult))
	tr.Uninit()

	select {
	case code := <-rec.results:
		t.Fatalf("unexpected connect result %d after Uninit", code)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClientConfig_Validate(t *testing.T) {
	cfg := &ClientConfig{Path: "ws"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "ws", cfg.Scheme)
	assert.Equal(t, "/ws", cfg.Path)
	assert.Equal(t, "ws://127.0.0.1:19621/ws", cfg.url("127.0.0.1", 19621))

	bad := &ClientConfig{Scheme: "http"}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = &ClientConfig{Heartbeat: HeartbeatConfig{Enable: true}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	var nilCfg *ClientConfig
	assert.ErrorIs(t, nilCfg.Validate(), ErrInvalidConfig)
}
