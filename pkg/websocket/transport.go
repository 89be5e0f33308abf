// Package websocket 基于 gorilla/websocket 的客户端 Transport。
package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
	"github.com/panjf2000/ants/v2"
)

var _ transport.Transport = (*Transport)(nil)

// 拨号/读循环、写循环、心跳
const workerPoolSize = 3

// Transport WebSocket 客户端，每个实例只连接一次
type Transport struct {
	config  *ClientConfig
	logger  logger.Logger
	metrics *ClientMetrics
	dialer  *websocket.Dialer
	events  *event.Dispatcher

	callbacks transport.Callbacks

	mu          sync.Mutex
	initialized bool
	conn        *Connection
	hb          *heartbeat
	pool        *ants.Pool
	cancel      context.CancelFunc

	ready  atomic.Bool
	closed atomic.Bool
}

// Option Transport 选项
type Option func(*Transport)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithMetrics 设置指标，nil 表示不采集
func WithMetrics(m *ClientMetrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

// New 创建 Transport，cfg 为 nil 时使用默认配置
func New(cfg *ClientConfig, opts ...Option) (*Transport, error) {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}

	t := &Transport{
		config: &c,
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.events = event.NewDispatcher(event.WithLogger(t.logger))
	t.dialer = &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  c.DialTimeout,
		ReadBufferSize:    c.ReadBufferSize,
		WriteBufferSize:   c.WriteBufferSize,
		EnableCompression: c.EnableCompression,
	}
	return t, nil
}

// NewFactory 返回按同一配置创建 Transport 的工厂
func NewFactory(cfg *ClientConfig, opts ...Option) transport.Factory {
	return func() (transport.Transport, error) {
		return New(cfg, opts...)
	}
}

// Init 开始异步连接 host:port
func (t *Transport) Init(host string, port int, onMessage transport.MessageHandler, onConnectResult transport.ConnectResultHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed.Load() {
		return transport.ErrClosed
	}
	if t.initialized {
		return transport.ErrAlreadyInitialized
	}
	if err := t.callbacks.Set(onMessage, onConnectResult); err != nil {
		return err
	}

	pool, err := ants.NewPool(workerPoolSize, ants.WithPanicHandler(func(p interface{}) {
		t.logger.Error("websocket worker panicked", "panic", fmt.Sprint(p))
	}))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	url := t.config.url(host, port)
	if err := pool.Submit(func() { t.run(ctx, url) }); err != nil {
		cancel()
		pool.Release()
		return fmt.Errorf("start dial: %w", err)
	}

	t.pool = pool
	t.cancel = cancel
	t.initialized = true
	t.logger.Debug("websocket connecting", "url", url)
	return nil
}

func (t *Transport) run(ctx context.Context, url string) {
	header := make(http.Header, len(t.config.Headers))
	for k, v := range t.config.Headers {
		header.Set(k, v)
	}

	var wsConn *websocket.Conn
	err := transport.Retry(ctx, t.config.Retry, func(ctx context.Context, attempt int) error {
		c, resp, err := t.dialer.DialContext(ctx, url, header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		t.metrics.onDialAttempt(err)
		if err != nil {
			t.logger.Warn("websocket dial failed", "url", url, "attempt", attempt, "error", err)
			return err
		}
		wsConn = c
		return nil
	})
	if err != nil {
		code := transport.ResultFromError(err)
		t.logger.Warn("websocket connect failed", "url", url, "result", transport.ResultText(code), "error", err)
		t.callbacks.ConnectResult(code)
		return
	}

	conn := newConnection(wsConn, t.config, t.logger)

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	if t.config.Heartbeat.Enable {
		t.hb = newHeartbeat(&t.config.Heartbeat, conn, t.logger, t.metrics)
	}
	hb := t.hb
	t.mu.Unlock()

	if err := t.pool.Submit(func() { conn.WriteLoop(t.metrics.onMessageSent) }); err != nil {
		_ = conn.CloseWithError(err)
		t.callbacks.ConnectResult(transport.ResultCanceled)
		return
	}
	if hb != nil {
		if err := hb.start(t.pool); err != nil {
			t.logger.Warn("websocket heartbeat not started", "error", err)
		}
	}

	t.ready.Store(true)
	t.metrics.onConnected()
	t.logger.Info("websocket connected", "url", url, "conn_id", conn.ID())
	t.callbacks.ConnectResult(transport.ResultOK)

	readErr := conn.ReadLoop(func(data []byte) {
		t.metrics.onMessageReceived(len(data))
		t.callbacks.Message(data)
	})
	t.handleDisconnect(conn, readErr)
}

func (t *Transport) handleDisconnect(conn *Connection, err error) {
	t.ready.Store(false)

	t.mu.Lock()
	hb := t.hb
	t.mu.Unlock()
	if hb != nil {
		hb.stop()
	}

	if t.closed.Load() {
		return
	}

	reason := disconnectReason(err)
	t.metrics.onDisconnected(reason)
	t.logger.Warn("websocket connection interrupted", "conn_id", conn.ID(), "reason", reason, "error", err)
	t.callbacks.Interrupted(t.events, transport.Interruption{Reason: reason, Err: err})
}

func disconnectReason(err error) string {
	switch {
	case err == nil:
		return "closed"
	case errors.Is(err, ErrHeartbeatTimeout):
		return "heartbeat timeout"
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		return "closed by peer"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), websocket.IsUnexpectedCloseError(err):
		return "eof"
	default:
		return "read error"
	}
}

// Send 非阻塞发送
func (t *Transport) Send(raw []byte) error {
	if !t.ready.Load() {
		return transport.ErrNotReady
	}

	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return transport.ErrNotReady
	}

	if err := conn.SendAsync(raw); err != nil {
		t.metrics.onSendError()
		return err
	}
	return nil
}

// IsReady 连接已建立且未中断
func (t *Transport) IsReady() bool {
	return t.ready.Load()
}

// Events 传输层事件
func (t *Transport) Events() *event.Dispatcher {
	return t.events
}

// Uninit 关闭连接，可重复调用
func (t *Transport) Uninit() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	t.callbacks.Close()
	t.ready.Store(false)

	t.mu.Lock()
	cancel, conn, hb, pool := t.cancel, t.conn, t.hb, t.pool
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if hb != nil {
		hb.stop()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if pool != nil {
		pool.Release()
	}
	t.metrics.onClosed()
	t.logger.Debug("websocket transport released")
}
