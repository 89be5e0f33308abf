// Package tcp 基于 net 的客户端 Transport，支持换行和长度前缀两种分帧。
package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
	"github.com/panjf2000/ants/v2"
)

var _ transport.Transport = (*Transport)(nil)

// 拨号/读循环、写循环
const workerPoolSize = 2

// Transport TCP 客户端，每个实例只连接一次
type Transport struct {
	config *ClientConfig
	logger logger.Logger
	dialer *net.Dialer
	events *event.Dispatcher

	callbacks transport.Callbacks

	mu          sync.Mutex
	initialized bool
	conn        *Connection
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
		dialer: &net.Dialer{Timeout: c.DialTimeout, KeepAlive: c.TCPKeepAlive},
	}
	for _, opt := range opts {
		opt(t)
	}
	t.events = event.NewDispatcher(event.WithLogger(t.logger))
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
		t.logger.Error("tcp worker panicked", "panic", fmt.Sprint(p))
	}))
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	if err := pool.Submit(func() { t.run(ctx, addr) }); err != nil {
		cancel()
		pool.Release()
		return fmt.Errorf("start dial: %w", err)
	}

	t.pool = pool
	t.cancel = cancel
	t.initialized = true
	t.logger.Debug("tcp connecting", "addr", addr)
	return nil
}

func (t *Transport) run(ctx context.Context, addr string) {
	var netConn net.Conn
	err := transport.Retry(ctx, t.config.Retry, func(ctx context.Context, attempt int) error {
		c, err := t.dialer.DialContext(ctx, t.config.Network, addr)
		if err != nil {
			t.logger.Warn("tcp dial failed", "addr", addr, "attempt", attempt, "error", err)
			return err
		}
		netConn = c
		return nil
	})
	if err != nil {
		code := transport.ResultFromError(err)
		t.logger.Warn("tcp connect failed", "addr", addr, "result", transport.ResultText(code), "error", err)
		t.callbacks.ConnectResult(code)
		return
	}

	conn := newConnection(netConn, t.config, t.logger)

	t.mu.Lock()
	if t.closed.Load() {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	t.conn = conn
	t.mu.Unlock()

	if err := t.pool.Submit(func() { conn.WriteLoop(nil) }); err != nil {
		_ = conn.Close()
		t.callbacks.ConnectResult(transport.ResultCanceled)
		return
	}

	t.ready.Store(true)
	t.logger.Info("tcp connected", "addr", addr, "conn_id", conn.ID())
	t.callbacks.ConnectResult(transport.ResultOK)

	readErr := conn.ReadLoop(t.callbacks.Message)
	t.ready.Store(false)
	if t.closed.Load() {
		return
	}

	reason := disconnectReason(readErr)
	t.logger.Warn("tcp connection interrupted", "conn_id", conn.ID(), "reason", reason, "error", readErr)
	t.callbacks.Interrupted(t.events, transport.Interruption{Reason: reason, Err: readErr})
}

func disconnectReason(err error) string {
	var ne net.Error
	switch {
	case err == nil:
		return "closed"
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return "eof"
	case errors.Is(err, ErrMessageTooBig), errors.Is(err, ErrInvalidFrame):
		return "invalid frame"
	case errors.As(err, &ne) && ne.Timeout():
		return "read timeout"
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
	return conn.SendAsync(raw)
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
	cancel, conn, pool := t.cancel, t.conn, t.pool
	t.conn = nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if pool != nil {
		pool.Release()
	}
	t.logger.Debug("tcp transport released")
}
