package tcp

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// Connection 已建立的 TCP 连接
type Connection struct {
	id     string
	conn   net.Conn
	config *ClientConfig
	logger logger.Logger

	sendChan  chan []byte
	closed    atomic.Bool
	closeChan chan struct{}
	closeOnce sync.Once
}

func newConnection(conn net.Conn, cfg *ClientConfig, log logger.Logger) *Connection {
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		_ = tcpConn.SetNoDelay(cfg.TCPNoDelay)
		_ = tcpConn.SetReadBuffer(cfg.ReadBufferSize)
		_ = tcpConn.SetWriteBuffer(cfg.WriteBufferSize)
	}
	return &Connection{
		id:        uuid.NewString(),
		conn:      conn,
		config:    cfg,
		logger:    log,
		sendChan:  make(chan []byte, cfg.SendQueueSize),
		closeChan: make(chan struct{}),
	}
}

// ID 连接 ID
func (c *Connection) ID() string {
	return c.id
}

// IsClosed 是否已关闭
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// SendAsync 放入发送队列，队列满或无法分帧时立即返回
func (c *Connection) SendAsync(data []byte) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	if err := checkFrame(c.config.Framing, data); err != nil {
		return err
	}
	select {
	case c.sendChan <- data:
		return nil
	case <-c.closeChan:
		return ErrConnectionClosed
	default:
		return transport.ErrSendQueueFull
	}
}

// ReadLoop 读取直到出错或关闭
func (c *Connection) ReadLoop(onMessage func(data []byte)) error {
	defer c.Close()

	fr := newFrameReader(c.conn, c.config.Framing, c.config.ReadBufferSize, c.config.MaxMessageSize)
	for {
		if c.config.ReadTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))
		}
		data, err := fr.next()
		if err != nil {
			if c.IsClosed() {
				return nil
			}
			return err
		}
		onMessage(data)
	}
}

// WriteLoop 从发送队列取出消息写入连接
func (c *Connection) WriteLoop(onWritten func(n int)) {
	defer c.Close()

	for {
		select {
		case data := <-c.sendChan:
			if c.config.WriteTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			}
			n, err := writeFrame(c.conn, c.config.Framing, data)
			if err != nil {
				c.logger.Warn("tcp write error", "error", err, "conn_id", c.id)
				if errors.Is(err, ErrInvalidFrame) {
					continue
				}
				return
			}
			if onWritten != nil {
				onWritten(n)
			}
		case <-c.closeChan:
			return
		}
	}
}

// Close 关闭连接
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeChan)
		err = c.conn.Close()
	})
	return err
}
