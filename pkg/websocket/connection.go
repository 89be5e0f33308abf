package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// Connection 已建立的 WebSocket 连接，一个读循环一个写循环
type Connection struct {
	id   string
	conn *websocket.Conn

	writeTimeout time.Duration
	readTimeout  time.Duration
	frameType    int

	sendChan chan []byte
	logger   logger.Logger

	closed     atomic.Bool
	closeChan  chan struct{}
	closeOnce  sync.Once
	closeError error

	connectedAt time.Time
}

func newConnection(conn *websocket.Conn, cfg *ClientConfig, log logger.Logger) *Connection {
	frameType := websocket.TextMessage
	if cfg.BinaryFrames {
		frameType = websocket.BinaryMessage
	}
	if cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Connection{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: cfg.WriteTimeout,
		readTimeout:  cfg.ReadTimeout,
		frameType:    frameType,
		sendChan:     make(chan []byte, cfg.SendQueueSize),
		logger:       log,
		closeChan:    make(chan struct{}),
		connectedAt:  time.Now(),
	}
}

// ID 连接 ID
func (c *Connection) ID() string {
	return c.id
}

// RemoteAddr 远程地址
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// IsClosed 是否已关闭
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// SendAsync 放入发送队列，队列满时立即返回
func (c *Connection) SendAsync(data []byte) error {
	if c.IsClosed() {
		return ErrConnectionClosed
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

// ReadLoop 读取直到出错或关闭，每条完整消息调用一次 onMessage
func (c *Connection) ReadLoop(onMessage func(data []byte)) error {
	defer c.Close()

	for {
		if c.readTimeout > 0 {
			_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.IsClosed() {
				return c.CloseError()
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
			if c.writeTimeout > 0 {
				_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			}
			if err := c.conn.WriteMessage(c.frameType, data); err != nil {
				c.logger.Debug("websocket write error", "error", err, "conn_id", c.id)
				return
			}
			if onWritten != nil {
				onWritten(len(data))
			}
		case <-c.closeChan:
			return
		}
	}
}

// Close 关闭连接
func (c *Connection) Close() error {
	return c.CloseWithError(nil)
}

// CloseWithError 带原因关闭连接，只有第一次调用的原因会被记录
func (c *Connection) CloseWithError(err error) error {
	c.closeOnce.Do(func() {
		c.closeError = err
		c.closed.Store(true)
		close(c.closeChan)

		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		_ = c.conn.Close()
	})
	return nil
}

// CloseError 关闭原因
func (c *Connection) CloseError() error {
	if !c.closed.Load() {
		return nil
	}
	return c.closeError
}

// Ping 发送 Ping 控制帧
func (c *Connection) Ping() error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}
	deadline := time.Now().Add(time.Second)
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// SetPongHandler 设置 Pong 处理器
func (c *Connection) SetPongHandler(h func(appData string) error) {
	c.conn.SetPongHandler(h)
}
