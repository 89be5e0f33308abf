package transport

import (
	"errors"
	"sync"

	"github.com/lk2023060901/xdooria-netclient/pkg/event"
)

// Callbacks 保存上层回调，供各 Transport 实现复用
//
// 回调在读锁内执行，Close 获取写锁，因此 Close 返回后不会再有回调运行。
// 回调内部不能调用 Close（会死锁）。
type Callbacks struct {
	mu              sync.RWMutex
	closed          bool
	onMessage       MessageHandler
	onConnectResult ConnectResultHandler
}

// Set 设置回调，两者都不能为空
func (c *Callbacks) Set(onMessage MessageHandler, onConnectResult ConnectResultHandler) error {
	if onMessage == nil || onConnectResult == nil {
		return errors.New("transport: nil callback")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.onMessage = onMessage
	c.onConnectResult = onConnectResult
	return nil
}

// Message 转发一条消息
func (c *Callbacks) Message(raw []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.onMessage == nil {
		return
	}
	c.onMessage(raw)
}

// ConnectResult 转发连接结果
func (c *Callbacks) ConnectResult(code int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.onConnectResult == nil {
		return
	}
	c.onConnectResult(code)
}

// Interrupted 在 events 上发布中断事件
func (c *Callbacks) Interrupted(events *event.Dispatcher, in Interruption) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	events.Publish(TopicNetworkInterrupted, in)
}

// Close 停止转发，等待正在执行的回调结束
func (c *Callbacks) Close() {
	c.mu.Lock()
	c.closed = true
	c.onMessage = nil
	c.onConnectResult = nil
	c.mu.Unlock()
}

// Closed 是否已关闭
func (c *Callbacks) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
