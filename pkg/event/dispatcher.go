// Package event 提供按主题（topic）的发布/订阅分发器。
//
// Publish 在调用方 goroutine 中同步调用所有监听者，监听者的执行顺序与订阅顺序一致。
// 单个监听者 panic 会被恢复并记录，不影响其余监听者。
package event

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
)

// Event 分发的事件
type Event struct {
	Topic   string
	Payload any
}

// Listener 事件监听者
type Listener func(ev *Event)

type subscription struct {
	id       string
	listener Listener
}

// Dispatcher 主题事件分发器
type Dispatcher struct {
	mu     sync.RWMutex
	topics map[string][]subscription
	logger logger.Logger
}

// Option 分发器选项
type Option func(*Dispatcher)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher 创建分发器
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		topics: make(map[string][]subscription),
		logger: logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Subscribe 订阅主题，返回订阅 ID 用于取消订阅
func (d *Dispatcher) Subscribe(topic string, l Listener) string {
	if l == nil {
		return ""
	}
	id := uuid.NewString()

	d.mu.Lock()
	d.topics[topic] = append(d.topics[topic], subscription{id: id, listener: l})
	d.mu.Unlock()
	return id
}

// Unsubscribe 取消订阅，返回是否找到对应订阅
func (d *Dispatcher) Unsubscribe(topic, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	subs := d.topics[topic]
	for i, s := range subs {
		if s.id != id {
			continue
		}
		// 复制而不是原地修改，正在进行的 Publish 持有旧切片
		next := make([]subscription, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		if len(next) == 0 {
			delete(d.topics, topic)
		} else {
			d.topics[topic] = next
		}
		return true
	}
	return false
}

// Publish 发布事件，返回收到事件的监听者数量
func (d *Dispatcher) Publish(topic string, payload any) int {
	return d.Forward(&Event{Topic: topic, Payload: payload})
}

// Forward 原样转发一个已有事件
func (d *Dispatcher) Forward(ev *Event) int {
	if ev == nil {
		return 0
	}

	d.mu.RLock()
	subs := d.topics[ev.Topic]
	d.mu.RUnlock()

	for _, s := range subs {
		d.invoke(s, ev)
	}
	return len(subs)
}

func (d *Dispatcher) invoke(s subscription, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("event listener panicked",
				"topic", ev.Topic,
				"subscription", s.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	s.listener(ev)
}

// HasListeners 主题是否有订阅者
func (d *Dispatcher) HasListeners(topic string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.topics[topic]) > 0
}

// Clear 移除所有订阅
func (d *Dispatcher) Clear() {
	d.mu.Lock()
	d.topics = make(map[string][]subscription)
	d.mu.Unlock()
}
