// Package transport 定义会话管理器与底层连接之间的约定。
//
// Transport 在自己的 goroutine 中完成连接和收发，通过回调把收到的整条消息和
// 连接结果交给上层；连接中断通过 Events() 上的 TopicNetworkInterrupted 发布。
package transport

import (
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
)

// MessageHandler 收到一条完整消息
type MessageHandler func(raw []byte)

// ConnectResultHandler 一次连接尝试结束，code 为 ResultOK 表示成功
type ConnectResultHandler func(code int)

// Transport 单条逻辑连接
type Transport interface {
	// Init 开始异步连接，立即返回；结果通过 onConnectResult 回调一次
	Init(host string, port int, onMessage MessageHandler, onConnectResult ConnectResultHandler) error
	// Send 非阻塞发送，队列满时返回错误
	Send(raw []byte) error
	// IsReady 连接已建立且未中断
	IsReady() bool
	// Uninit 关闭连接并释放资源，可重复调用；之后不再触发任何回调
	Uninit()
	// Events 传输层事件
	Events() *event.Dispatcher
}

// Factory 为每次 Init 创建新的 Transport
type Factory func() (Transport, error)

// 连接结果
const (
	ResultOK         = 0
	ResultDialFailed = 1
	ResultTimeout    = 2
	ResultCanceled   = 3
)

// ResultText 连接结果的可读描述
func ResultText(code int) string {
	switch code {
	case ResultOK:
		return "ok"
	case ResultDialFailed:
		return "dial failed"
	case ResultTimeout:
		return "timeout"
	case ResultCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// TopicNetworkInterrupted 已建立的连接中断
const TopicNetworkInterrupted = "network_interrupted"

// Interruption TopicNetworkInterrupted 的事件内容
type Interruption struct {
	// Reason 简短原因，如 "eof"、"heartbeat timeout"
	Reason string
	Err    error
}
