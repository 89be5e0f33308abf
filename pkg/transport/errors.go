package transport

import (
	"context"
	"errors"
	"net"
)

var (
	ErrAlreadyInitialized = errors.New("transport: already initialized")
	ErrNotReady           = errors.New("transport: not ready")
	ErrClosed             = errors.New("transport: closed")
	ErrSendQueueFull      = errors.New("transport: send queue full")
)

// ResultFromError 将拨号错误映射为连接结果
func ResultFromError(err error) int {
	if err == nil {
		return ResultOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClosed) {
		return ResultCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ResultTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ResultTimeout
	}
	return ResultDialFailed
}
