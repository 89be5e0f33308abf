package websocket

import "errors"

var (
	ErrInvalidConfig    = errors.New("websocket: invalid config")
	ErrConnectionClosed = errors.New("websocket: connection closed")
	ErrHeartbeatTimeout = errors.New("websocket: heartbeat timeout")
)
