package tcp

import "errors"

var (
	ErrInvalidConfig    = errors.New("tcp: invalid config")
	ErrConnectionClosed = errors.New("tcp: connection closed")
	ErrMessageTooBig    = errors.New("tcp: message too big")
	ErrInvalidFrame     = errors.New("tcp: invalid frame")
)
