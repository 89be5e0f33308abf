package netclient

import (
	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-netclient/pkg/protocol"
)

var (
	// ErrAlreadyInitialized Connecting/Ready 状态下再次 Init
	ErrAlreadyInitialized = errors.New("netclient: already initialized")

	// ErrNotInitialized Init 之前或 Uninit 之后发送
	ErrNotInitialized = errors.New("netclient: not initialized")

	// ErrMalformedEnvelope 消息缺少或携带非法的 protocolId
	ErrMalformedEnvelope = protocol.ErrMalformedEnvelope

	// ErrUnknownProtocol 协议号未注册
	ErrUnknownProtocol = errors.New("netclient: unknown protocol")

	// ErrDecodeFailed 协议解码失败
	ErrDecodeFailed = errors.New("netclient: decode failed")

	// ErrNoTransportFactory 未配置 Transport 工厂
	ErrNoTransportFactory = errors.New("netclient: no transport factory")

	// ErrNilRegistry 未提供协议注册表
	ErrNilRegistry = errors.New("netclient: nil registry")
)
