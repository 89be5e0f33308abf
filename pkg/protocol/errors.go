package protocol

import "github.com/cockroachdb/errors"

var (
	// ErrDuplicateProtocol 协议号重复注册
	ErrDuplicateProtocol = errors.New("protocol: duplicate protocol id")

	// ErrRegistryFrozen 注册表已冻结，不能再注册
	ErrRegistryFrozen = errors.New("protocol: registry frozen")

	// ErrNilDecoder 解码器为 nil
	ErrNilDecoder = errors.New("protocol: nil decoder")

	// ErrMalformedEnvelope 消息缺少或携带非法的 protocolId
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")
)
