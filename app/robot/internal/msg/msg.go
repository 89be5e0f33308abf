// Package msg 机器人与服务端之间的协议消息
package msg

import (
	"github.com/lk2023060901/xdooria-netclient/pkg/protocol"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
)

// 协议号，请求与响应共用同一个协议号
const (
	ProtoLogin = 1
	ProtoPing  = 2
)

// 登录结果
const (
	CodeOK           = 0
	CodeInvalidToken = 1
)

// LoginRequest 登录请求
type LoginRequest struct {
	protocol.Header
	Account string `json:"account" codec:"account"`
	Token   string `json:"token,omitempty" codec:"token"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	protocol.Header
	Code    int    `json:"code" codec:"code"`
	UserID  string `json:"userId" codec:"userId"`
	Message string `json:"message,omitempty" codec:"message"`
}

// PingRequest 应用层心跳，SentAt 为发送时的毫秒时间戳
type PingRequest struct {
	protocol.Header
	Seq    int   `json:"seq" codec:"seq"`
	SentAt int64 `json:"sentAt" codec:"sentAt"`
}

// PongResponse 服务端原样带回 Seq 与 SentAt
type PongResponse struct {
	protocol.Header
	Seq    int   `json:"seq" codec:"seq"`
	SentAt int64 `json:"sentAt" codec:"sentAt"`
}

// NewLoginRequest 创建登录请求
func NewLoginRequest(account, token string) *LoginRequest {
	return &LoginRequest{Header: protocol.NewHeader(ProtoLogin), Account: account, Token: token}
}

// NewPingRequest 创建心跳请求
func NewPingRequest(seq int, sentAt int64) *PingRequest {
	return &PingRequest{Header: protocol.NewHeader(ProtoPing), Seq: seq, SentAt: sentAt}
}

// Register 注册所有响应消息
func Register(r *protocol.Registry, s serializer.Serializer) error {
	if err := protocol.RegisterType[LoginResponse](r, ProtoLogin, s); err != nil {
		return err
	}
	return protocol.RegisterType[PongResponse](r, ProtoPing, s)
}
