package tcp

import (
	"fmt"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// Framing 消息分帧方式
type Framing string

const (
	// FramingLine 每条消息以 '\n' 结尾，适用于 JSON 文本
	FramingLine Framing = "line"
	// FramingLength 4 字节大端长度前缀，适用于二进制消息
	FramingLength Framing = "length"
)

// ClientConfig 客户端配置，地址由 Init(host, port) 给出
type ClientConfig struct {
	// 网络类型，tcp/tcp4/tcp6
	Network string `mapstructure:"network" json:"network" yaml:"network"`

	Framing Framing `mapstructure:"framing" json:"framing" yaml:"framing"`

	ReadBufferSize  int `mapstructure:"read_buffer_size" json:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int `mapstructure:"write_buffer_size" json:"write_buffer_size" yaml:"write_buffer_size"`

	// 单条消息最大字节数，不含分隔符和长度前缀
	MaxMessageSize int `mapstructure:"max_message_size" json:"max_message_size" yaml:"max_message_size"`

	SendQueueSize int `mapstructure:"send_queue_size" json:"send_queue_size" yaml:"send_queue_size"`

	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`
	// ReadTimeout 为 0 时不设置读超时
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`

	TCPKeepAlive time.Duration `mapstructure:"tcp_keep_alive" json:"tcp_keep_alive" yaml:"tcp_keep_alive"`
	TCPNoDelay   bool          `mapstructure:"tcp_no_delay" json:"tcp_no_delay" yaml:"tcp_no_delay"`

	Retry transport.RetryConfig `mapstructure:"retry" json:"retry" yaml:"retry"`
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Network:         "tcp",
		Framing:         FramingLine,
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		MaxMessageSize:  1024 * 1024,
		SendQueueSize:   256,
		DialTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		TCPKeepAlive:    30 * time.Second,
		TCPNoDelay:      true,
		Retry:           transport.DefaultRetryConfig(),
	}
}

// Validate 验证并补全配置
func (c *ClientConfig) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	switch c.Network {
	case "":
		c.Network = "tcp"
	case "tcp", "tcp4", "tcp6":
	default:
		return fmt.Errorf("%w: unsupported network %q", ErrInvalidConfig, c.Network)
	}
	switch c.Framing {
	case "":
		c.Framing = FramingLine
	case FramingLine, FramingLength:
	default:
		return fmt.Errorf("%w: unsupported framing %q", ErrInvalidConfig, c.Framing)
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 64 * 1024
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = 64 * 1024
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 1024 * 1024
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	return c.Retry.Validate()
}
