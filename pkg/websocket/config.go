package websocket

import (
	"fmt"
	"strings"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// HeartbeatConfig 心跳配置
type HeartbeatConfig struct {
	// Enable 是否启用心跳
	Enable bool `mapstructure:"enable" json:"enable" yaml:"enable"`
	// Interval 心跳间隔
	Interval time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`
	// Timeout 超过该时间未收到 Pong 视为超时
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`
	// MaxMissCount Ping 连续发送失败的最大次数
	MaxMissCount int `mapstructure:"max_miss_count" json:"max_miss_count" yaml:"max_miss_count"`
}

// DefaultHeartbeatConfig 返回默认心跳配置
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Enable:       true,
		Interval:     15 * time.Second,
		Timeout:      45 * time.Second,
		MaxMissCount: 3,
	}
}

// ClientConfig 客户端配置，地址由 Init(host, port) 给出
type ClientConfig struct {
	// Scheme ws 或 wss
	Scheme string `mapstructure:"scheme" json:"scheme" yaml:"scheme" validate:"omitempty,oneof=ws wss"`
	// Path 握手路径，如 "/ws"
	Path string `mapstructure:"path" json:"path" yaml:"path"`

	ReadBufferSize  int   `mapstructure:"read_buffer_size" json:"read_buffer_size" yaml:"read_buffer_size"`
	WriteBufferSize int   `mapstructure:"write_buffer_size" json:"write_buffer_size" yaml:"write_buffer_size"`
	MaxMessageSize  int64 `mapstructure:"max_message_size" json:"max_message_size" yaml:"max_message_size"`

	// DialTimeout 单次握手超时
	DialTimeout time.Duration `mapstructure:"dial_timeout" json:"dial_timeout" yaml:"dial_timeout"`
	// ReadTimeout 为 0 时不设置读超时，由心跳负责探活
	ReadTimeout  time.Duration `mapstructure:"read_timeout" json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" json:"write_timeout" yaml:"write_timeout"`

	// BinaryFrames 使用二进制帧发送，默认文本帧（JSON）
	BinaryFrames bool `mapstructure:"binary_frames" json:"binary_frames" yaml:"binary_frames"`

	EnableCompression bool `mapstructure:"enable_compression" json:"enable_compression" yaml:"enable_compression"`

	// Headers 握手请求头
	Headers map[string]string `mapstructure:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`

	SendQueueSize int `mapstructure:"send_queue_size" json:"send_queue_size" yaml:"send_queue_size"`

	Heartbeat HeartbeatConfig       `mapstructure:"heartbeat" json:"heartbeat" yaml:"heartbeat"`
	Retry     transport.RetryConfig `mapstructure:"retry" json:"retry" yaml:"retry"`
}

// DefaultClientConfig 返回默认客户端配置
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Scheme:          "ws",
		Path:            "/",
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		MaxMessageSize:  1 << 20,
		DialTimeout:     10 * time.Second,
		WriteTimeout:    10 * time.Second,
		SendQueueSize:   256,
		Heartbeat:       DefaultHeartbeatConfig(),
		Retry:           transport.DefaultRetryConfig(),
	}
}

// Validate 验证并补全配置
func (c *ClientConfig) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	switch c.Scheme {
	case "":
		c.Scheme = "ws"
	case "ws", "wss":
	default:
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConfig, c.Scheme)
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = 4096
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = 4096
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.Heartbeat.Enable && c.Heartbeat.Interval <= 0 {
		return fmt.Errorf("%w: heartbeat interval must be positive", ErrInvalidConfig)
	}
	return c.Retry.Validate()
}

func (c *ClientConfig) url(host string, port int) string {
	return fmt.Sprintf("%s://%s:%d%s", c.Scheme, host, port, c.Path)
}
