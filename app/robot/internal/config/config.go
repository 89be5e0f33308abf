// Package config 机器人配置
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/config"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/netclient"
	"github.com/lk2023060901/xdooria-netclient/pkg/prometheus"
	"github.com/lk2023060901/xdooria-netclient/pkg/security"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
	"github.com/lk2023060901/xdooria-netclient/pkg/tcp"
	"github.com/lk2023060901/xdooria-netclient/pkg/websocket"
	"github.com/spf13/pflag"
)

// ErrBinaryLineFraming msgpack 不能使用按行分帧的 tcp
var ErrBinaryLineFraming = errors.New("config: msgpack serializer requires tcp framing \"length\"")

// EnvPrefix 环境变量前缀，如 XDOORIA_SERVER_HOST
const EnvPrefix = "XDOORIA"

// 传输方式
const (
	TransportWebSocket = "websocket"
	TransportTCP       = "tcp"
)

// ServerConfig 服务端地址
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host" yaml:"host" validate:"required"`
	Port int    `mapstructure:"port" json:"port" yaml:"port" validate:"min=1,max=65535"`
}

// Config 机器人配置
type Config struct {
	Server    ServerConfig `mapstructure:"server" json:"server" yaml:"server"`
	Transport string       `mapstructure:"transport" json:"transport" yaml:"transport" validate:"oneof=websocket tcp"`

	// TickInterval 驱动 Update 的帧间隔
	TickInterval time.Duration `mapstructure:"tick_interval" json:"tick_interval" yaml:"tick_interval" validate:"gt=0"`
	// PingInterval 登录成功后发送应用层心跳的间隔，0 为不发送
	PingInterval time.Duration `mapstructure:"ping_interval" json:"ping_interval" yaml:"ping_interval" validate:"gte=0"`

	Account string `mapstructure:"account" json:"account" yaml:"account" validate:"required"`

	// Token 登录令牌，为空且配置了 Auth.SecretKey 时启动时签发
	Token string             `mapstructure:"token" json:"token" yaml:"token"`
	Auth  security.JWTConfig `mapstructure:"auth" json:"auth" yaml:"auth"`

	Log       logger.Config          `mapstructure:"log" json:"log" yaml:"log"`
	NetClient netclient.Config       `mapstructure:"netclient" json:"netclient" yaml:"netclient"`
	WebSocket websocket.ClientConfig `mapstructure:"websocket" json:"websocket" yaml:"websocket"`
	TCP       tcp.ClientConfig       `mapstructure:"tcp" json:"tcp" yaml:"tcp"`
	Metrics   prometheus.Config      `mapstructure:"metrics" json:"metrics" yaml:"metrics"`
}

// Default 默认配置
func Default() *Config {
	cfg := &Config{
		Server:       ServerConfig{Host: "127.0.0.1", Port: 9000},
		Transport:    TransportWebSocket,
		TickInterval: 50 * time.Millisecond,
		PingInterval: 10 * time.Second,
		Account:      "robot",
		Auth:         *security.DefaultJWTConfig(),
		Log:          *logger.DefaultConfig(),
		NetClient:    *netclient.DefaultConfig(),
		WebSocket:    *websocket.DefaultClientConfig(),
		TCP:          *tcp.DefaultClientConfig(),
		Metrics:      *prometheus.DefaultConfig(),
	}
	cfg.Log.SensitiveKeys = []string{"token"}
	cfg.Log.MaxFieldLength = 4096
	return cfg
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := config.Validate(c); err != nil {
		return err
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	switch c.Transport {
	case TransportWebSocket:
		return c.WebSocket.Validate()
	case TransportTCP:
		if err := c.TCP.Validate(); err != nil {
			return err
		}
		// msgpack 报文可能含有 '\n'
		if c.TCP.Framing == tcp.FramingLine && c.NetClient.Serializer == serializer.NameMsgPack {
			return ErrBinaryLineFraming
		}
	}
	return nil
}

// RegisterFlags 注册可以覆盖配置文件的命令行参数，参数名即配置 key
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("server.host", d.Server.Host, "服务端地址")
	fs.Int("server.port", d.Server.Port, "服务端端口")
	fs.String("transport", d.Transport, "传输方式: websocket 或 tcp")
	fs.String("account", d.Account, "登录账号")
	fs.String("log.level", string(d.Log.Level), "日志等级")
	fs.Bool("netclient.log_payload", d.NetClient.LogPayload, "在 debug 日志中输出消息内容")
	fs.Bool("metrics.enable", d.Metrics.Enable, "开启 /metrics")
	fs.String("metrics.addr", d.Metrics.Addr, "指标监听地址")
}

// Load 依次读取默认值、配置文件、环境变量和命令行参数，path 为空时不读文件
func Load(path string, fs *pflag.FlagSet) (*Config, config.Manager, error) {
	mgr := config.NewManager(config.WithEnvPrefix(EnvPrefix))
	if path != "" {
		if err := mgr.LoadFile(path); err != nil {
			return nil, nil, err
		}
	}
	if fs != nil {
		if err := mgr.BindFlags(fs); err != nil {
			return nil, nil, err
		}
	}

	cfg := Default()
	if err := mgr.Unmarshal(cfg); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	return cfg, mgr, nil
}
