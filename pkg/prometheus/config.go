package prometheus

import (
	"fmt"
	"strings"
	"time"
)

// Config 指标端点配置
type Config struct {
	// Enable 是否启动独立的 HTTP 服务暴露指标
	Enable bool `mapstructure:"enable" json:"enable" yaml:"enable"`

	// 监听地址
	Addr string `mapstructure:"addr" json:"addr" yaml:"addr" validate:"required_if=Enable true"`

	// 指标路径
	Path string `mapstructure:"path" json:"path" yaml:"path"`

	// 读写超时
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	// 是否注册 Go 运行时采集器
	EnableGoCollector bool `mapstructure:"enable_go_collector" json:"enable_go_collector" yaml:"enable_go_collector"`

	// 是否注册进程采集器
	EnableProcessCollector bool `mapstructure:"enable_process_collector" json:"enable_process_collector" yaml:"enable_process_collector"`
}

// DefaultConfig 默认配置，端点默认关闭
func DefaultConfig() *Config {
	return &Config{
		Addr:                   ":9100",
		Path:                   "/metrics",
		Timeout:                10 * time.Second,
		EnableGoCollector:      true,
		EnableProcessCollector: true,
	}
}

// Validate 验证并补全配置
func (c *Config) Validate() error {
	if c == nil {
		return ErrInvalidConfig
	}
	if !c.Enable {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: empty addr", ErrInvalidConfig)
	}
	if c.Path == "" {
		c.Path = "/metrics"
	}
	if !strings.HasPrefix(c.Path, "/") {
		c.Path = "/" + c.Path
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	return nil
}
