package netclient

import (
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// Option Manager 选项
type Option func(*Manager)

// WithTransportFactory 设置 Transport 工厂，每次 Init 创建一个新的 Transport
func WithTransportFactory(f transport.Factory) Option {
	return func(m *Manager) {
		m.factory = f
	}
}

// WithConfig 设置配置
func WithConfig(cfg *Config) Option {
	return func(m *Manager) {
		if cfg != nil {
			m.config = cfg
		}
	}
}

// WithSerializer 直接指定序列化器，优先于 Config.Serializer
func WithSerializer(s serializer.Serializer) Option {
	return func(m *Manager) {
		m.serializer = s
	}
}

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithDispatcher 使用外部的事件分发器
func WithDispatcher(d *event.Dispatcher) Option {
	return func(m *Manager) {
		m.dispatcher = d
	}
}

// WithMetrics 设置指标
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}
