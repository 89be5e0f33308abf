package logger

import (
	"os"
	"sync"
)

var (
	defaultLogger Logger
	defaultMu     sync.RWMutex
)

// InitDefault 使用配置初始化默认 logger
func InitDefault(cfg *Config, opts ...Option) error {
	l, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	SetDefault(l)
	return nil
}

// InitDefaultFromEnv 从 XDOORIA_LOG_* 环境变量初始化默认 logger
func InitDefaultFromEnv() error {
	cfg := &Config{}
	if level := os.Getenv("XDOORIA_LOG_LEVEL"); level != "" {
		cfg.Level = Level(level)
	}
	if format := os.Getenv("XDOORIA_LOG_FORMAT"); format != "" {
		cfg.Format = Format(format)
	}
	if path := os.Getenv("XDOORIA_LOG_PATH"); path != "" {
		cfg.EnableFile = true
		cfg.OutputPath = path
	}
	if os.Getenv("XDOORIA_LOG_DEVELOPMENT") == "true" {
		cfg.Development = true
	}
	return InitDefault(cfg)
}

// SetDefault 设置默认 logger
func SetDefault(l Logger) {
	if l == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
}

// Default 获取默认 logger，未初始化时懒加载控制台 logger
func Default() Logger {
	defaultMu.RLock()
	l := defaultLogger
	defaultMu.RUnlock()
	if l != nil {
		return l
	}

	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		zl, err := New(DefaultConfig())
		if err != nil {
			defaultLogger = NewNoop()
		} else {
			defaultLogger = zl
		}
	}
	return defaultLogger
}

// Named 从默认 logger 派生具名 logger
func Named(name string) Logger {
	return Default().Named(name)
}
