// Package logger 提供基于 zap 的结构化日志。
// 各 pkg 组件只依赖 Logger 接口，未注入时使用 NoopLogger。
package logger

import "context"

// Logger 日志接口，参数为 key/value 对
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})

	DebugContext(ctx context.Context, msg string, keysAndValues ...interface{})
	InfoContext(ctx context.Context, msg string, keysAndValues ...interface{})
	WarnContext(ctx context.Context, msg string, keysAndValues ...interface{})
	ErrorContext(ctx context.Context, msg string, keysAndValues ...interface{})

	// Named 创建子 logger，名称以 "." 拼接
	Named(name string) Logger
	// WithFields 返回携带固定字段的 logger
	WithFields(keysAndValues ...interface{}) Logger

	Sync() error
}
