package logger

// Option 配置选项
type Option func(*ZapLogger)

// WithName 设置 logger 名称
func WithName(name string) Option {
	return func(l *ZapLogger) {
		l.name = name
	}
}

// WithGlobalFields 添加全局字段
func WithGlobalFields(keysAndValues ...interface{}) Option {
	return func(l *ZapLogger) {
		for i := 0; i+1 < len(keysAndValues); i += 2 {
			if key, ok := keysAndValues[i].(string); ok {
				l.globalFields[key] = keysAndValues[i+1]
			}
		}
	}
}

// WithHooks 添加钩子
func WithHooks(hooks ...Hook) Option {
	return func(l *ZapLogger) {
		l.hooks = append(l.hooks, hooks...)
	}
}

// WithLevel 覆盖日志等级
func WithLevel(level Level) Option {
	return func(l *ZapLogger) {
		l.config.Level = level
	}
}

// WithContextExtractor 设置 context 字段提取器
func WithContextExtractor(fn ContextFieldExtractor) Option {
	return func(l *ZapLogger) {
		if fn != nil {
			l.contextExtractor = fn
		}
	}
}
