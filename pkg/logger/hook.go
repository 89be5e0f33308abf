package logger

import (
	"go.uber.org/zap/zapcore"
)

// Hook 日志钩子，写入前回调，返回 false 跳过该条日志
type Hook interface {
	OnWrite(entry zapcore.Entry, fields []zapcore.Field) bool
}

// HookFunc 函数式 Hook
type HookFunc func(entry zapcore.Entry, fields []zapcore.Field) bool

func (f HookFunc) OnWrite(entry zapcore.Entry, fields []zapcore.Field) bool {
	return f(entry, fields)
}

// HookedCore 带钩子的 Core
type HookedCore struct {
	zapcore.Core
	hooks []Hook
}

// NewHookedCore 创建带钩子的 Core
func NewHookedCore(core zapcore.Core, hooks ...Hook) zapcore.Core {
	return &HookedCore{Core: core, hooks: hooks}
}

func (h *HookedCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if h.Enabled(entry.Level) {
		return ce.AddCore(entry, h)
	}
	return ce
}

func (h *HookedCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	for _, hook := range h.hooks {
		if !hook.OnWrite(entry, fields) {
			return nil
		}
	}
	return h.Core.Write(entry, fields)
}

func (h *HookedCore) With(fields []zapcore.Field) zapcore.Core {
	return &HookedCore{Core: h.Core.With(fields), hooks: h.hooks}
}

// Redacted 脱敏后的字段值
const Redacted = "***REDACTED***"

// SensitiveDataHook 对指定 key 的字符串字段脱敏
func SensitiveDataHook(sensitiveKeys ...string) Hook {
	keys := make(map[string]struct{}, len(sensitiveKeys))
	for _, k := range sensitiveKeys {
		keys[k] = struct{}{}
	}
	return HookFunc(func(entry zapcore.Entry, fields []zapcore.Field) bool {
		for i := range fields {
			if _, ok := keys[fields[i].Key]; ok && fields[i].Type == zapcore.StringType {
				fields[i].String = Redacted
			}
		}
		return true
	})
}

// TruncateHook 截断超过 maxLen 的字符串字段，已脱敏的字段保持原样
func TruncateHook(maxLen int) Hook {
	return HookFunc(func(entry zapcore.Entry, fields []zapcore.Field) bool {
		if maxLen <= 0 {
			return true
		}
		for i := range fields {
			if fields[i].Type != zapcore.StringType || fields[i].String == Redacted {
				continue
			}
			if len(fields[i].String) > maxLen {
				fields[i].String = fields[i].String[:maxLen] + "...(truncated)"
			}
		}
		return true
	})
}
