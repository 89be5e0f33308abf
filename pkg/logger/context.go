package logger

import (
	"context"

	"go.uber.org/zap"
)

// ContextFieldExtractor 从 context 提取日志字段
type ContextFieldExtractor func(ctx context.Context) []zap.Field

// DefaultContextExtractor 不提取任何字段，避免调用处做 nil 判断
func DefaultContextExtractor(ctx context.Context) []zap.Field {
	return nil
}
