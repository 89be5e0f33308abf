package prometheus

import "errors"

var (
	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("prometheus: invalid config")

	// ErrDisabled 未开启指标端点
	ErrDisabled = errors.New("prometheus: exporter disabled")
)
