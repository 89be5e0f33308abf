package logger

import "errors"

var (
	ErrInvalidOutputPath  = errors.New("logger: output path is required when file output is enabled")
	ErrNoOutputEnabled    = errors.New("logger: at least one output (console or file) must be enabled")
	ErrInvalidLevel       = errors.New("logger: invalid level")
	ErrInvalidFieldLength = errors.New("logger: max field length must not be negative")
)
