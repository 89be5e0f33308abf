package transport

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// RetryConfig 首次连接的重试配置，连接建立后中断不会重连
type RetryConfig struct {
	// MaxAttempts 最大尝试次数，包含第一次
	MaxAttempts int `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts" validate:"gte=0"`
	// InitialDelay 第一次失败后的等待时间
	InitialDelay time.Duration `mapstructure:"initial_delay" json:"initial_delay" yaml:"initial_delay"`
	// MaxDelay 最大等待时间
	MaxDelay time.Duration `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay"`
	// Multiplier 延迟倍数
	Multiplier float64 `mapstructure:"multiplier" json:"multiplier" yaml:"multiplier"`
	// RandomFactor 随机因子（0-1）
	RandomFactor float64 `mapstructure:"random_factor" json:"random_factor" yaml:"random_factor" validate:"gte=0,lte=1"`
}

// DefaultRetryConfig 默认重试 3 次
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		RandomFactor: 0.1,
	}
}

// Validate 校验并补全默认值
func (c *RetryConfig) Validate() error {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 1
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1
	}
	if c.RandomFactor < 0 || c.RandomFactor > 1 {
		return fmt.Errorf("transport: random_factor must be within [0, 1], got %v", c.RandomFactor)
	}
	if c.MaxDelay > 0 && c.InitialDelay > c.MaxDelay {
		return fmt.Errorf("transport: initial_delay %v exceeds max_delay %v", c.InitialDelay, c.MaxDelay)
	}
	return nil
}

// Delay 第 attempt 次失败后的等待时间（attempt 从 1 开始），指数退避加随机抖动
func (c RetryConfig) Delay(attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 || c.InitialDelay <= 0 {
		return 0
	}
	mult := c.Multiplier
	if mult < 1 {
		mult = 1
	}

	delay := float64(c.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if c.MaxDelay > 0 && delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.RandomFactor > 0 {
		r := 0.5
		if rng != nil {
			r = rng.Float64()
		}
		jitter := delay * c.RandomFactor
		delay = delay - jitter + r*2*jitter
	}
	return time.Duration(delay)
}

// AttemptFunc 一次连接尝试
type AttemptFunc func(ctx context.Context, attempt int) error

// Retry 按配置重试 fn，直到成功、次数用尽或 ctx 结束；返回最后一次的错误
func Retry(ctx context.Context, cfg RetryConfig, fn AttemptFunc) error {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr == nil {
				return err
			}
			return fmt.Errorf("%w (last error: %v)", err, lastErr)
		}

		if lastErr = fn(ctx, attempt); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(cfg.Delay(attempt, rng))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr)
		case <-timer.C:
		}
	}
	return lastErr
}
