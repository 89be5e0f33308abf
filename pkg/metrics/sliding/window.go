// Package sliding 按时间桶滚动的延迟统计
package sliding

import (
	"fmt"
	"sync"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/config"
)

// WindowConfig 滑动窗口配置
type WindowConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`
	// 窗口大小
	WindowSize time.Duration `mapstructure:"window_size" json:"window_size" yaml:"window_size"`
	// 桶数量
	BucketCount int `mapstructure:"bucket_count" json:"bucket_count" yaml:"bucket_count"`
}

// DefaultWindowConfig 默认配置
func DefaultWindowConfig() *WindowConfig {
	return &WindowConfig{
		Enabled:     true,
		WindowSize:  60 * time.Second,
		BucketCount: 60,
	}
}

type bucket struct {
	start      time.Time
	count      int64
	total      time.Duration
	min        time.Duration
	max        time.Duration
	successCnt int64
	failureCnt int64
}

// Window 滑动窗口统计器
//
// 桶在 Record/Stats 时按当前时间惰性轮转，不需要后台 goroutine。
type Window struct {
	config *WindowConfig
	width  time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets []bucket
}

// Option 窗口选项
type Option func(*Window)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// NewWindow 创建滑动窗口统计器，cfg 中的零值使用默认配置
func NewWindow(cfg *WindowConfig, opts ...Option) (*Window, error) {
	merged, err := config.MergeConfig(DefaultWindowConfig(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to merge window config: %w", err)
	}
	if merged.BucketCount <= 0 || merged.WindowSize < time.Duration(merged.BucketCount) {
		return nil, fmt.Errorf("sliding: invalid window %s with %d buckets", merged.WindowSize, merged.BucketCount)
	}

	w := &Window{
		config:  merged,
		width:   merged.WindowSize / time.Duration(merged.BucketCount),
		now:     time.Now,
		buckets: make([]bucket, merged.BucketCount),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// current 返回当前时间所在的桶，过期的桶被重置
func (w *Window) current(now time.Time) *bucket {
	start := now.Truncate(w.width)
	idx := int(start.UnixNano()/int64(w.width)) % len(w.buckets)
	b := &w.buckets[idx]
	if !b.start.Equal(start) {
		*b = bucket{start: start}
	}
	return b
}

// Record 记录一次请求
func (w *Window) Record(latency time.Duration, success bool) {
	if !w.config.Enabled {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	b := w.current(w.now())
	if b.count == 0 || latency < b.min {
		b.min = latency
	}
	if latency > b.max {
		b.max = latency
	}
	b.count++
	b.total += latency
	if success {
		b.successCnt++
	} else {
		b.failureCnt++
	}
}

// Stats 统计结果
type Stats struct {
	// 每秒请求数
	QPS float64 `json:"qps"`
	// 平均延迟
	AvgLatency time.Duration `json:"avg_latency"`
	MinLatency time.Duration `json:"min_latency"`
	MaxLatency time.Duration `json:"max_latency"`
	// 成功率 (0-100)
	SuccessRate  float64 `json:"success_rate"`
	TotalCount   int64   `json:"total_count"`
	SuccessCount int64   `json:"success_count"`
	FailureCount int64   `json:"failure_count"`
}

// Stats 获取窗口内的统计数据
func (w *Window) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	oldest := now.Truncate(w.width).Add(-w.config.WindowSize + w.width)

	var s Stats
	var total time.Duration
	for _, b := range w.buckets {
		if b.count == 0 || b.start.Before(oldest) || b.start.After(now) {
			continue
		}
		if s.TotalCount == 0 || b.min < s.MinLatency {
			s.MinLatency = b.min
		}
		if b.max > s.MaxLatency {
			s.MaxLatency = b.max
		}
		s.TotalCount += b.count
		s.SuccessCount += b.successCnt
		s.FailureCount += b.failureCnt
		total += b.total
	}

	s.QPS = float64(s.TotalCount) / w.config.WindowSize.Seconds()
	if s.TotalCount > 0 {
		s.AvgLatency = total / time.Duration(s.TotalCount)
		s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalCount) * 100
	}
	return s
}
