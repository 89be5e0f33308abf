// Package prometheus 持有进程内的指标注册表，并按配置通过 HTTP 暴露。
package prometheus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter 指标注册表与 HTTP 端点
type Exporter struct {
	config   *Config
	registry *prometheus.Registry
	logger   logger.Logger
}

// Option Exporter 选项
type Option func(*Exporter)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.logger = l
		}
	}
}

// New 创建 Exporter，cfg 为 nil 时使用默认配置
func New(cfg *Config, opts ...Option) (*Exporter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Exporter{
		config:   cfg,
		registry: prometheus.NewRegistry(),
		logger:   logger.NewNoop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.EnableGoCollector {
		e.registry.MustRegister(collectors.NewGoCollector())
	}
	if cfg.EnableProcessCollector {
		e.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return e, nil
}

// Registry 组件在此注册自己的指标
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler 返回指标的 HTTP Handler
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Serve 监听配置的地址直到 ctx 结束，未开启时返回 ErrDisabled
func (e *Exporter) Serve(ctx context.Context) error {
	if !e.config.Enable {
		return ErrDisabled
	}
	ln, err := net.Listen("tcp", e.config.Addr)
	if err != nil {
		return fmt.Errorf("prometheus: listen %s: %w", e.config.Addr, err)
	}
	return e.serve(ctx, ln)
}

func (e *Exporter) serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle(e.config.Path, e.Handler())
	srv := &http.Server{
		Handler:      mux,
		ReadTimeout:  e.config.Timeout,
		WriteTimeout: e.config.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	e.logger.Info("metrics listening", "addr", ln.Addr().String(), "path", e.config.Path)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("prometheus: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("prometheus: shutdown: %w", err)
	}
	return nil
}
