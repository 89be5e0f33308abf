// Package app 进程级生命周期：并发运行若干任务，收到信号或任一任务失败时整体停止，
// 然后按注册的逆序释放资源。
package app

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"golang.org/x/sync/errgroup"
)

var ErrAppAlreadyRunning = errors.New("application is already running")

// RunFunc 长时间运行的任务，ctx 结束时应尽快返回
type RunFunc func(ctx context.Context) error

// Closer 资源清理接口
type Closer interface {
	Close() error
}

// CloserFunc 函数形式的 Closer
type CloserFunc func() error

func (f CloserFunc) Close() error { return f() }

type task struct {
	name string
	fn   RunFunc
}

// App 应用实例
type App struct {
	opts   Options
	logger logger.Logger

	mu      sync.Mutex
	tasks   []task
	closers []Closer

	started atomic.Bool
}

// New 创建应用
func New(opts ...Option) *App {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &App{
		opts:   o,
		logger: o.Logger.Named(o.Name),
	}
}

// Logger 应用日志
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Go 注册任务，在 Run 时启动
func (a *App) Go(name string, fn RunFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tasks = append(a.tasks, task{name: name, fn: fn})
}

// AppendCloser 注册资源，退出时逆序关闭
func (a *App) AppendCloser(closer ...Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closers = append(a.closers, closer...)
}

// Run 启动所有任务并阻塞，直到收到 SIGINT/SIGTERM、ctx 结束或某个任务返回错误
func (a *App) Run(ctx context.Context) error {
	if !a.started.CompareAndSwap(false, true) {
		return ErrAppAlreadyRunning
	}

	info := GetInfo()
	a.logger.Info("application starting",
		"name", a.opts.Name,
		"version", info.Version,
		"commit", info.GitCommit,
		"build_date", info.BuildDate,
		"go_version", info.GoVersion,
		"id", a.opts.ID,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.mu.Lock()
	tasks := append([]task(nil), a.tasks...)
	a.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, t := range tasks {
		t := t
		g.Go(func() error {
			err := t.fn(gctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("task failed", "task", t.name, "error", err)
				return err
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-gctx.Done():
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			a.logger.Info("shutting down", "cause", cause)
		} else {
			a.logger.Info("shutting down")
		}
		select {
		case err = <-done:
		case <-time.After(a.opts.StopTimeout):
			a.logger.Warn("shutdown timeout, forcing exit", "timeout", a.opts.StopTimeout)
		}
	}

	a.close()
	a.logger.Info("application exited")
	_ = a.logger.Sync()
	return err
}

func (a *App) close() {
	a.mu.Lock()
	closers := a.closers
	a.closers = nil
	a.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			a.logger.Error("failed to close component", "error", err)
		}
	}
}
