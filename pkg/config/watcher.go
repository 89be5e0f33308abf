package config

import (
	"fmt"
	"sync"
)

// Watcher 类型化的配置热更新，文件变化后重新解析并验证，
// 验证失败时保留旧配置并通过 OnError 回调上报
type Watcher[T any] struct {
	mgr       Manager
	key       string
	mu        sync.RWMutex
	current   *T
	callbacks []func(*T)
	onError   func(error)
}

// NewWatcher 解析 key 对应的配置（key 为空时解析整个文件）并开始监听
func NewWatcher[T any](mgr Manager, key string) (*Watcher[T], error) {
	w := &Watcher[T]{mgr: mgr, key: key}

	cfg, err := w.load()
	if err != nil {
		return nil, err
	}
	w.current = cfg

	if err := mgr.Watch(w.reload); err != nil {
		return nil, err
	}
	return w, nil
}

// Config 当前配置
func (w *Watcher[T]) Config() *T {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange 注册配置变化回调
func (w *Watcher[T]) OnChange(callback func(*T)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// OnError 注册重新加载失败的回调
func (w *Watcher[T]) OnError(callback func(error)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onError = callback
}

func (w *Watcher[T]) load() (*T, error) {
	var cfg T
	var err error
	if w.key == "" {
		err = w.mgr.Unmarshal(&cfg)
	} else {
		err = w.mgr.UnmarshalKey(w.key, &cfg)
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("reload %q: %w", w.key, err)
	}
	return &cfg, nil
}

func (w *Watcher[T]) reload() {
	cfg, err := w.load()

	w.mu.Lock()
	if err != nil {
		onError := w.onError
		w.mu.Unlock()
		if onError != nil {
			onError(err)
		}
		return
	}
	w.current = cfg
	callbacks := make([]func(*T), len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}
