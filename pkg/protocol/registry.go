// Package protocol 维护协议号到解码器和事件主题的映射。
package protocol

import (
	"slices"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
)

// TopicPrefix 协议事件主题前缀
const TopicPrefix = "socket_"

// Topic 协议号对应的事件主题
func Topic(id int) string {
	return TopicPrefix + strconv.Itoa(id)
}

// Decoder 将原始消息解码为类型化的消息
type Decoder func(raw []byte) (any, error)

// Entry 注册表项
type Entry struct {
	ID      int
	Decoder Decoder
	Topic   string
}

// Registry 协议注册表
//
// 启动时注册，Freeze 之后只读，可在多个 goroutine 间共享。
type Registry struct {
	mu      sync.RWMutex
	entries map[int]Entry
	frozen  bool
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]Entry)}
}

// Register 注册协议号与解码器
func (r *Registry) Register(id int, dec Decoder) error {
	if dec == nil {
		return errors.Wrapf(ErrNilDecoder, "protocol %d", id)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return errors.Wrapf(ErrRegistryFrozen, "register protocol %d", id)
	}
	if _, ok := r.entries[id]; ok {
		return errors.Wrapf(ErrDuplicateProtocol, "protocol %d", id)
	}
	r.entries[id] = Entry{ID: id, Decoder: dec, Topic: Topic(id)}
	return nil
}

// MustRegister 注册失败时 panic，用于包初始化
func (r *Registry) MustRegister(id int, dec Decoder) {
	if err := r.Register(id, dec); err != nil {
		panic(err)
	}
}

// RegisterType 注册类型化消息，解码结果为 *T
func RegisterType[T any](r *Registry, id int, s serializer.Serializer) error {
	if s == nil {
		s = serializer.Default()
	}
	return r.Register(id, func(raw []byte) (any, error) {
		msg := new(T)
		if err := s.Deserialize(raw, msg); err != nil {
			return nil, err
		}
		return msg, nil
	})
}

// Lookup 查找协议，未注册返回 false
func (r *Registry) Lookup(id int) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// Freeze 冻结注册表
func (r *Registry) Freeze() {
	r.mu.Lock()
	r.frozen = true
	r.mu.Unlock()
}

// Frozen 是否已冻结
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

// IDs 已注册的协议号，升序
func (r *Registry) IDs() []int {
	r.mu.RLock()
	ids := make([]int, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	slices.Sort(ids)
	return ids
}

// Len 已注册数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
