// Package serializer 消息体编解码，JSON 为默认的线上格式。
package serializer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownSerializer 不支持的序列化器名称
	ErrUnknownSerializer = errors.New("serializer: unknown serializer")
)

// Serializer 序列化器接口
type Serializer interface {
	// Serialize 序列化
	Serialize(v any) ([]byte, error)
	// Deserialize 反序列化
	Deserialize(data []byte, v any) error
	// Name 配置中使用的名称
	Name() string
}

const (
	NameJSON    = "json"
	NameMsgPack = "msgpack"
)

// JSON JSON 序列化器
type JSON struct{}

// NewJSON 创建 JSON 序列化器
func NewJSON() *JSON {
	return &JSON{}
}

func (s *JSON) Serialize(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (s *JSON) Deserialize(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (s *JSON) Name() string {
	return NameJSON
}

var defaultSerializer Serializer = NewJSON()

// SetDefault 设置默认序列化器
func SetDefault(s Serializer) {
	if s != nil {
		defaultSerializer = s
	}
}

// Default 获取默认序列化器
func Default() Serializer {
	return defaultSerializer
}

// ByName 按名称获取序列化器，名称为空时返回默认序列化器
func ByName(name string) (Serializer, error) {
	switch strings.ToLower(name) {
	case "":
		return Default(), nil
	case NameJSON:
		return NewJSON(), nil
	case NameMsgPack:
		return NewMsgPack(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSerializer, name)
	}
}
