package serializer

import (
	"reflect"

	"github.com/hashicorp/go-msgpack/v2/codec"
	"github.com/lk2023060901/xdooria-netclient/pkg/pool/bytebuff"
)

// msgpackHandle 与 Consul 一致：RawToString=true，map 解码为 map[string]interface{}
var msgpackHandle = &codec.MsgpackHandle{}

func init() {
	msgpackHandle.MapType = reflect.TypeOf(map[string]interface{}{})
	msgpackHandle.RawToString = true
}

// MsgPack msgpack 序列化器，结构体字段使用 codec tag
type MsgPack struct{}

// NewMsgPack 创建 msgpack 序列化器
func NewMsgPack() *MsgPack {
	return &MsgPack{}
}

func (s *MsgPack) Serialize(v any) ([]byte, error) {
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	if err := codec.NewEncoder(buf, msgpackHandle).Encode(v); err != nil {
		return nil, err
	}
	// buf 会被复用，返回副本
	return bytebuff.Copy(buf), nil
}

func (s *MsgPack) Deserialize(data []byte, v any) error {
	return codec.NewDecoderBytes(data, msgpackHandle).Decode(v)
}

func (s *MsgPack) Name() string {
	return NameMsgPack
}
