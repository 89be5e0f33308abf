package protocol

import (
	"math"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/lk2023060901/xdooria-netclient/pkg/serializer"
)

// KeyProtocolID 协议号所在的字段名
const KeyProtocolID = "protocolId"

// maxExactFloat JSON 数字按 float64 解码，超过 2^53 的整数无法精确表示
const maxExactFloat = 1 << 53

// Header 嵌入到请求/响应结构体中，序列化后与消息体字段平铺
type Header struct {
	ProtocolID int `json:"protocolId" codec:"protocolId"`
}

// NewHeader 创建协议头
func NewHeader(id int) Header {
	return Header{ProtocolID: id}
}

// ID 协议号
func (h Header) ID() int {
	return h.ProtocolID
}

// PeekID 读取消息的协议号，不解析消息体
//
// 消息必须是以字段名为键的对象，msgpack 数组等按位置编码的记录视为非法。
func PeekID(s serializer.Serializer, raw []byte) (int, error) {
	var env map[string]interface{}
	if err := s.Deserialize(raw, &env); err != nil {
		return 0, errors.Mark(errors.Wrap(err, "decode envelope"), ErrMalformedEnvelope)
	}
	v, ok := env[KeyProtocolID]
	if !ok || v == nil {
		return 0, errors.Wrap(ErrMalformedEnvelope, "missing protocolId")
	}
	id, ok := toProtocolID(v)
	if !ok {
		return 0, errors.Wrapf(ErrMalformedEnvelope, "invalid protocolId %v (%T)", v, v)
	}
	return id, nil
}

// toProtocolID 只接受落在 int 范围内的整数
func toProtocolID(v interface{}) (int, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		if i < math.MinInt || i > math.MaxInt {
			return 0, false
		}
		return int(i), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt {
			return 0, false
		}
		return int(u), true
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || math.Abs(f) > maxExactFloat {
			return 0, false
		}
		return int(f), true
	default:
		return 0, false
	}
}
