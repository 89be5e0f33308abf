package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginRequest struct {
	ProtocolID int    `json:"protocolId" codec:"protocolId"`
	Account    string `json:"account" codec:"account"`
	Payload    []byte `json:"payload,omitempty" codec:"payload"`
}

type envelopeOnly struct {
	ProtocolID *int `json:"protocolId" codec:"protocolId"`
}

func TestSerializers(t *testing.T) {
	for _, s := range []Serializer{NewJSON(), NewMsgPack()} {
		t.Run(s.Name(), func(t *testing.T) {
			req := &loginRequest{ProtocolID: 1, Account: "alice", Payload: []byte{1, 2, 3}}

			data, err := s.Serialize(req)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			var got loginRequest
			require.NoError(t, s.Deserialize(data, &got))
			assert.Equal(t, *req, got)

			// 只解析信封，其余字段忽略
			var env envelopeOnly
			require.NoError(t, s.Deserialize(data, &env))
			require.NotNil(t, env.ProtocolID)
			assert.Equal(t, 1, *env.ProtocolID)
		})
	}
}

func TestSerializers_InvalidData(t *testing.T) {
	for _, s := range []Serializer{NewJSON(), NewMsgPack()} {
		t.Run(s.Name(), func(t *testing.T) {
			var env envelopeOnly
			assert.Error(t, s.Deserialize([]byte("not-an-envelope"), &env))
		})
	}
}

func TestMsgPack_BufferIsCopied(t *testing.T) {
	s := NewMsgPack()

	first, err := s.Serialize(map[string]interface{}{"a": "first"})
	require.NoError(t, err)
	snapshot := append([]byte(nil), first...)

	_, err = s.Serialize(map[string]interface{}{"b": "second-and-longer"})
	require.NoError(t, err)

	assert.Equal(t, snapshot, first)
}

func TestByName(t *testing.T) {
	s, err := ByName("json")
	require.NoError(t, err)
	assert.IsType(t, &JSON{}, s)

	s, err = ByName("MsgPack")
	require.NoError(t, err)
	assert.IsType(t, &MsgPack{}, s)

	s, err = ByName("")
	require.NoError(t, err)
	assert.Equal(t, Default().Name(), s.Name())

	_, err = ByName("xml")
	assert.ErrorIs(t, err, ErrUnknownSerializer)
}
