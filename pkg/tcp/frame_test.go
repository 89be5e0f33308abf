package tcp

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrame_Line(t *testing.T) {
	var buf bytes.Buffer
	for _, m := range []string{`{"protocolId":1}`, `{"protocolId":2}`} {
		_, err := writeFrame(&buf, FramingLine, []byte(m))
		require.NoError(t, err)
	}
	buf.WriteString("\r\n\n") // 空行被跳过
	_, err := writeFrame(&buf, FramingLine, []byte(`{"protocolId":3}`))
	require.NoError(t, err)

	fr := newFrameReader(&buf, FramingLine, 16, 1024)
	for _, want := range []string{`{"protocolId":1}`, `{"protocolId":2}`, `{"protocolId":3}`} {
		got, err := fr.next()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, err = fr.next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrame_LineRejectsNewline(t *testing.T) {
	var buf bytes.Buffer
	_, err := writeFrame(&buf, FramingLine, []byte("a\nb"))
	assert.ErrorIs(t, err, ErrInvalidFrame)
	assert.Zero(t, buf.Len())
}

func TestFrame_LineManyEmptyLines(t *testing.T) {
	input := strings.Repeat("\n", 200000) + `{"protocolId":1}` + "\n"
	fr := newFrameReader(strings.NewReader(input), FramingLine, 16, 1024)
	got, err := fr.next()
	require.NoError(t, err)
	assert.Equal(t, `{"protocolId":1}`, string(got))
}

func TestFrame_EmptyMessage(t *testing.T) {
	for _, framing := range []Framing{FramingLine, FramingLength} {
		var buf bytes.Buffer
		_, err := writeFrame(&buf, framing, nil)
		assert.ErrorIs(t, err, ErrInvalidFrame, framing)
		assert.Zero(t, buf.Len())
	}
}

func TestFrame_LineTooBig(t *testing.T) {
	fr := newFrameReader(strings.NewReader(strings.Repeat("x", 100)+"\n"), FramingLine, 16, 50)
	_, err := fr.next()
	assert.ErrorIs(t, err, ErrMessageTooBig)
}

func TestFrame_LineTruncated(t *testing.T) {
	fr := newFrameReader(strings.NewReader(`{"protocolId":1`), FramingLine, 16, 1024)
	_, err := fr.next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestFrame_Length(t *testing.T) {
	var buf bytes.Buffer
	payloads := [][]byte{{0x0a, 0x00, 0xff}, []byte("hello")}
	for _, p := range payloads {
		n, err := writeFrame(&buf, FramingLength, p)
		require.NoError(t, err)
		assert.Equal(t, lengthPrefixSize+len(p), n)
	}

	fr := newFrameReader(&buf, FramingLength, 16, 1024)
	for _, want := range payloads {
		got, err := fr.next()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestFrame_LengthErrors(t *testing.T) {
	fr := newFrameReader(bytes.NewReader([]byte{0, 0, 0, 0}), FramingLength, 16, 1024)
	_, err := fr.next()
	assert.ErrorIs(t, err, ErrInvalidFrame)

	fr = newFrameReader(bytes.NewReader([]byte{0, 0, 4, 1}), FramingLength, 16, 1024)
	_, err = fr.next()
	assert.ErrorIs(t, err, ErrMessageTooBig)

	fr = newFrameReader(bytes.NewReader([]byte{0, 0, 0, 5, 'a'}), FramingLength, 16, 1024)
	_, err = fr.next()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
