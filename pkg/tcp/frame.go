package tcp

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lk2023060901/xdooria-netclient/pkg/pool/bytebuff"
)

const lengthPrefixSize = 4

// frameReader 从流中切出完整消息
type frameReader struct {
	r       *bufio.Reader
	framing Framing
	max     int
}

func newFrameReader(r io.Reader, framing Framing, bufSize, max int) *frameReader {
	return &frameReader{r: bufio.NewReaderSize(r, bufSize), framing: framing, max: max}
}

// next 返回下一条消息，返回的切片归调用方所有
func (f *frameReader) next() ([]byte, error) {
	if f.framing == FramingLength {
		return f.nextLength()
	}
	return f.nextLine()
}

func (f *frameReader) nextLine() ([]byte, error) {
	for {
		line, err := f.readLine()
		if err != nil {
			return nil, err
		}
		// 空行视为保活，跳过
		if len(line) > 0 {
			return line, nil
		}
	}
}

// readLine 读取一行并去掉行尾的 \n 或 \r\n
func (f *frameReader) readLine() ([]byte, error) {
	var line []byte
	for {
		chunk, err := f.r.ReadSlice('\n')
		if len(line)+len(chunk) > f.max+1 {
			return nil, fmt.Errorf("%w: exceeds %d bytes", ErrMessageTooBig, f.max)
		}
		line = append(line, chunk...)
		if err == nil {
			break
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err == io.EOF && len(line) > 0 {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return bytes.TrimSuffix(line[:len(line)-1], []byte{'\r'}), nil
}

func (f *frameReader) nextLength() ([]byte, error) {
	var header [lengthPrefixSize]byte
	if _, err := io.ReadFull(f.r, header[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, fmt.Errorf("%w: zero length", ErrInvalidFrame)
	}
	if int64(n) > int64(f.max) {
		return nil, fmt.Errorf("%w: %d exceeds %d bytes", ErrMessageTooBig, n, f.max)
	}
	data := make([]byte, n)
	if _, err := io.ReadFull(f.r, data); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return data, nil
}

// checkFrame 检查消息能否按 framing 编码
func checkFrame(framing Framing, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty message", ErrInvalidFrame)
	}
	if framing != FramingLength && bytes.IndexByte(data, '\n') >= 0 {
		return fmt.Errorf("%w: payload contains a line break", ErrInvalidFrame)
	}
	return nil
}

// writeFrame 编码一条消息并一次写出
func writeFrame(w io.Writer, framing Framing, data []byte) (int, error) {
	if err := checkFrame(framing, data); err != nil {
		return 0, err
	}
	buf := bytebuff.Get()
	defer bytebuff.Put(buf)

	switch framing {
	case FramingLength:
		var header [lengthPrefixSize]byte
		binary.BigEndian.PutUint32(header[:], uint32(len(data)))
		_, _ = buf.Write(header[:])
		_, _ = buf.Write(data)
	default:
		_, _ = buf.Write(data)
		_ = buf.WriteByte('\n')
	}
	return w.Write(buf.B)
}
