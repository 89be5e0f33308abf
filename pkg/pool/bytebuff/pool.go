// Package bytebuff 基于 valyala/bytebufferpool 的编码缓冲池，带简单的使用统计。
package bytebuff

import (
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Pool 编码缓冲池，底层 bytebufferpool 会根据历史使用自动校准容量
type Pool struct {
	pool bytebufferpool.Pool

	gets uint64
	puts uint64
}

var defaultPool = NewPool()

// NewPool 创建缓冲池
func NewPool() *Pool {
	return &Pool{}
}

// Get 获取一个已清空的 ByteBuffer，用完必须 Put
func (p *Pool) Get() *bytebufferpool.ByteBuffer {
	atomic.AddUint64(&p.gets, 1)
	return p.pool.Get()
}

// Put 归还 ByteBuffer，之后不能再访问 buf.B
func (p *Pool) Put(buf *bytebufferpool.ByteBuffer) {
	if buf == nil {
		return
	}
	atomic.AddUint64(&p.puts, 1)
	p.pool.Put(buf)
}

// Stats 返回 Get/Put 次数，两者差值为仍在使用中的 buffer 数
func (p *Pool) Stats() (gets, puts uint64) {
	return atomic.LoadUint64(&p.gets), atomic.LoadUint64(&p.puts)
}

// Get 从默认池获取
func Get() *bytebufferpool.ByteBuffer {
	return defaultPool.Get()
}

// Put 归还到默认池
func Put(buf *bytebufferpool.ByteBuffer) {
	defaultPool.Put(buf)
}

// Stats 默认池的统计
func Stats() (gets, puts uint64) {
	return defaultPool.Stats()
}

// Copy 复制 buf 中的数据，buf 归还池后仍可安全使用返回值
func Copy(buf *bytebufferpool.ByteBuffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.B)
	return out
}
