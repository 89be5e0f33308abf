package netclient

import (
	"sync"

	"github.com/eapache/queue"
)

// Queue 无界 FIFO 消息队列，可在多个 goroutine 间并发使用
type Queue struct {
	mu sync.Mutex
	q  *queue.Queue
}

// NewQueue 创建空队列
func NewQueue() *Queue {
	return &Queue{q: queue.New()}
}

// Push 追加一条消息，之后调用方不应再修改 item
func (q *Queue) Push(item []byte) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.q.Add(item)
	return q.q.Length()
}

// Drain 取出当前所有消息，之后 Push 的消息留给下一次 Drain
func (q *Queue) Drain() [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.q.Length()
	if n == 0 {
		return nil
	}
	batch := make([][]byte, n)
	for i := range batch {
		batch[i] = q.q.Remove().([]byte)
	}
	return batch
}

// Len 当前长度
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}

// Clear 丢弃所有消息，返回丢弃数量
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.q.Length()
	q.q = queue.New()
	return n
}
