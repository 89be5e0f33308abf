package netclient

import (
	"sync"

	"github.com/lk2023060901/xdooria-netclient/pkg/event"
)

// notice transport goroutine 上发生的事件，留到下一次 Update 在调用方 goroutine 处理
type notice struct {
	generation uint64

	// connected 为 true 时是连接结果，否则是需要原样转发的事件
	connected bool
	code      int
	forward   *event.Event
}

type noticeList struct {
	mu    sync.Mutex
	items []notice
}

func (l *noticeList) add(n notice) {
	l.mu.Lock()
	l.items = append(l.items, n)
	l.mu.Unlock()
}

func (l *noticeList) take() []notice {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := l.items
	l.items = nil
	return items
}

func (l *noticeList) clear() {
	l.mu.Lock()
	l.items = nil
	l.mu.Unlock()
}
