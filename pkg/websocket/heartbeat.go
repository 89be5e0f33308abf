package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/panjf2000/ants/v2"
)

// heartbeat Ping/Pong 探活，超时后关闭连接，由读循环上报中断
type heartbeat struct {
	config  *HeartbeatConfig
	conn    *Connection
	logger  logger.Logger
	metrics *ClientMetrics

	lastPong  atomic.Int64 // unix nano
	missCount atomic.Int32

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newHeartbeat(cfg *HeartbeatConfig, conn *Connection, log logger.Logger, metrics *ClientMetrics) *heartbeat {
	h := &heartbeat{
		config:  cfg,
		conn:    conn,
		logger:  log,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
	h.lastPong.Store(time.Now().UnixNano())
	conn.SetPongHandler(func(string) error {
		h.onPong()
		return nil
	})
	return h
}

func (h *heartbeat) start(pool *ants.Pool) error {
	return pool.Submit(h.loop)
}

func (h *heartbeat) loop() {
	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := h.conn.Ping(); err != nil {
				h.missCount.Add(1)
				h.logger.Debug("websocket heartbeat ping error", "error", err, "conn_id", h.conn.ID())
			} else {
				h.metrics.onHeartbeatSent()
			}

			if h.timedOut() {
				h.logger.Warn("websocket heartbeat timeout",
					"miss_count", h.missCount.Load(),
					"last_pong", time.Unix(0, h.lastPong.Load()),
					"conn_id", h.conn.ID(),
				)
				h.metrics.onHeartbeatTimeout()
				_ = h.conn.CloseWithError(ErrHeartbeatTimeout)
				return
			}

		case <-h.stopCh:
			return
		case <-h.conn.closeChan:
			return
		}
	}
}

func (h *heartbeat) onPong() {
	h.lastPong.Store(time.Now().UnixNano())
	h.missCount.Store(0)
	h.metrics.onHeartbeatReceived()
}

func (h *heartbeat) timedOut() bool {
	if h.config.MaxMissCount > 0 && int(h.missCount.Load()) >= h.config.MaxMissCount {
		return true
	}
	if h.config.Timeout > 0 {
		return time.Since(time.Unix(0, h.lastPong.Load())) > h.config.Timeout
	}
	return false
}

func (h *heartbeat) stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})
}
