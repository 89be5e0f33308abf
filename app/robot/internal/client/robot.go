package client

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/lk2023060901/xdooria-netclient/app/robot/internal/msg"
	"github.com/lk2023060901/xdooria-netclient/pkg/event"
	"github.com/lk2023060901/xdooria-netclient/pkg/logger"
	"github.com/lk2023060901/xdooria-netclient/pkg/metrics/sliding"
	"github.com/lk2023060901/xdooria-netclient/pkg/netclient"
	"github.com/lk2023060901/xdooria-netclient/pkg/protocol"
	"github.com/lk2023060901/xdooria-netclient/pkg/transport"
)

// Robot 基于 netclient 的测试客户端：连接成功后登录，登录后定时发送心跳
//
// 除 Connect、Close 外，所有方法与事件回调都在调用 Tick 的 goroutine 上执行。
type Robot struct {
	mgr     *netclient.Manager
	logger  logger.Logger
	account string
	token   string

	pingInterval time.Duration
	sincePing    time.Duration
	seq          int

	subs     []subscription
	userID   string
	loggedIn atomic.Bool
	lastRTT  atomic.Int64
	rtt      *sliding.Window
}

type subscription struct {
	topic string
	id    string
}

// Option Robot 选项
type Option func(*Robot)

// WithLogger 设置日志
func WithLogger(l logger.Logger) Option {
	return func(r *Robot) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithToken 登录令牌
func WithToken(token string) Option {
	return func(r *Robot) {
		r.token = token
	}
}

// WithPingInterval 登录后的心跳间隔，0 为不发送
func WithPingInterval(d time.Duration) Option {
	return func(r *Robot) {
		r.pingInterval = d
	}
}

// NewRobot 创建机器人并订阅网络事件
func NewRobot(mgr *netclient.Manager, account string, opts ...Option) *Robot {
	r := &Robot{
		mgr:     mgr,
		logger:  logger.Default().Named("robot.client"),
		account: account,
	}
	for _, opt := range opts {
		opt(r)
	}
	// 默认配置不会失败
	r.rtt, _ = sliding.NewWindow(nil)

	d := mgr.Dispatcher()
	r.subscribe(d, netclient.TopicNetworkReady, r.onNetworkReady)
	r.subscribe(d, netclient.TopicNetworkInterrupted, r.onInterrupted)
	r.subscribe(d, protocol.Topic(msg.ProtoLogin), r.onLogin)
	r.subscribe(d, protocol.Topic(msg.ProtoPing), r.onPong)
	return r
}

func (r *Robot) subscribe(d *event.Dispatcher, topic string, l event.Listener) {
	r.subs = append(r.subs, subscription{topic: topic, id: d.Subscribe(topic, l)})
}

// Connect 开始连接，结果在之后的 Tick 中处理
func (r *Robot) Connect(host string, port int) error {
	r.loggedIn.Store(false)
	return r.mgr.Init(host, port)
}

// Close 断开连接并取消订阅
func (r *Robot) Close() {
	r.mgr.Uninit()
	d := r.mgr.Dispatcher()
	for _, s := range r.subs {
		d.Unsubscribe(s.topic, s.id)
	}
	r.subs = nil
	r.loggedIn.Store(false)
}

// Tick 推进一帧
func (r *Robot) Tick(dt time.Duration) {
	r.mgr.Update(dt)

	if !r.loggedIn.Load() || r.pingInterval <= 0 {
		return
	}
	r.sincePing += dt
	if r.sincePing < r.pingInterval {
		return
	}
	r.sincePing = 0
	r.seq++
	if err := r.mgr.SendMessage(msg.NewPingRequest(r.seq, time.Now().UnixMilli())); err != nil {
		r.logger.Warn("send ping failed", "seq", r.seq, "error", err)
	}
}

// Run 按 interval 调用 Tick，直到 ctx 结束
func (r *Robot) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer r.Close()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			r.Tick(now.Sub(last))
			last = now
		}
	}
}

// LoggedIn 是否已登录
func (r *Robot) LoggedIn() bool {
	return r.loggedIn.Load()
}

// UserID 登录成功后服务端分配的用户 ID，只能在 Tick 所在 goroutine 读取
func (r *Robot) UserID() string {
	return r.userID
}

// LastRTT 最近一次心跳往返时间
func (r *Robot) LastRTT() time.Duration {
	return time.Duration(r.lastRTT.Load())
}

// RTTStats 最近一分钟的心跳往返统计
func (r *Robot) RTTStats() sliding.Stats {
	return r.rtt.Stats()
}

func (r *Robot) onNetworkReady(ev *event.Event) {
	ready, ok := ev.Payload.(netclient.NetworkReady)
	if !ok {
		return
	}
	if !ready.OK() {
		r.logger.Error("connect failed", "code", ready.Code, "result", transport.ResultText(ready.Code))
		return
	}

	r.logger.Info("connected, logging in", "account", r.account)
	if err := r.mgr.SendMessage(msg.NewLoginRequest(r.account, r.token)); err != nil {
		r.logger.Error("send login request failed", "error", err)
	}
}

func (r *Robot) onInterrupted(ev *event.Event) {
	r.loggedIn.Store(false)
	if in, ok := ev.Payload.(transport.Interruption); ok {
		r.logger.Warn("connection interrupted", "reason", in.Reason, "error", in.Err)
	}
}

func (r *Robot) onLogin(ev *event.Event) {
	resp, ok := ev.Payload.(*msg.LoginResponse)
	if !ok {
		return
	}
	if resp.Code != msg.CodeOK {
		r.logger.Error("login failed", "code", resp.Code, "message", resp.Message)
		return
	}
	// 同一帧内连接已中断
	if !r.mgr.IsReady() {
		return
	}

	r.userID = resp.UserID
	r.sincePing = 0
	r.loggedIn.Store(true)
	r.logger.Info("login succeeded", "user_id", resp.UserID)
}

func (r *Robot) onPong(ev *event.Event) {
	pong, ok := ev.Payload.(*msg.PongResponse)
	if !ok {
		return
	}
	rtt := time.Since(time.UnixMilli(pong.SentAt))
	r.lastRTT.Store(int64(rtt))
	r.rtt.Record(rtt, true)
	r.logger.Debug("pong", "seq", pong.Seq, "rtt", rtt, "avg_rtt", r.rtt.Stats().AvgLatency)
}
