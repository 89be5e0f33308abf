package netclient

// State 会话状态
//
//	Uninitialized --Init--> Connecting --连接成功--> Ready
//	Connecting --连接失败--> Closed
//	Connecting/Ready --Uninit--> Closed --Init--> Connecting
type State int32

const (
	StateUninitialized State = iota
	StateConnecting
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// active 持有 transport，可以收发
func (s State) active() bool {
	return s == StateConnecting || s == StateReady
}
