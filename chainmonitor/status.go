package chainmonitor

// Status represents the lifecycle phase of a ChainMonitor. It only ever moves
// forward: Idle -> Listening -> Active -> Terminated.
type Status int32

const (
	StatusIdle Status = iota
	StatusListening
	StatusActive
	StatusTerminated
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "IDLE"
	case StatusListening:
		return "LISTENING"
	case StatusActive:
		return "ACTIVE"
	case StatusTerminated:
		return "TERMINATED"
	default:
		return "UNKNOWN"
	}
}
