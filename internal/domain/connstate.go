package domain

// ConnectionState describes where the push transport currently is in its
// lifecycle. It is owned exclusively by the stream client; everyone else
// observes it and never mutates it.
type ConnectionState int

const (
	StateIdle ConnectionState = iota
	StateConnecting
	StateOpen
	StateRetrying
	StatePolling // retry budget exhausted, degraded to periodic pull
	StateClosed  // terminal
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRetrying:
		return "retrying"
	case StatePolling:
		return "polling"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s ConnectionState) Terminal() bool { return s == StateClosed }

// Live reports whether observations may still arrive on some path.
func (s ConnectionState) Live() bool {
	return s == StateOpen || s == StatePolling
}
