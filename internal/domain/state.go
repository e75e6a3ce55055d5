package domain

// ConnectionState represents the lifecycle state of the real-time channel
type ConnectionState string

const (
	StateConnecting ConnectionState = "CONNECTING" // Transport created, handshake pending
	StateOpen       ConnectionState = "OPEN"       // Handshake done, messages flowing
	StateClosed     ConnectionState = "CLOSED"     // Transport closed
	StateErrored    ConnectionState = "ERRORED"    // Transport reported an error
)

// String returns the string representation of the state
func (s ConnectionState) String() string {
	return string(s)
}

// CanTransitionTo checks if a transition from the current state to target is valid
func (s ConnectionState) CanTransitionTo(target ConnectionState) bool {
	// Errors can happen from anywhere
	if target == StateErrored {
		return true
	}

	validTransitions := map[ConnectionState][]ConnectionState{
		StateConnecting: {StateOpen, StateClosed},
		StateOpen:       {StateClosed},
		StateClosed:     {StateConnecting},
		StateErrored:    {StateClosed, StateConnecting},
	}

	for _, state := range validTransitions[s] {
		if state == target {
			return true
		}
	}
	return false
}

// IsClosed returns true if the channel is fully closed
func (s ConnectionState) IsClosed() bool {
	return s == StateClosed
}

// Status is the connectivity signal surfaced to a status indicator
type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
	StatusFailed       Status = "failed"
)

// Text returns the human-readable message for the status
func (s Status) Text() string {
	switch s {
	case StatusConnected:
		return "Real-time updates active"
	case StatusDisconnected:
		return "Reconnecting..."
	case StatusError:
		return "Connection error"
	case StatusFailed:
		return "Unable to connect for real-time updates"
	default:
		return ""
	}
}

// IsTerminal returns true if no automatic recovery follows this status
func (s Status) IsTerminal() bool {
	return s == StatusFailed
}
