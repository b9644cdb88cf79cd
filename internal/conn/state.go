package conn

import "encoding/json"

// State is the lifecycle state of a resilient connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateFailed
)

// String returns the lowercase state name used in logs and status payloads.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// MarshalJSON renders the state name, not the raw enum value.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// event is a state machine input.
type event int

const (
	// evDial starts a connect cycle (explicit Connect call).
	evDial event = iota
	// evDialOK reports a successful transport open.
	evDialOK
	// evDialFail reports a failed attempt with retries remaining.
	evDialFail
	// evExhausted reports that the attempt budget is spent.
	evExhausted
	// evProbeFail reports a failed liveness probe while connected.
	evProbeFail
	// evClose is an explicit disconnect.
	evClose
)

// next is the pure transition function. Unknown (state, event) pairs leave
// the state unchanged; StateFailed is terminal except for evDial and evClose.
func next(s State, ev event) State {
	switch ev {
	case evDial:
		switch s {
		case StateDisconnected, StateFailed, StateConnecting:
			return StateConnecting
		case StateReconnecting:
			return StateReconnecting
		}
	case evDialOK:
		if s == StateConnecting || s == StateReconnecting {
			return StateConnected
		}
	case evDialFail:
		if s == StateConnecting || s == StateReconnecting {
			return s
		}
	case evExhausted:
		if s == StateConnecting || s == StateReconnecting {
			return StateFailed
		}
	case evProbeFail:
		if s == StateConnected {
			return StateReconnecting
		}
	case evClose:
		return StateDisconnected
	}
	return s
}
