// Package fsm defines the store connection lifecycle transition table.
package fsm

import "fmt"

type State string

type Event string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateReady        State = "ready"
)

const (
	EventDial         Event = "dial"
	EventReady        Event = "ready"
	EventReconnecting Event = "reconnecting"
	EventEnd          Event = "end"
	EventError        Event = "error"
)

// Transition returns the state reached by applying event to current.
//
// EventError never changes connectivity state.
func Transition(current State, event Event) (State, error) {
	if event == EventError {
		switch current {
		case StateDisconnected, StateConnecting, StateReady:
			return current, nil
		default:
			return current, fmt.Errorf("unknown state %q", current)
		}
	}

	switch current {
	case StateDisconnected:
		switch event {
		case EventDial, EventReconnecting:
			return StateConnecting, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateConnecting:
		switch event {
		case EventReady:
			return StateReady, nil
		case EventEnd:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	case StateReady:
		switch event {
		case EventEnd:
			return StateDisconnected, nil
		default:
			return current, invalidTransition(current, event)
		}
	default:
		return current, fmt.Errorf("unknown state %q", current)
	}
}

func invalidTransition(state State, event Event) error {
	return fmt.Errorf("invalid transition: %s --(%s)--> ?", state, event)
}
