package bridge

import (
	"github.com/rbright/redbridge/internal/fsm"
	"github.com/rbright/redbridge/internal/store"
)

// Event names delivered to the host.
const (
	EventReady   = "bridge:ready"
	EventMessage = "bridge:message"
)

// Message is one inbound pub/sub notification. Decoded is nil unless the raw
// payload looked structured and decoded cleanly.
type Message struct {
	Channel string
	Raw     string
	Decoded any
}

// Event is emitted toward the host. Message is set for EventMessage only.
type Event struct {
	Name    string
	Message Message
}

// Args returns the positional event payload handed to host listeners.
func (e Event) Args() []any {
	if e.Name != EventMessage {
		return nil
	}
	return []any{e.Message.Channel, e.Message.Raw, e.Message.Decoded}
}

// Emitter receives bridge events.
type Emitter interface {
	Emit(Event)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(ev Event) {
	f(ev)
}

// StateObserver is told about every lifecycle change of a current connection.
type StateObserver interface {
	ConnectionState(role store.Role, state fsm.State)
}

// Recorder is the bridge-facing subset of metrics behavior.
type Recorder interface {
	Operation(op string, err error)
	Skipped(op string, n int)
	Relayed(decoded bool)
}

type noopEmitter struct{}

func (noopEmitter) Emit(Event) {}

type noopRecorder struct{}

func (noopRecorder) Operation(string, error) {}
func (noopRecorder) Skipped(string, int)     {}
func (noopRecorder) Relayed(bool)            {}
