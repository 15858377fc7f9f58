package ipc

import "encoding/json"

// Request is one JSON line sent by a host client. Args are positional and
// decoded by the handler.
type Request struct {
	Command string            `json:"command"`
	Args    []json.RawMessage `json:"args,omitempty"`
	NoReply bool              `json:"no_reply,omitempty"`
}

// Response answers a Request. When Events is non-nil the server keeps the
// connection open after the response and writes each event as its own line
// until the channel closes or the client goes away; Done runs afterwards.
type Response struct {
	OK      bool   `json:"ok"`
	Result  any    `json:"result,omitempty"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`

	Events <-chan Event `json:"-"`
	Done   func()       `json:"-"`
}

// Event is one streamed notification line.
type Event struct {
	Event string `json:"event"`
	Args  []any  `json:"args,omitempty"`
}
