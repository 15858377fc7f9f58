// Package store defines the transport contract the bridge needs from a
// key-value/pub-sub store client.
package store

import "context"

// Role identifies what a connection is used for.
type Role string

const (
	// RoleCommand carries request/reply key-value commands and publishes.
	RoleCommand Role = "command"
	// RoleNotification carries subscriptions and inbound messages only.
	RoleNotification Role = "notification"
)

// Handler receives lifecycle and message events for one connection.
//
// Events are delivered from transport goroutines, never synchronously from
// Dialer.Dial.
type Handler interface {
	HandleReady()
	HandleReconnecting()
	HandleEnd()
	HandleError(error)
	HandleMessage(channel, payload string)
}

// Conn is one physical store connection.
type Conn interface {
	// Do sends one command. A missing-key reply is (nil, nil).
	Do(ctx context.Context, args ...any) (any, error)
	// HasCommand reports whether the client exposes name as a command.
	HasCommand(name string) bool
	// Pipeline sends cmds in one round trip. Replies are in input order; a
	// command that failed server-side leaves a nil slot. The error is set
	// only when the round trip itself failed.
	Pipeline(ctx context.Context, cmds [][]any) ([]any, error)
	// Subscribe subscribes to all channels in one round trip.
	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
	Publish(ctx context.Context, channel, message string) (int64, error)
	Close() error
}

// Dialer opens connections to a store target.
type Dialer interface {
	Dial(ctx context.Context, target string, role Role, h Handler) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(context.Context, string, Role, Handler) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, target string, role Role, h Handler) (Conn, error) {
	return f(ctx, target, role, h)
}
