// Package bridge relays host requests to a key-value/pub-sub store and store
// notifications back to the host.
//
// A Bridge owns two store connections: a command connection for request/reply
// commands and publishes, and a notification connection used only for
// subscriptions. It emits EventReady once, the first time both connections are
// ready at the same time, and never again for its lifetime; live health is
// available from Status. Every inbound message is emitted as EventMessage with
// its raw text and, when the text looks like a JSON object or array, the
// decoded value.
//
// Command names are not restricted: anything the transport exposes is
// reachable. Failures are returned as errors carrying the exact texts host
// scripts match on.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/rbright/redbridge/internal/fsm"
	"github.com/rbright/redbridge/internal/store"
)

// Options wires a Bridge to its collaborators. Only Dialer is required.
type Options struct {
	Dialer    store.Dialer
	Emitter   Emitter
	Recorder  Recorder
	Observers []StateObserver
	Logger    *slog.Logger
}

// Status is a live snapshot of both connections plus the one-time latch.
type Status struct {
	Command      fsm.State `json:"command"`
	Notification fsm.State `json:"notification"`
	Ready        bool      `json:"ready"`
}

// Overall folds both connection states into one: ready only when both are,
// disconnected only when both are.
func (s Status) Overall() fsm.State {
	switch {
	case s.Command == fsm.StateReady && s.Notification == fsm.StateReady:
		return fsm.StateReady
	case s.Command == fsm.StateDisconnected && s.Notification == fsm.StateDisconnected:
		return fsm.StateDisconnected
	default:
		return fsm.StateConnecting
	}
}

// Bridge coordinates the connection pair and implements the host operations.
// It is safe for concurrent use.
type Bridge struct {
	dialer    store.Dialer
	emitter   Emitter
	recorder  Recorder
	observers []StateObserver
	logger    *slog.Logger

	connectMu sync.Mutex

	mu           sync.RWMutex
	command      *Connection
	notification *Connection

	ready atomic.Bool
}

// New constructs a Bridge with no-op fallbacks for optional collaborators.
func New(opts Options) *Bridge {
	b := &Bridge{
		dialer:    opts.Dialer,
		emitter:   opts.Emitter,
		recorder:  opts.Recorder,
		observers: opts.Observers,
		logger:    opts.Logger,
	}
	if b.emitter == nil {
		b.emitter = noopEmitter{}
	}
	if b.recorder == nil {
		b.recorder = noopRecorder{}
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Connect tears down any existing pair, then dials a fresh command and
// notification connection to target. It returns once both dials were issued;
// readiness is reported asynchronously.
func (b *Bridge) Connect(ctx context.Context, target string) error {
	if b.dialer == nil {
		return errors.New("bridge: dialer is required")
	}

	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	command := newConnection(store.RoleCommand, b)
	notification := newConnection(store.RoleNotification, b)

	b.mu.Lock()
	previous := []*Connection{b.command, b.notification}
	b.command = command
	b.notification = notification
	b.mu.Unlock()

	if err := closeConnections(previous); err != nil {
		b.logger.Warn("close previous connections", "error", err.Error())
	}

	b.logger.Info("connecting to redis", "target", redactTarget(target))
	return multierr.Append(
		command.dial(ctx, b.dialer, target),
		notification.dial(ctx, b.dialer, target),
	)
}

// Close closes both connections and reports each closed role to observers as
// disconnected. The ready latch is left as is.
func (b *Bridge) Close() error {
	b.connectMu.Lock()
	defer b.connectMu.Unlock()

	b.mu.Lock()
	previous := []*Connection{b.command, b.notification}
	b.command = nil
	b.notification = nil
	b.mu.Unlock()

	err := closeConnections(previous)
	for _, c := range previous {
		if c == nil {
			continue
		}
		for _, observer := range b.observers {
			observer.ConnectionState(c.role, fsm.StateDisconnected)
		}
	}
	return err
}

func closeConnections(conns []*Connection) error {
	var err error
	for _, c := range conns {
		if c == nil {
			continue
		}
		err = multierr.Append(err, c.close())
	}
	return err
}

// Status returns live per-connection state and whether EventReady has fired.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	command, notification := b.command, b.notification
	b.mu.RUnlock()

	return Status{
		Command:      stateOf(command),
		Notification: stateOf(notification),
		Ready:        b.ready.Load(),
	}
}

func stateOf(c *Connection) fsm.State {
	if c == nil {
		return fsm.StateDisconnected
	}
	return c.State()
}

func (b *Bridge) isCurrent(c *Connection) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return c == b.command || c == b.notification
}

func (b *Bridge) commandConn() (store.Conn, bool) {
	b.mu.RLock()
	c := b.command
	b.mu.RUnlock()
	if c == nil {
		return nil, false
	}
	return c.transport()
}

func (b *Bridge) notificationConn() (store.Conn, bool) {
	b.mu.RLock()
	c := b.notification
	b.mu.RUnlock()
	if c == nil {
		return nil, false
	}
	return c.transport()
}

// stateChanged fans a current connection's state out to observers and fires
// the ready latch when both sides are ready.
func (b *Bridge) stateChanged(c *Connection, state fsm.State) {
	if !b.isCurrent(c) {
		return
	}
	for _, observer := range b.observers {
		observer.ConnectionState(c.role, state)
	}
	if state == fsm.StateReady {
		b.maybeFireReady()
	}
}

func (b *Bridge) maybeFireReady() {
	b.mu.RLock()
	command, notification := b.command, b.notification
	b.mu.RUnlock()

	if command == nil || notification == nil {
		return
	}
	if command.State() != fsm.StateReady || notification.State() != fsm.StateReady {
		return
	}
	if !b.ready.CompareAndSwap(false, true) {
		return
	}

	b.logger.Info("bridge ready")
	b.emitter.Emit(Event{Name: EventReady})
}

// redactTarget hides any password in a connection URL before logging.
func redactTarget(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
