package bridge

import (
	"context"
	"sync"

	"github.com/rbright/redbridge/internal/fsm"
	"github.com/rbright/redbridge/internal/store"
)

// Connection owns one physical store connection and its lifecycle state.
// It is created per Connect call and never reused after being replaced.
type Connection struct {
	role   store.Role
	bridge *Bridge

	mu    sync.Mutex
	state fsm.State
	conn  store.Conn
}

func newConnection(role store.Role, b *Bridge) *Connection {
	return &Connection{
		role:   role,
		bridge: b,
		state:  fsm.StateDisconnected,
	}
}

// Role reports whether this is the command or notification connection.
func (c *Connection) Role() store.Role {
	return c.role
}

// State returns the current lifecycle state snapshot.
func (c *Connection) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// transport returns the handle only while the connection is Ready.
func (c *Connection) transport() (store.Conn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != fsm.StateReady || c.conn == nil {
		return nil, false
	}
	return c.conn, true
}

// apply runs one FSM event. Callers hold the lock.
func (c *Connection) apply(event fsm.Event) bool {
	next, err := fsm.Transition(c.state, event)
	if err != nil {
		c.bridge.logger.Debug("ignored connection event", "role", c.role, "error", err.Error())
		return false
	}
	changed := next != c.state
	c.state = next
	return changed
}

func (c *Connection) dial(ctx context.Context, dialer store.Dialer, target string) error {
	c.mu.Lock()
	c.apply(fsm.EventDial)
	conn, err := dialer.Dial(ctx, target, c.role, c)
	if err != nil {
		c.apply(fsm.EventEnd)
	} else {
		c.conn = conn
	}
	state := c.state
	c.mu.Unlock()

	c.bridge.stateChanged(c, state)
	return err
}

func (c *Connection) close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (c *Connection) event(event fsm.Event) (fsm.State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	changed := c.apply(event)
	return c.state, changed
}

func (c *Connection) HandleReady() {
	state, changed := c.event(fsm.EventReady)
	if !changed {
		return
	}
	c.bridge.logger.Info("redis connection established", "role", c.role)
	c.bridge.stateChanged(c, state)
}

func (c *Connection) HandleReconnecting() {
	state, changed := c.event(fsm.EventReconnecting)
	if !changed {
		return
	}
	c.bridge.logger.Info("redis connection reconnecting", "role", c.role)
	c.bridge.stateChanged(c, state)
}

func (c *Connection) HandleEnd() {
	state, changed := c.event(fsm.EventEnd)
	if !changed {
		return
	}
	c.bridge.logger.Info("disconnected from redis", "role", c.role)
	c.bridge.stateChanged(c, state)
}

func (c *Connection) HandleError(err error) {
	c.event(fsm.EventError)
	if err == nil {
		return
	}
	c.bridge.logger.Error("redis connection error", "role", c.role, "error", err.Error())
}

func (c *Connection) HandleMessage(channel, payload string) {
	if c.role != store.RoleNotification || !c.bridge.isCurrent(c) {
		return
	}
	c.bridge.relay(channel, payload)
}
