// Package storetest provides an in-memory, scriptable store transport.
//
// Lifecycle events are never fired on their own: tests drive them with
// Conn.Ready, Conn.End, Conn.Reconnect and Conn.Fail.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rbright/redbridge/internal/store"
)

// ErrClosed is returned by operations on a closed Conn.
var ErrClosed = errors.New("Connection is closed.")

var defaultCommands = []string{"set", "get", "del", "incr", "publish", "ping", "echo", "hgetall"}

// Server is the keyspace and subscription table shared by one Dialer's conns.
type Server struct {
	mu   sync.Mutex
	data map[string]string
	subs map[string]map[*Conn]struct{}
}

func NewServer() *Server {
	return &Server{
		data: make(map[string]string),
		subs: make(map[string]map[*Conn]struct{}),
	}
}

// Dialer records every Conn it opens.
type Dialer struct {
	Server *Server
	// DialErr, when set, fails every Dial.
	DialErr error

	mu    sync.Mutex
	conns []*Conn
}

func NewDialer() *Dialer {
	return &Dialer{Server: NewServer()}
}

func (d *Dialer) Dial(_ context.Context, target string, role store.Role, h store.Handler) (store.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.DialErr != nil {
		return nil, d.DialErr
	}
	c := &Conn{
		Target:   target,
		Role:     role,
		handler:  h,
		server:   d.Server,
		commands: make(map[string]struct{}, len(defaultCommands)),
		subErrs:  make(map[string]error),
	}
	for _, name := range defaultCommands {
		c.commands[name] = struct{}{}
	}
	d.conns = append(d.conns, c)
	return c, nil
}

// Conns returns every Conn dialed so far in dial order.
func (d *Dialer) Conns() []*Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Conn(nil), d.conns...)
}

// Last returns the most recently dialed Conn for role, or nil.
func (d *Dialer) Last(role store.Role) *Conn {
	conns := d.Conns()
	for i := len(conns) - 1; i >= 0; i-- {
		if conns[i].Role == role {
			return conns[i]
		}
	}
	return nil
}

// Conn is one fake connection.
type Conn struct {
	Target string
	Role   store.Role

	handler store.Handler
	server  *Server

	mu           sync.Mutex
	closed       bool
	transportErr error
	subErrs      map[string]error
	commands     map[string]struct{}
	batches      [][][]any
}

func (c *Conn) Ready()               { c.handler.HandleReady() }
func (c *Conn) End()                 { c.handler.HandleEnd() }
func (c *Conn) Fail(err error)       { c.handler.HandleError(err) }
func (c *Conn) Deliver(ch, p string) { c.handler.HandleMessage(ch, p) }

// Reconnect reports a transport-side recovery.
func (c *Conn) Reconnect() {
	c.handler.HandleReconnecting()
	c.handler.HandleReady()
}

// SetTransportError makes every subsequent operation fail with err.
func (c *Conn) SetTransportError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transportErr = err
}

// FailSubscribe makes subscribing to channel fail with err.
func (c *Conn) FailSubscribe(channel string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subErrs[channel] = err
}

// AddCommand extends the set of names HasCommand accepts.
func (c *Conn) AddCommand(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands[strings.ToLower(name)] = struct{}{}
}

// Batches returns every pipeline sent on this Conn.
func (c *Conn) Batches() [][][]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][][]any(nil), c.batches...)
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) check() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.transportErr
}

func (c *Conn) HasCommand(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.commands[strings.ToLower(name)]
	return ok
}

func (c *Conn) Do(_ context.Context, args ...any) (any, error) {
	if err := c.check(); err != nil {
		return nil, err
	}
	return c.exec(args)
}

func (c *Conn) Pipeline(_ context.Context, cmds [][]any) ([]any, error) {
	if err := c.check(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.batches = append(c.batches, cmds)
	c.mu.Unlock()

	replies := make([]any, len(cmds))
	for i, args := range cmds {
		reply, err := c.exec(args)
		if err == nil {
			replies[i] = reply
		}
	}
	return replies, nil
}

func (c *Conn) Subscribe(_ context.Context, channels ...string) error {
	if err := c.check(); err != nil {
		return err
	}

	c.mu.Lock()
	for _, channel := range channels {
		if err := c.subErrs[channel]; err != nil {
			c.mu.Unlock()
			return err
		}
	}
	c.mu.Unlock()

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	for _, channel := range channels {
		if c.server.subs[channel] == nil {
			c.server.subs[channel] = make(map[*Conn]struct{})
		}
		c.server.subs[channel][c] = struct{}{}
	}
	return nil
}

func (c *Conn) Unsubscribe(_ context.Context, channels ...string) error {
	if err := c.check(); err != nil {
		return err
	}

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	for _, channel := range channels {
		delete(c.server.subs[channel], c)
	}
	return nil
}

func (c *Conn) Publish(_ context.Context, channel, message string) (int64, error) {
	if err := c.check(); err != nil {
		return 0, err
	}
	return c.server.publish(channel, message), nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	for _, subscribers := range c.server.subs {
		delete(subscribers, c)
	}
	return nil
}

// Subscribers returns how many conns are subscribed to channel.
func (s *Server) Subscribers(channel string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[channel])
}

func (s *Server) publish(channel, message string) int64 {
	s.mu.Lock()
	receivers := make([]*Conn, 0, len(s.subs[channel]))
	for conn := range s.subs[channel] {
		receivers = append(receivers, conn)
	}
	s.mu.Unlock()

	for _, conn := range receivers {
		conn.handler.HandleMessage(channel, message)
	}
	return int64(len(receivers))
}

func (c *Conn) exec(args []any) (any, error) {
	if len(args) == 0 {
		return nil, errors.New("ERR empty command")
	}
	name := strings.ToLower(fmt.Sprint(args[0]))
	params := make([]string, 0, len(args)-1)
	for _, arg := range args[1:] {
		params = append(params, fmt.Sprint(arg))
	}

	arity := func(n int) error {
		if len(params) != n {
			return fmt.Errorf("ERR wrong number of arguments for '%s' command", name)
		}
		return nil
	}

	s := c.server
	switch name {
	case "ping":
		return "PONG", nil
	case "echo":
		if err := arity(1); err != nil {
			return nil, err
		}
		return params[0], nil
	case "set":
		if err := arity(2); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.data[params[0]] = params[1]
		s.mu.Unlock()
		return "OK", nil
	case "get":
		if err := arity(1); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		value, ok := s.data[params[0]]
		if !ok {
			return nil, nil
		}
		return value, nil
	case "del":
		s.mu.Lock()
		defer s.mu.Unlock()
		var removed int64
		for _, key := range params {
			if _, ok := s.data[key]; ok {
				delete(s.data, key)
				removed++
			}
		}
		return removed, nil
	case "incr":
		if err := arity(1); err != nil {
			return nil, err
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		current := int64(0)
		if raw, ok := s.data[params[0]]; ok {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return nil, errors.New("ERR value is not an integer or out of range")
			}
			current = parsed
		}
		current++
		s.data[params[0]] = strconv.FormatInt(current, 10)
		return current, nil
	case "publish":
		if err := arity(2); err != nil {
			return nil, err
		}
		return s.publish(params[0], params[1]), nil
	default:
		return nil, fmt.Errorf("ERR unknown command '%s'", name)
	}
}
