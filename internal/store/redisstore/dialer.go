// Package redisstore implements the store transport contract on go-redis.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"

	"github.com/rbright/redbridge/internal/store"
)

const (
	defaultHealthInterval = time.Second
	defaultPingTimeout    = 500 * time.Millisecond
)

// Dialer opens go-redis backed connections. The zero value is usable.
type Dialer struct {
	// HealthInterval is the ping period used to derive ready/end events.
	HealthInterval time.Duration
	// PingTimeout bounds a single health ping.
	PingTimeout time.Duration
	// Clock drives the health ticker. Nil means the wall clock.
	Clock  clock.Clock
	Logger *slog.Logger
}

func (d Dialer) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// Dial creates the client and starts the health monitor. It does not wait for
// the server; readiness is reported through h.
func (d Dialer) Dial(_ context.Context, target string, role store.Role, h store.Handler) (store.Conn, error) {
	if h == nil {
		return nil, errors.New("redisstore: handler is required")
	}
	opts, err := redis.ParseURL(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("parse redis target: %w", err)
	}

	interval := d.HealthInterval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	timeout := d.PingTimeout
	if timeout <= 0 {
		timeout = defaultPingTimeout
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.New()
	}

	client := redis.NewClient(opts)
	runCtx, cancel := context.WithCancel(context.Background())
	c := &conn{
		role:    role,
		client:  client,
		handler: h,
		cancel:  cancel,
		monitor: &monitor{
			ping:     func(ctx context.Context) error { return client.Ping(ctx).Err() },
			handler:  h,
			clock:    clk,
			interval: interval,
			timeout:  timeout,
		},
	}

	if role == store.RoleNotification {
		c.pubsub = client.Subscribe(runCtx)
		messages := c.pubsub.Channel()
		c.wg.Add(1)
		go c.forwardMessages(messages)
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.monitor.run(runCtx)
	}()

	d.logger().Debug("redis connection dialed", "role", role, "addr", opts.Addr, "db", opts.DB)
	return c, nil
}

type conn struct {
	role    store.Role
	client  *redis.Client
	pubsub  *redis.PubSub
	handler store.Handler
	monitor *monitor
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

func (c *conn) forwardMessages(messages <-chan *redis.Message) {
	defer c.wg.Done()
	for msg := range messages {
		c.handler.HandleMessage(msg.Channel, msg.Payload)
	}
}

func (c *conn) Do(ctx context.Context, args ...any) (any, error) {
	val, err := c.client.Do(ctx, args...).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return val, err
}

func (c *conn) HasCommand(name string) bool {
	_, ok := knownCommands()[strings.ToLower(name)]
	return ok
}

func (c *conn) Pipeline(ctx context.Context, cmds [][]any) ([]any, error) {
	if len(cmds) == 0 {
		return []any{}, nil
	}

	pipe := c.client.Pipeline()
	queued := make([]*redis.Cmd, 0, len(cmds))
	for _, args := range cmds {
		queued = append(queued, pipe.Do(ctx, args...))
	}
	if _, err := pipe.Exec(ctx); err != nil && !isReplyError(err) {
		return nil, err
	}

	replies := make([]any, len(queued))
	for i, cmd := range queued {
		if cmd.Err() == nil {
			replies[i] = cmd.Val()
		}
	}
	return replies, nil
}

func (c *conn) Subscribe(ctx context.Context, channels ...string) error {
	if c.pubsub == nil {
		return fmt.Errorf("subscribe on %s connection", c.role)
	}
	return c.pubsub.Subscribe(ctx, channels...)
}

func (c *conn) Unsubscribe(ctx context.Context, channels ...string) error {
	if c.pubsub == nil {
		return fmt.Errorf("unsubscribe on %s connection", c.role)
	}
	return c.pubsub.Unsubscribe(ctx, channels...)
}

func (c *conn) Publish(ctx context.Context, channel, message string) (int64, error) {
	return c.client.Publish(ctx, channel, message).Result()
}

// Close stops the monitor and closes the client. A connection that was ready
// reports end once more, mirroring a graceful quit.
func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		if c.pubsub != nil {
			c.closeErr = multierr.Append(c.closeErr, c.pubsub.Close())
		}
		c.wg.Wait()
		c.closeErr = multierr.Append(c.closeErr, c.client.Close())
		if c.monitor.ready {
			c.monitor.ready = false
			c.handler.HandleEnd()
		}
	})
	return c.closeErr
}

// isReplyError reports a per-command server reply error (including nil
// replies) as opposed to a failed round trip.
func isReplyError(err error) bool {
	var replyErr redis.Error
	return errors.As(err, &replyErr)
}
