package redisstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
)

// ProbeChannel is subscribed and released by ProbeSubscribe.
const ProbeChannel = "redbridge:probe"

type slogAdapter struct {
	logger *slog.Logger
}

func (a slogAdapter) Printf(ctx context.Context, format string, v ...any) {
	a.logger.WarnContext(ctx, fmt.Sprintf(format, v...), "component", "go-redis")
}

// SetLogger routes go-redis internal logging into logger.
func SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	redis.SetLogger(slogAdapter{logger: logger})
}

// Ping checks that target answers PING on a fresh client.
func Ping(ctx context.Context, target string) (err error) {
	client, err := newClient(target)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, client.Close()) }()

	return client.Ping(ctx).Err()
}

// ProbeSubscribe checks that target confirms a subscription on a dedicated
// pub/sub connection.
func ProbeSubscribe(ctx context.Context, target string) (err error) {
	client, err := newClient(target)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, client.Close()) }()

	pubsub := client.Subscribe(ctx, ProbeChannel)
	defer func() { err = multierr.Append(err, pubsub.Close()) }()

	msg, err := pubsub.Receive(ctx)
	if err != nil {
		return err
	}
	if _, ok := msg.(*redis.Subscription); !ok {
		return fmt.Errorf("unexpected pubsub reply %T", msg)
	}
	return nil
}

func newClient(target string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(target))
	if err != nil {
		return nil, fmt.Errorf("parse redis target: %w", err)
	}
	return redis.NewClient(opts), nil
}
