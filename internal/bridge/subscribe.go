package bridge

import "context"

func (b *Bridge) Subscribe(ctx context.Context, channel string) (err error) {
	defer func() { b.recorder.Operation("subscribe", err) }()

	conn, ok := b.notificationConn()
	if !ok {
		return ErrSubscriberNotConnected
	}
	return conn.Subscribe(ctx, channel)
}

// SubscribeMulti subscribes to every channel in one round trip. Any failure
// is reported as ErrSubscribeMulti without naming the channel.
func (b *Bridge) SubscribeMulti(ctx context.Context, channels any) (err error) {
	defer func() { b.recorder.Operation("subscribeMulti", err) }()

	conn, ok := b.notificationConn()
	if !ok {
		return ErrSubscriberNotConnected
	}
	list, ok := sequence(channels)
	if !ok {
		return ErrChannelsNotArray
	}

	names := make([]string, 0, len(list))
	for _, item := range list {
		name, ok := item.(string)
		if !ok {
			return ErrSubscribeMulti
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}

	if err := conn.Subscribe(ctx, names...); err != nil {
		b.logger.Debug("subscribe multi failed", "channels", len(names), "error", err.Error())
		return ErrSubscribeMulti
	}
	return nil
}

func (b *Bridge) Unsubscribe(ctx context.Context, channel string) (err error) {
	defer func() { b.recorder.Operation("unsubscribe", err) }()

	conn, ok := b.notificationConn()
	if !ok {
		return ErrSubscriberNotConnected
	}
	return conn.Unsubscribe(ctx, channel)
}
