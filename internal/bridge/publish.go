package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Outbound is one typed publishMulti entry.
type Outbound struct {
	Channel string
	Message any
}

// Publish sends message to channel on the command connection and returns the
// number of subscribers that received it. Non-string messages are JSON
// encoded first.
func (b *Bridge) Publish(ctx context.Context, channel string, message any) (count int64, err error) {
	defer func() { b.recorder.Operation("publish", err) }()

	conn, ok := b.commandConn()
	if !ok {
		return 0, ErrNotConnected
	}
	text, err := encodeMessage(message)
	if err != nil {
		return 0, fmt.Errorf("[Redis] Error converting message to JSON: %v", err)
	}
	return conn.Publish(ctx, channel, text)
}

// PublishMulti publishes every valid entry of messages in one round trip.
// Entries are maps with "channel" and "message" keys, or Outbound values.
//
// Entries without a channel, without a message, or whose message cannot be
// encoded are dropped; the returned counts cover sent entries only, in order.
func (b *Bridge) PublishMulti(ctx context.Context, messages any) (counts []int64, err error) {
	defer func() { b.recorder.Operation("publishMulti", err) }()

	conn, ok := b.commandConn()
	if !ok {
		return nil, ErrNotConnected
	}
	entries, ok := sequence(messages)
	if !ok {
		return nil, ErrMessagesNotArray
	}

	batch := make([][]any, 0, len(entries))
	for _, entry := range entries {
		out, ok := outbound(entry)
		if !ok {
			continue
		}
		text, err := encodeMessage(out.Message)
		if err != nil {
			continue
		}
		batch = append(batch, []any{"publish", out.Channel, text})
	}
	b.skipped("publishMulti", len(entries)-len(batch), len(entries))
	if len(batch) == 0 {
		return []int64{}, nil
	}

	replies, err := conn.Pipeline(ctx, batch)
	if err != nil {
		return nil, err
	}
	counts = make([]int64, len(replies))
	for i, reply := range replies {
		counts[i] = toInt64(reply)
	}
	return counts, nil
}

func outbound(entry any) (Outbound, bool) {
	switch entry := entry.(type) {
	case Outbound:
		return entry, entry.Channel != ""
	case map[string]any:
		channel, _ := entry["channel"].(string)
		message, present := entry["message"]
		if channel == "" || !present {
			return Outbound{}, false
		}
		return Outbound{Channel: channel, Message: message}, true
	default:
		return Outbound{}, false
	}
}

// errUndefinedMessage rejects a publish whose message argument was never
// supplied.
var errUndefinedMessage = errors.New("message is undefined")

// encodeMessage passes strings through and JSON encodes everything else
// without HTML escaping. json.RawMessage values keep their key order.
func encodeMessage(message any) (string, error) {
	switch message := message.(type) {
	case string:
		return message, nil
	case undefined:
		return "", errUndefinedMessage
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(message); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func toInt64(v any) int64 {
	switch v := v.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
