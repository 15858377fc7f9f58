// Package host maps IPC requests from host scripts onto bridge operations and
// streams bridge events back to watching clients.
package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rbright/redbridge/internal/bridge"
	"github.com/rbright/redbridge/internal/ipc"
)

// Bridge is the operation surface the handler drives.
type Bridge interface {
	Execute(ctx context.Context, name any, args any) (any, error)
	ExecutePipeline(ctx context.Context, commands any) ([]any, error)
	Subscribe(ctx context.Context, channel string) error
	SubscribeMulti(ctx context.Context, channels any) error
	Unsubscribe(ctx context.Context, channel string) error
	Publish(ctx context.Context, channel string, message any) (int64, error)
	PublishMulti(ctx context.Context, messages any) ([]int64, error)
	Status() bridge.Status
}

type operation func(ctx context.Context, in args) (any, error)

// Handler implements ipc.Handler.
type Handler struct {
	bridge Bridge
	hub    *Hub
	logger *slog.Logger
}

func NewHandler(b Bridge, hub *Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{bridge: b, hub: hub, logger: logger}
}

func (h *Handler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	logger := h.logger.With("request_id", uuid.NewString(), "command", req.Command)

	switch req.Command {
	case "status":
		status := h.bridge.Status()
		return ipc.Response{OK: true, Result: status, State: string(status.Overall()), Message: "status"}
	case "watch":
		if h.hub == nil {
			return h.fail(errors.New("watch unavailable"))
		}
		events, cancel := h.hub.Watch()
		logger.Debug("watcher attached")
		return ipc.Response{OK: true, State: h.state(), Message: "watching", Events: events, Done: cancel}
	}

	op, ok := h.operation(req.Command)
	if !ok {
		return h.fail(fmt.Errorf("unknown command: %s", req.Command))
	}

	in, err := decodeArgs(req.Args)
	if err != nil {
		return h.fail(err)
	}

	result, err := op(ctx, in)
	if req.NoReply {
		if err != nil {
			logger.Error("request failed", "error", err.Error())
		}
		return ipc.Response{OK: true, State: h.state(), Message: "accepted"}
	}
	if err != nil {
		logger.Debug("request failed", "error", err.Error())
		return h.fail(err)
	}
	return ipc.Response{OK: true, Result: result, State: h.state()}
}

func (h *Handler) fail(err error) ipc.Response {
	return ipc.Response{OK: false, State: h.state(), Error: err.Error()}
}

func (h *Handler) state() string {
	return string(h.bridge.Status().Overall())
}

func (h *Handler) operation(command string) (operation, bool) {
	switch command {
	case "execute":
		return func(ctx context.Context, in args) (any, error) {
			return h.bridge.Execute(ctx, in.at(0), in.at(1))
		}, true
	case "executePipeline":
		return func(ctx context.Context, in args) (any, error) {
			return h.bridge.ExecutePipeline(ctx, in.at(0))
		}, true
	case "subscribe":
		return func(ctx context.Context, in args) (any, error) {
			channel, err := in.channel(0)
			if err != nil {
				return nil, err
			}
			return true, h.bridge.Subscribe(ctx, channel)
		}, true
	case "subscribeMulti":
		return func(ctx context.Context, in args) (any, error) {
			return true, h.bridge.SubscribeMulti(ctx, in.at(0))
		}, true
	case "unsubscribe":
		return func(ctx context.Context, in args) (any, error) {
			channel, err := in.channel(0)
			if err != nil {
				return nil, err
			}
			return true, h.bridge.Unsubscribe(ctx, channel)
		}, true
	case "publish":
		return func(ctx context.Context, in args) (any, error) {
			channel, err := in.channel(0)
			if err != nil {
				return nil, err
			}
			return h.bridge.Publish(ctx, channel, in.message(1))
		}, true
	case "publishMulti":
		return func(ctx context.Context, in args) (any, error) {
			return h.bridge.PublishMulti(ctx, in.messages(0))
		}, true
	default:
		return nil, false
	}
}

// args holds decoded positional arguments alongside their source text.
// Numbers stay json.Number so they reach the store with their original text.
type args struct {
	values []any
	raw    []json.RawMessage
}

func (a args) at(i int) any {
	if i >= len(a.values) {
		return bridge.Undefined
	}
	return a.values[i]
}

func (a args) channel(i int) (string, error) {
	v := a.at(i)
	channel, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("[Redis] channel must be a string, got %s", bridge.TypeName(v))
	}
	return channel, nil
}

// message returns argument i for publishing. Objects and arrays are handed
// over as their source text so key order and characters survive encoding.
func (a args) message(i int) any {
	if i < len(a.raw) && structured(a.raw[i]) {
		return a.raw[i]
	}
	return a.at(i)
}

// messages is message for a publishMulti batch: each entry's "message" field
// keeps its source text.
func (a args) messages(i int) any {
	v := a.at(i)
	list, ok := v.([]any)
	if !ok {
		return v
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(a.raw[i], &entries); err != nil || len(entries) != len(list) {
		return v
	}

	out := make([]any, len(list))
	for j, item := range list {
		out[j] = item
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entries[j], &fields); err != nil {
			continue
		}
		msg, ok := fields["message"]
		if !ok || !structured(msg) {
			continue
		}
		copied := make(map[string]any, len(entry))
		for k, field := range entry {
			copied[k] = field
		}
		copied["message"] = msg
		out[j] = copied
	}
	return out
}

func structured(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func decodeArgs(raw []json.RawMessage) (args, error) {
	out := args{values: make([]any, len(raw)), raw: raw}
	for i, item := range raw {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()
		if err := dec.Decode(&out.values[i]); err != nil {
			return args{}, fmt.Errorf("decode argument %d: %w", i, err)
		}
	}
	return out, nil
}
