package host

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/redbridge/internal/bridge"
	"github.com/rbright/redbridge/internal/fsm"
	"github.com/rbright/redbridge/internal/ipc"
	"github.com/rbright/redbridge/internal/store"
	"github.com/rbright/redbridge/internal/store/storetest"
)

type fixture struct {
	handler *Handler
	hub     *Hub
	dialer  *storetest.Dialer
	logs    *bytes.Buffer
}

func newFixture(t *testing.T, ready bool) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	hub := NewHub(8, logger)
	dialer := storetest.NewDialer()
	b := bridge.New(bridge.Options{Dialer: dialer, Emitter: hub, Logger: logger})
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.Connect(context.Background(), "redis://localhost:6379"))
	if ready {
		dialer.Last(store.RoleCommand).Ready()
		dialer.Last(store.RoleNotification).Ready()
	}

	return &fixture{handler: NewHandler(b, hub, logger), hub: hub, dialer: dialer, logs: logs}
}

func request(command string, noReply bool, values ...any) ipc.Request {
	req := ipc.Request{Command: command, NoReply: noReply}
	for _, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		req.Args = append(req.Args, raw)
	}
	return req
}

func TestHandleExecute(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	resp := f.handler.Handle(ctx, request("execute", false, "set", []any{"k", 10}))
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, "OK", resp.Result)
	require.Equal(t, "ready", resp.State)

	resp = f.handler.Handle(ctx, request("execute", false, "get", []any{"k"}))
	require.True(t, resp.OK)
	require.Equal(t, "10", resp.Result)
}

func TestHandleExecuteErrors(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ipc.Request
		want string
	}{
		{name: "numeric name", req: request("execute", false, 123, []any{}), want: "[Redis] commandName must be a string, got number"},
		{name: "missing args", req: request("execute", false, "get"), want: "[Redis] args must be an array, got undefined"},
		{name: "null args", req: request("execute", false, "get", nil), want: "[Redis] args must be an array, got object"},
		{name: "unknown command", req: request("execute", false, "bogus", []any{}), want: "[Redis] Unknown redis command: bogus"},
		{name: "unknown ipc command", req: request("flushall", false), want: "unknown command: flushall"},
		{name: "channel type", req: request("subscribe", false, 5), want: "[Redis] channel must be a string, got number"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := f.handler.Handle(ctx, tc.req)
			require.False(t, resp.OK)
			require.Equal(t, tc.want, resp.Error)
			require.Nil(t, resp.Result)
		})
	}
}

func TestHandleBadArgument(t *testing.T) {
	f := newFixture(t, true)

	resp := f.handler.Handle(context.Background(), ipc.Request{
		Command: "execute",
		Args:    []json.RawMessage{json.RawMessage(`{`)},
	})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode argument 0")
}

func TestHandleNotConnected(t *testing.T) {
	f := newFixture(t, false)

	resp := f.handler.Handle(context.Background(), request("publish", false, "news", "x"))
	require.False(t, resp.OK)
	require.Equal(t, "Redis not connected", resp.Error)
	require.Equal(t, "connecting", resp.State)
}

func TestHandleNoReplyLogsFailure(t *testing.T) {
	f := newFixture(t, false)

	resp := f.handler.Handle(context.Background(), request("publish", true, "news", map[string]any{"x": 1}))
	require.True(t, resp.OK)
	require.Equal(t, "accepted", resp.Message)
	require.Contains(t, f.logs.String(), `"msg":"request failed"`)
	require.Contains(t, f.logs.String(), "Redis not connected")
}

func TestHandlePipelineAndPublishMulti(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	resp := f.handler.Handle(ctx, request("executePipeline", false, []any{
		[]any{"set", "a", "1"},
		[]any{"set", "b", "2"},
		[]any{"get", "a"},
	}))
	require.True(t, resp.OK)
	require.Equal(t, []any{"OK", "OK", "1"}, resp.Result)

	resp = f.handler.Handle(ctx, request("executePipeline", false, []any{[]any{"bogus", "x"}}))
	require.True(t, resp.OK)
	require.Equal(t, []any{}, resp.Result)

	resp = f.handler.Handle(ctx, request("subscribeMulti", false, []string{"c1", "c2"}))
	require.True(t, resp.OK)
	require.Equal(t, true, resp.Result)

	resp = f.handler.Handle(ctx, request("publishMulti", false, []any{
		map[string]any{"channel": "c1", "message": "a"},
		map[string]any{"channel": "c2"},
		map[string]any{"channel": "c2", "message": map[string]any{"x": 1}},
	}))
	require.True(t, resp.OK)
	require.Equal(t, []int64{1, 1}, resp.Result)
}

func TestHandleStatus(t *testing.T) {
	f := newFixture(t, true)

	resp := f.handler.Handle(context.Background(), request("status", false))
	require.True(t, resp.OK)
	require.Equal(t, "ready", resp.State)
	require.Equal(t, bridge.Status{Command: fsm.StateReady, Notification: fsm.StateReady, Ready: true}, resp.Result)
}

func TestHandleWatchRelaysMessages(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	resp := f.handler.Handle(ctx, request("watch", false))
	require.True(t, resp.OK)
	require.NotNil(t, resp.Events)
	require.Equal(t, 1, f.hub.Watchers())

	resp2 := f.handler.Handle(ctx, request("subscribe", false, "news"))
	require.True(t, resp2.OK, resp2.Error)

	resp2 = f.handler.Handle(ctx, request("publish", false, "news", map[string]any{"a": 1}))
	require.True(t, resp2.OK, resp2.Error)
	require.EqualValues(t, 1, resp2.Result)

	ev := <-resp.Events
	require.Equal(t, bridge.EventMessage, ev.Event)
	require.Equal(t, []any{"news", `{"a":1}`, map[string]any{"a": float64(1)}}, ev.Args)

	resp.Done()
	require.Zero(t, f.hub.Watchers())
	_, open := <-resp.Events
	require.False(t, open)
}

func TestHandlePublishKeepsSourceJSON(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	events, cancel := f.hub.Watch()
	defer cancel()

	resp := f.handler.Handle(ctx, request("subscribe", false, "news"))
	require.True(t, resp.OK, resp.Error)

	resp = f.handler.Handle(ctx, ipc.Request{
		Command: "publish",
		Args:    []json.RawMessage{json.RawMessage(`"news"`), json.RawMessage(`{"z":1, "a":"<b>&"}`)},
	})
	require.True(t, resp.OK, resp.Error)

	resp = f.handler.Handle(ctx, ipc.Request{
		Command: "publishMulti",
		Args: []json.RawMessage{json.RawMessage(`[
			{"message": ["<i>", 2.50], "channel": "news"},
			{"channel": "news", "message": "plain <b>"}
		]`)},
	})
	require.True(t, resp.OK, resp.Error)
	require.Equal(t, []int64{1, 1}, resp.Result)

	var raws []any
	for i := 0; i < 3; i++ {
		ev := <-events
		require.Equal(t, bridge.EventMessage, ev.Event)
		raws = append(raws, ev.Args[1])
	}
	require.Equal(t, []any{`{"z":1,"a":"<b>&"}`, `["<i>",2.50]`, "plain <b>"}, raws)
}

func TestHandlePublishWithoutMessage(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	events, cancel := f.hub.Watch()
	defer cancel()

	resp := f.handler.Handle(ctx, request("subscribe", false, "news"))
	require.True(t, resp.OK, resp.Error)

	resp = f.handler.Handle(ctx, request("publish", false, "news"))
	require.False(t, resp.OK)
	require.Equal(t, "[Redis] Error converting message to JSON: message is undefined", resp.Error)
	require.Empty(t, events)
}

func TestHubDropsForSlowWatcher(t *testing.T) {
	hub := NewHub(1, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	events, cancel := hub.Watch()
	defer cancel()

	hub.Emit(bridge.Event{Name: bridge.EventReady})
	hub.Emit(bridge.Event{Name: bridge.EventReady})

	require.Len(t, events, 1)
	cancel()
	cancel()
}
