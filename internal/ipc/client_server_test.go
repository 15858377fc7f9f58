package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, handler Handler) string {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "redbridge.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, handler)
	}()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveDone)
	})
	return socketPath
}

func TestSendRoundTrip(t *testing.T) {
	requests := make(chan Request, 1)
	socketPath := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		requests <- req
		return Response{OK: true, Result: "v", State: "ready", Message: "ok"}
	}))

	req := Request{
		Command: "execute",
		Args:    []json.RawMessage{json.RawMessage(`"get"`), json.RawMessage(`["k"]`)},
	}
	resp, err := Send(context.Background(), socketPath, req, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, "v", resp.Result)
	require.Equal(t, "ready", resp.State)
	require.Equal(t, "ok", resp.Message)

	got := <-requests
	require.Equal(t, "execute", got.Command)
	require.Len(t, got.Args, 2)
	require.JSONEq(t, `["k"]`, string(got.Args[1]))
	require.False(t, got.NoReply)
}

func TestSendDecodeResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "redbridge.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		defer conn.Close()

		reader := bufio.NewReader(conn)
		_, _ = reader.ReadBytes('\n')
		_, _ = conn.Write([]byte("not-json\n"))
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestSendReadResponseError(t *testing.T) {
	runtimeDir := t.TempDir()
	socketPath := filepath.Join(runtimeDir, "redbridge.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = listener.Close() })

	go func() {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			return
		}
		_ = conn.Close()
	}()

	_, err = Send(context.Background(), socketPath, Request{Command: "status"}, 200*time.Millisecond)
	require.Error(t, err)
	require.Contains(t, err.Error(), "read response")
}

func TestServeDecodeRequestErrorResponse(t *testing.T) {
	socketPath := startServer(t, HandlerFunc(func(_ context.Context, _ Request) Response {
		return Response{OK: true}
	}))

	conn, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("not-json\n"))
	require.NoError(t, err)

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal(line, &resp))
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "decode request")
}

func TestWatchStreamsEvents(t *testing.T) {
	done := make(chan struct{})
	socketPath := startServer(t, HandlerFunc(func(_ context.Context, req Request) Response {
		if req.Command != "watch" {
			return Response{OK: false, Error: "unknown command"}
		}
		events := make(chan Event, 2)
		events <- Event{Event: "bridge:ready"}
		events <- Event{Event: "bridge:message", Args: []any{"news", "hello", nil}}
		close(events)
		return Response{OK: true, Events: events, Done: func() { close(done) }}
	}))

	var got []Event
	err := Watch(context.Background(), socketPath, 200*time.Millisecond, func(ev Event) error {
		got = append(got, ev)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []Event{
		{Event: "bridge:ready"},
		{Event: "bridge:message", Args: []any{"news", "hello", nil}},
	}, got)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream completion callback did not run")
	}
}

func TestWatchStopsOnCallbackError(t *testing.T) {
	events := make(chan Event, 1)
	events <- Event{Event: "bridge:ready"}
	done := make(chan struct{})
	socketPath := startServer(t, HandlerFunc(func(_ context.Context, _ Request) Response {
		return Response{OK: true, Events: events, Done: func() { close(done) }}
	}))

	stop := errors.New("stop")
	err := Watch(context.Background(), socketPath, 200*time.Millisecond, func(Event) error {
		return stop
	})
	require.ErrorIs(t, err, stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("server kept streaming after the client went away")
	}
}

func TestWatchCancelledContext(t *testing.T) {
	events := make(chan Event)
	socketPath := startServer(t, HandlerFunc(func(_ context.Context, _ Request) Response {
		return Response{OK: true, Events: events}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	err := Watch(ctx, socketPath, 200*time.Millisecond, func(Event) error { return nil })
	require.NoError(t, err)
}

func TestWatchRejected(t *testing.T) {
	socketPath := startServer(t, HandlerFunc(func(_ context.Context, _ Request) Response {
		return Response{OK: false, Error: "watch unavailable"}
	}))

	err := Watch(context.Background(), socketPath, 200*time.Millisecond, func(Event) error { return nil })
	require.EqualError(t, err, "watch rejected: watch unavailable")
}

func TestProbe(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "redbridge.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- Serve(ctx, listener, HandlerFunc(func(_ context.Context, req Request) Response {
			if req.Command == "status" {
				return Response{OK: true, State: "connecting"}
			}
			return Response{OK: false, Error: "bad"}
		}))
	}()

	alive, probeErr := Probe(context.Background(), socketPath, 200*time.Millisecond)
	require.NoError(t, probeErr)
	require.True(t, alive)

	cancel()
	require.NoError(t, <-serveDone)

	alive, probeErr = Probe(context.Background(), socketPath, 100*time.Millisecond)
	require.NoError(t, probeErr)
	require.False(t, alive)
}
