package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// Send opens a unix-socket request/response roundtrip with a deadline.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	conn, _, resp, err := roundTrip(ctx, path, req, timeout)
	if err != nil {
		return Response{}, err
	}
	_ = conn.Close()
	return resp, nil
}

// Watch sends a watch request and calls fn for every streamed event until
// ctx is cancelled, the server closes the stream, or fn returns an error.
// The timeout bounds only the initial handshake.
func Watch(ctx context.Context, path string, timeout time.Duration, fn func(Event) error) error {
	conn, reader, resp, err := roundTrip(ctx, path, Request{Command: "watch"}, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()

	if !resp.OK {
		return fmt.Errorf("watch rejected: %s", resp.Error)
	}

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return fmt.Errorf("clear deadline: %w", err)
	}

	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}

		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return fmt.Errorf("decode event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

func roundTrip(ctx context.Context, path string, req Request, timeout time.Duration) (net.Conn, *bufio.Reader, Response, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, nil, Response{}, err
	}

	fail := func(err error) (net.Conn, *bufio.Reader, Response, error) {
		_ = conn.Close()
		return nil, nil, Response{}, err
	}

	deadline := time.Now().Add(timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return fail(fmt.Errorf("set deadline: %w", err))
	}

	enc := json.NewEncoder(conn)
	if err := enc.Encode(req); err != nil {
		return fail(fmt.Errorf("encode request: %w", err))
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil {
		return fail(fmt.Errorf("read response: %w", err))
	}

	var resp Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fail(fmt.Errorf("decode response: %w", err))
	}

	return conn, reader, resp, nil
}

// Probe checks whether a responsive owner is currently listening on path.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: "status"}, timeout)
	if err == nil {
		return true, nil
	}
	if isSocketMissing(err) || isConnectionRefused(err) {
		return false, nil
	}
	return false, fmt.Errorf("probe socket: %w", err)
}

// isSocketMissing reports absent-socket failures.
func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist)
}

// isConnectionRefused reports no-listener failures.
func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
