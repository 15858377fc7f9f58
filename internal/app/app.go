// Package app dispatches parsed CLI invocations: it owns the serve process
// and the thin clients that talk to it.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/redbridge/internal/cli"
	"github.com/rbright/redbridge/internal/config"
	"github.com/rbright/redbridge/internal/doctor"
	"github.com/rbright/redbridge/internal/health"
	"github.com/rbright/redbridge/internal/ipc"
	"github.com/rbright/redbridge/internal/logging"
	"github.com/rbright/redbridge/internal/store"
	"github.com/rbright/redbridge/internal/version"
)

const (
	forwardTimeout = 220 * time.Millisecond
	callTimeout    = 5 * time.Second
	probeTimeout   = 2 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
	// Dialer replaces the go-redis transport used by serve.
	Dialer store.Dialer
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args, r.Stdout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText())
		return 2
	}

	if parsed.ShowHelp {
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	cfgLoaded, cfgErr := config.Load(parsed.ConfigPath)
	level := ""
	if cfgErr == nil {
		level = cfgLoaded.Config.Log.Level
	}

	logRuntime, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	if cfgErr != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", cfgErr)
		logger.Error("load config failed", "error", cfgErr.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	cfg := cfgLoaded.Config
	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandServe:
		return r.commandServe(ctx, cfg, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx, cfg)
	case cli.CommandCall:
		return r.commandCall(ctx, cfg, parsed)
	case cli.CommandWatch:
		return r.commandWatch(ctx, cfg)
	case cli.CommandProbe:
		return r.commandProbe(ctx, cfg, parsed)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandStatus(ctx context.Context, cfg config.Config) int {
	socketPath, err := ipc.ResolveSocketPath(cfg.Socket.Path)
	if err != nil {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"}, forwardTimeout)
	if !handled {
		fmt.Fprintln(r.Stdout, "stopped")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if status, ok := resp.Result.(map[string]any); ok {
		fmt.Fprintf(r.Stdout, "%s command=%v notification=%v\n", resp.State, status["command"], status["notification"])
		return 0
	}
	fmt.Fprintln(r.Stdout, resp.State)
	return 0
}

func (r Runner) commandCall(ctx context.Context, cfg config.Config, parsed cli.Parsed) int {
	socketPath, err := ipc.ResolveSocketPath(cfg.Socket.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	req := ipc.Request{
		Command: parsed.Args[0],
		Args:    requestArgs(parsed.Args[1:]),
		NoReply: parsed.NoReply,
	}
	resp, handled, err := tryForward(ctx, socketPath, req, callTimeout)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: redbridge is not running")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	if resp.Result == nil {
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}
	encoded, err := json.Marshal(resp.Result)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: encode result: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, string(encoded))
	return 0
}

func (r Runner) commandWatch(ctx context.Context, cfg config.Config) int {
	socketPath, err := ipc.ResolveSocketPath(cfg.Socket.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	err = ipc.Watch(ctx, socketPath, forwardTimeout, func(ev ipc.Event) error {
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		_, err = fmt.Fprintln(r.Stdout, string(line))
		return err
	})
	switch {
	case err == nil:
		return 0
	case isSocketMissing(err), isConnectionRefused(err):
		fmt.Fprintln(r.Stderr, "error: redbridge is not running")
		return 1
	default:
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
}

func (r Runner) commandProbe(ctx context.Context, cfg config.Config, parsed cli.Parsed) int {
	addr := strings.TrimSpace(parsed.Addr)
	if addr == "" {
		addr = cfg.Health.Listen
	}
	if strings.TrimSpace(addr) == "" {
		fmt.Fprintln(r.Stderr, "error: health endpoint disabled; set health.listen or pass --addr")
		return 1
	}

	status, err := health.Check(ctx, addr, parsed.Service, probeTimeout)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, status.String())
	if status != healthpb.HealthCheckResponse_SERVING {
		return 1
	}
	return 0
}

// requestArgs sends arguments that parse as JSON verbatim and quotes the rest.
func requestArgs(raw []string) []json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	out := make([]json.RawMessage, 0, len(raw))
	for _, arg := range raw {
		if json.Valid([]byte(arg)) {
			out = append(out, json.RawMessage(arg))
			continue
		}
		encoded, _ := json.Marshal(arg)
		out = append(out, encoded)
	}
	return out
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
