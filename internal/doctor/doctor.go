// Package doctor runs runtime readiness diagnostics for config, the runtime dir, and Redis.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rbright/redbridge/internal/config"
	"github.com/rbright/redbridge/internal/ipc"
	"github.com/rbright/redbridge/internal/store/redisstore"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/store checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{checkConfig(cfg)}

	if cfg.Config.Socket.Path == "" {
		checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "runtime dir is set", "XDG_RUNTIME_DIR is empty; set socket.path instead"))
	}

	running, socketCheck := checkSocket(ctx, cfg.Config.Socket.Path)
	checks = append(checks, socketCheck)

	target := cfg.Config.Redis.URL
	checks = append(checks,
		checkStore(ctx, "redis.command", target, redisstore.Ping),
		checkStore(ctx, "redis.notification", target, redisstore.ProbeSubscribe),
	)

	if !running {
		if cfg.Config.Health.Enabled() {
			checks = append(checks, checkListen("health.listen", cfg.Config.Health.Listen))
		}
		if cfg.Config.Metrics.Enabled() {
			checks = append(checks, checkListen("metrics.listen", cfg.Config.Metrics.Listen))
		}
	}

	return Report{Checks: checks}
}

func checkConfig(cfg config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", cfg.Path)
	if !cfg.Exists {
		message = fmt.Sprintf("using defaults (%q not found)", cfg.Path)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkSocket reports whether a bridge already owns the IPC socket. Either
// answer passes; only an unresolvable or unresponsive path fails.
func checkSocket(ctx context.Context, configured string) (bool, Check) {
	path, err := ipc.ResolveSocketPath(configured)
	if err != nil {
		return false, Check{Name: "socket", Pass: false, Message: err.Error()}
	}
	alive, err := ipc.Probe(ctx, path, 200*time.Millisecond)
	if err != nil {
		return false, Check{Name: "socket", Pass: false, Message: err.Error()}
	}
	if alive {
		return true, Check{Name: "socket", Pass: true, Message: fmt.Sprintf("bridge running at %s", path)}
	}
	return false, Check{Name: "socket", Pass: true, Message: fmt.Sprintf("no bridge listening at %s", path)}
}

// checkStore runs one store probe against target with a bounded deadline.
func checkStore(ctx context.Context, name, target string, probe func(context.Context, string) error) Check {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if err := probe(ctx, target); err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("%s: %v", redact(target), err)}
	}
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("reachable at %s", redact(target))}
}

// checkListen validates that addr can be bound right now.
func checkListen(name, addr string) Check {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("cannot listen on %s: %v", addr, err)}
	}
	_ = listener.Close()
	return Check{Name: name, Pass: true, Message: fmt.Sprintf("%s is available", addr)}
}

func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "<unparseable>"
	}
	return u.Redacted()
}
