package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/rbright/redbridge/internal/bridge"
	"github.com/rbright/redbridge/internal/config"
	"github.com/rbright/redbridge/internal/health"
	"github.com/rbright/redbridge/internal/host"
	"github.com/rbright/redbridge/internal/ipc"
	"github.com/rbright/redbridge/internal/metrics"
	"github.com/rbright/redbridge/internal/store"
	"github.com/rbright/redbridge/internal/store/redisstore"
	"github.com/rbright/redbridge/internal/version"
)

// commandServe owns the socket, connects both Redis roles, and serves the
// host, health, and metrics endpoints until ctx is cancelled.
func (r Runner) commandServe(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.ResolveSocketPath(cfg.Socket.Path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, ipc.AcquireOptions{Retries: 8, Logger: logger})
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			logger.Warn("serve refused", "socket", socketPath, "error", err.Error())
		}
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	redisstore.SetLogger(logger)

	recorder := metrics.New()
	healthServer := health.NewServer()
	hub := host.NewHub(0, logger)

	b := bridge.New(bridge.Options{
		Dialer:    r.dialer(cfg, logger),
		Emitter:   hub,
		Recorder:  recorder,
		Observers: []bridge.StateObserver{healthServer, recorder},
		Logger:    logger,
	})
	defer func() {
		if err := b.Close(); err != nil {
			logger.Warn("close bridge failed", "error", err.Error())
		}
	}()

	if err := b.Connect(ctx, cfg.Redis.URL); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	healthListener, metricsListener, err := openListeners(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ipc.Serve(gctx, listener, host.NewHandler(b, hub, logger))
	})
	if healthListener != nil {
		g.Go(func() error { return healthServer.Serve(gctx, healthListener) })
	}
	if metricsListener != nil {
		g.Go(func() error { return recorder.Serve(gctx, metricsListener) })
	}

	logger.Info("serve start",
		"version", version.Version,
		"socket", socketPath,
		"health", cfg.Health.Listen,
		"metrics", cfg.Metrics.Listen,
	)
	fmt.Fprintf(r.Stdout, "listening on %s\n", socketPath)

	if err := g.Wait(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("serve failed", "error", err.Error())
		return 1
	}
	logger.Info("serve stop", "watchers", hub.Watchers())
	return 0
}

func (r Runner) dialer(cfg config.Config, logger *slog.Logger) store.Dialer {
	if r.Dialer != nil {
		return r.Dialer
	}
	return redisstore.Dialer{
		HealthInterval: cfg.Redis.HealthInterval(),
		PingTimeout:    cfg.Redis.PingTimeout(),
		Logger:         logger,
	}
}

// openListeners binds the optional TCP endpoints. A nil listener means the
// endpoint is disabled.
func openListeners(cfg config.Config) (healthListener, metricsListener net.Listener, err error) {
	if cfg.Health.Enabled() {
		healthListener, err = net.Listen("tcp", cfg.Health.Listen)
		if err != nil {
			return nil, nil, fmt.Errorf("listen health %s: %w", cfg.Health.Listen, err)
		}
	}
	if cfg.Metrics.Enabled() {
		metricsListener, err = net.Listen("tcp", cfg.Metrics.Listen)
		if err != nil {
			err = fmt.Errorf("listen metrics %s: %w", cfg.Metrics.Listen, err)
			if healthListener != nil {
				err = multierr.Append(err, healthListener.Close())
			}
			return nil, nil, err
		}
	}
	return healthListener, metricsListener, nil
}
