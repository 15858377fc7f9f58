package redisstore

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rbright/redbridge/internal/store"
)

// monitor turns periodic pings into ready/end/reconnecting events.
type monitor struct {
	ping     func(context.Context) error
	handler  store.Handler
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration

	// owned by the run goroutine until it exits
	ready    bool
	wasReady bool
}

func (m *monitor) run(ctx context.Context) {
	ticker := m.clock.Ticker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *monitor) probe(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, m.timeout)
	err := m.ping(pingCtx)
	cancel()
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		m.handler.HandleError(err)
		if m.ready {
			m.ready = false
			m.handler.HandleEnd()
		}
		return
	}

	if m.ready {
		return
	}
	if m.wasReady {
		m.handler.HandleReconnecting()
	}
	m.ready = true
	m.wasReady = true
	m.handler.HandleReady()
}
