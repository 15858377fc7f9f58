// Package metrics exposes bridge activity as Prometheus series.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/redbridge/internal/fsm"
	"github.com/rbright/redbridge/internal/store"
	"github.com/rbright/redbridge/internal/version"
)

const namespace = "redbridge"

var states = []fsm.State{fsm.StateDisconnected, fsm.StateConnecting, fsm.StateReady}

// Metrics implements bridge.Recorder and bridge.StateObserver.
type Metrics struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	relayed    *prometheus.CounterVec
	connection *prometheus.GaugeVec
	buildInfo  *prometheus.GaugeVec
}

// New registers every series on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Bridge operations by name and result.",
		}, []string{"op", "result"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_entries_total",
			Help:      "Batch entries dropped before sending.",
		}, []string{"op"}),
		relayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relayed_messages_total",
			Help:      "Inbound pub/sub messages relayed to the host.",
		}, []string{"payload"}),
		connection: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "1 for the current lifecycle state of each connection.",
		}, []string{"role", "state"}),
		buildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1; labels carry the running build.",
		}, []string{"version", "commit", "goversion"}),
	}
	m.registry.MustRegister(m.operations, m.skipped, m.relayed, m.connection, m.buildInfo)

	build := version.Current()
	m.buildInfo.WithLabelValues(build.Version, build.Commit, build.Go).Set(1)

	for _, role := range []store.Role{store.RoleCommand, store.RoleNotification} {
		m.ConnectionState(role, fsm.StateDisconnected)
	}
	return m
}

func (m *Metrics) Operation(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Skipped(op string, n int) {
	if n <= 0 {
		return
	}
	m.skipped.WithLabelValues(op).Add(float64(n))
}

func (m *Metrics) Relayed(decoded bool) {
	payload := "raw"
	if decoded {
		payload = "decoded"
	}
	m.relayed.WithLabelValues(payload).Inc()
}

func (m *Metrics) ConnectionState(role store.Role, state fsm.State) {
	for _, candidate := range states {
		value := 0.0
		if candidate == state {
			value = 1
		}
		m.connection.WithLabelValues(string(role), string(candidate)).Set(value)
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve answers /metrics on listener until ctx is done.
func (m *Metrics) Serve(ctx context.Context, listener net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	})
	defer stop()

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
