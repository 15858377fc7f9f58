// Package health publishes live connection status over the standard gRPC
// health checking protocol.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rbright/redbridge/internal/fsm"
	"github.com/rbright/redbridge/internal/store"
)

// Service names reported by the health server. ServiceOverall is SERVING
// only while both connections are ready.
const (
	ServiceOverall      = ""
	ServiceCommand      = "redbridge.command"
	ServiceNotification = "redbridge.notification"
)

// Server tracks connection states and answers health checks for them.
type Server struct {
	health *grpchealth.Server

	mu     sync.Mutex
	states map[store.Role]fsm.State
}

// NewServer starts with every service NOT_SERVING.
func NewServer() *Server {
	s := &Server{
		health: grpchealth.NewServer(),
		states: map[store.Role]fsm.State{
			store.RoleCommand:      fsm.StateDisconnected,
			store.RoleNotification: fsm.StateDisconnected,
		},
	}
	for _, service := range []string{ServiceOverall, ServiceCommand, ServiceNotification} {
		s.health.SetServingStatus(service, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// ConnectionState implements bridge.StateObserver.
func (s *Server) ConnectionState(role store.Role, state fsm.State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[role] = state
	s.health.SetServingStatus(serviceFor(role), servingStatus(state == fsm.StateReady))

	allReady := s.states[store.RoleCommand] == fsm.StateReady && s.states[store.RoleNotification] == fsm.StateReady
	s.health.SetServingStatus(ServiceOverall, servingStatus(allReady))
}

// Register attaches the health service to g.
func (s *Server) Register(g *grpc.Server) {
	healthpb.RegisterHealthServer(g, s.health)
}

// Serve runs a dedicated gRPC server on listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	g := grpc.NewServer()
	s.Register(g)

	stop := context.AfterFunc(ctx, func() {
		s.health.Shutdown()
		g.Stop()
	})
	defer stop()

	if err := g.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve health: %w", err)
	}
	return nil
}

func serviceFor(role store.Role) string {
	if role == store.RoleNotification {
		return ServiceNotification
	}
	return ServiceCommand
}

func servingStatus(ok bool) healthpb.HealthCheckResponse_ServingStatus {
	if ok {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
