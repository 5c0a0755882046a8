package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name health checkers ask about. The empty name reports the
// whole server as well.
const ServiceName = "chat.relay"

// HealthServer exposes the standard gRPC health protocol. It reports
// NOT_SERVING until SetServing(true) is called, typically once the HTTP
// listener accepts connections.
type HealthServer struct {
	log         *slog.Logger
	address     string
	health      *health.Server
	OnListening func(addr net.Addr)
}

func NewHealthServer(log *slog.Logger, address string) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{log: log, address: address, health: h}
}

func (s *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	s.log.Debug("Health status changed", "status", status.String())
}

// Run serves the health service until ctx is done. It is a supervised worker.
func (s *HealthServer) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, s.health)

	errChan := make(chan error, 1)
	go func() {
		s.log.Info("Starting gRPC health server", "address", listener.Addr().String(), "at", time.Now().UTC())
		errChan <- grpcServer.Serve(listener)
	}()
	if s.OnListening != nil {
		s.OnListening(listener.Addr())
	}

	select {
	case err := <-errChan:
		if err != nil && !stderrors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	s.SetServing(false)
	s.health.Shutdown()
	grpcServer.GracefulStop()
	s.log.Info("gRPC health server stopped")
	return nil
}
