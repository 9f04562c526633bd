package grpcserver

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/burhanahmad02/PhotoBooth-Superhero/internal/logging"
)

// ServiceName is reported alongside the overall ("") status.
const ServiceName = "photobooth.Avatar"

// HealthServer exposes grpc.health.v1.Health for orchestrators that probe
// over gRPC.
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewHealthServer registers the health service with every status SERVING.
func NewHealthServer(logger *zap.Logger) *HealthServer {
	named := logger.Named("grpc_health")
	srv := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(named)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{server: srv, health: hs, logger: named}
}

// Serve blocks until the listener fails or Shutdown is called.
func (s *HealthServer) Serve(lis net.Listener) error {
	s.logger.Info("grpc health listening", zap.String("addr", lis.Addr().String()))
	if err := s.server.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		wrapped := logging.NewOperationError("grpcserver.serve", "", err)
		s.logger.Error("grpc health server failed", zap.Error(wrapped))
		return wrapped
	}
	return nil
}

// Shutdown flips every service to NOT_SERVING and stops, forcing the stop
// once ctx expires.
func (s *HealthServer) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.server.Stop()
	}
}

func loggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		if err != nil {
			logger.Warn("grpc call failed", zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start)), zap.Error(err))
			return resp, err
		}
		logger.Debug("grpc call", zap.String("method", info.FullMethod), zap.Duration("latency", time.Since(start)))
		return resp, nil
	}
}
