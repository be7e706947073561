// Package grpc is the gRPC surface of the authentication service. Messages
// are plain Go structs carried by a JSON codec.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type AuthService interface {
	Register(ctx context.Context, displayName, email, password string) (*models.PublicAccount, error)
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.LoginResult, error)
	RejectRateLimited(ctx context.Context, email string, client services.ClientInfo) error
	VerifyToken(ctx context.Context, token string) (*models.PublicAccount, error)
	Logout(ctx context.Context, token string, client services.ClientInfo) error
	AuditLog(ctx context.Context, token string, limit, offset int) ([]*models.AuditRecord, error)
}

type GRPCServer struct {
	address string
	svc     AuthService
	limiter ratelimit.Limiter
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc AuthService, limiter ratelimit.Limiter) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		svc:     svc,
		limiter: limiter,
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.rateLimitInterceptor, s.accessTokenInterceptor))
	srv.RegisterService(&ServiceDesc, &handler{svc: s.svc})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.serve(ctx, listen)
}

func (s *GRPCServer) serve(ctx context.Context, listen net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
		case <-time.After(5 * time.Second):
			srv.Stop()
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
