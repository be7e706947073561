// Package httpapi is the REST surface of the authentication service.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/gorilla/mux"
)

const shutdownTimeout = 5 * time.Second

type AuthService interface {
	Register(ctx context.Context, displayName, email, password string) (*models.PublicAccount, error)
	Login(ctx context.Context, email, password string, client services.ClientInfo) (*services.LoginResult, error)
	RejectRateLimited(ctx context.Context, email string, client services.ClientInfo) error
	VerifyToken(ctx context.Context, token string) (*models.PublicAccount, error)
	Logout(ctx context.Context, token string, client services.ClientInfo) error
	AuditLog(ctx context.Context, token string, limit, offset int) ([]*models.AuditRecord, error)
	ArchiveAuditLog(ctx context.Context, token string, from, to time.Time) (*audit.ArchiveResult, error)
}

type Server struct {
	address        string
	svc            AuthService
	limiter        ratelimit.Limiter
	trustedProxies []netip.Prefix
	logger         logging.Logger
}

type Option func(*Server)

// WithTrustedProxies lets peers inside the given prefixes report the client
// address through X-Forwarded-For.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(s *Server) { s.trustedProxies = prefixes }
}

func NewServer(address string, svc AuthService, limiter ratelimit.Limiter, l logging.Logger, opts ...Option) *Server {
	s := &Server{
		address: address,
		svc:     svc,
		limiter: limiter,
		logger:  l.With("module", "http_server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.Handle("/login", s.rateLimited(http.HandlerFunc(s.login))).Methods(http.MethodPost)
	api.HandleFunc("/verify", s.verify).Methods(http.MethodGet)
	api.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	api.HandleFunc("/audit", s.auditLog).Methods(http.MethodGet)
	api.HandleFunc("/audit/archive", s.archiveAuditLog).Methods(http.MethodPost)

	return r
}

func (s *Server) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
