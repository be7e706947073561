// Package server wires the authentication service together and runs its
// HTTP and gRPC surfaces until the process is signalled.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/audit"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/config"
	"github.com/dmitrijs2005/authkeeper/internal/server/httpapi"
	"github.com/dmitrijs2005/authkeeper/internal/server/lockout"
	"github.com/dmitrijs2005/authkeeper/internal/server/password"
	"github.com/dmitrijs2005/authkeeper/internal/server/ratelimit"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/authkeeper/internal/server/grpc"
)

type App struct {
	config     *config.Config
	logger     logging.Logger
	store      *repomanager.Store
	service    *services.AuthService
	dispatcher *audit.Dispatcher
	limiter    ratelimit.Limiter
	redis      *redis.Client
}

// OpenStore connects to the configured database and applies migrations.
func OpenStore(ctx context.Context, c *config.Config) (*repomanager.Store, error) {
	manager, err := repomanager.NewRepositoryManager(c.DatabaseDriver)
	if err != nil {
		return nil, err
	}

	db, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store := repomanager.NewStore(db, manager)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}

	return store, nil
}

// NewAuthService builds the service on top of an open store. The archiver is
// attached only when object storage is configured.
func NewAuthService(ctx context.Context, c *config.Config, store *repomanager.Store, recorder audit.Recorder, logger logging.Logger) (*services.AuthService, error) {
	hasher, err := password.NewHasher(password.Config{Scheme: c.PasswordScheme, BcryptCost: c.BcryptCost})
	if err != nil {
		return nil, err
	}

	issuer, err := auth.NewIssuer([]byte(c.SecretKey), c.TokenLifetime)
	if err != nil {
		return nil, err
	}

	var opts []services.Option
	if c.ArchiveEnabled() {
		client, err := audit.NewS3Client(ctx, audit.S3Config{
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("s3 init error: %w", err)
		}
		opts = append(opts, services.WithArchiver(audit.NewArchiver(store.Audit(), client, c.S3Bucket)))
	}

	return services.NewAuthService(
		store,
		password.NewPool(hasher, c.HashWorkers),
		issuer,
		lockout.NewPolicy(c.MaxAttempts, c.LockoutDuration),
		recorder,
		logger.With("module", "auth_service"),
		opts...,
	), nil
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := OpenStore(ctx, c)
	if err != nil {
		return nil, err
	}

	dispatcher := audit.NewDispatcher(store.Audit(), logger.With("module", "audit"), c.AuditBufferSize)

	svc, err := NewAuthService(ctx, c, store, dispatcher, logger)
	if err != nil {
		dispatcher.Close()
		_ = store.Close()
		return nil, err
	}

	app := &App{config: c, logger: logger, store: store, service: svc, dispatcher: dispatcher}

	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		app.limiter = ratelimit.NewRedis(app.redis, c.RateLimitWindow, c.RateLimitThreshold)
	} else {
		app.limiter = ratelimit.NewMemory(c.RateLimitWindow, c.RateLimitThreshold)
	}

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := httpapi.NewServer(app.config.HTTPAddr, app.service, app.limiter, app.logger,
		httpapi.WithTrustedProxies(app.config.TrustedProxies))
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.GRPCAddr, app.logger, app.service, app.limiter)
	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled, a signal arrives or a server fails,
// then flushes pending audit records and releases connections.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.shutdown(context.Background())
}

func (app *App) shutdown(ctx context.Context) {
	app.dispatcher.Close()

	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			app.logger.Error(ctx, "redis close error", "error", err)
		}
	}

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
