package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/scenesync/internal/config"
	"github.com/aretw0/scenesync/pkg/adapters/badger"
	"github.com/aretw0/scenesync/pkg/adapters/file"
	scenehttp "github.com/aretw0/scenesync/pkg/adapters/http"
	"github.com/aretw0/scenesync/pkg/adapters/loam"
	"github.com/aretw0/scenesync/pkg/adapters/memory"
	"github.com/aretw0/scenesync/pkg/adapters/redis"
	"github.com/aretw0/scenesync/pkg/authority"
	"github.com/aretw0/scenesync/pkg/observability"
	"github.com/aretw0/scenesync/pkg/persistence/middleware"
	"github.com/aretw0/scenesync/pkg/ports"
)

// ShutdownTimeout bounds graceful shutdown of the HTTP server.
const ShutdownTimeout = 5 * time.Second

// Stack is a wired authority ready to serve.
type Stack struct {
	Authority *authority.Authority
	Handler   http.Handler
	Metrics   *observability.Metrics

	closers []func() error
}

// Close releases backend connections.
func (s *Stack) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewStack builds the store, seed source, authority and HTTP handler described by cfg.
func NewStack(cfg config.Config, version string, logger *slog.Logger) (*Stack, error) {
	stack := &Stack{}
	opts := []authority.Option{
		authority.WithLogger(logger),
		authority.WithLockTTL(cfg.Server.LockTTL),
		authority.WithReplayWindow(cfg.Server.ReplayWindow),
		authority.WithHooks(observability.LogHooks(logger)),
	}

	var store ports.SnapshotStore
	switch cfg.Server.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
	case config.BackendFile:
		store = file.New(cfg.Server.DataDir)
	case config.BackendRedis:
		rc := cfg.Server.Redis
		rs := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		stack.closers = append(stack.closers, rs.Close)
		store = rs
		if rc.Lock {
			opts = append(opts, authority.WithLocker(redis.NewLocker(rs.Client(), rc.Prefix)))
		}
	case config.BackendBadger:
		bc := cfg.Server.Badger
		bs, err := badger.Open(badger.Config{
			Path:       bc.Path,
			SyncWrites: bc.SyncWrites,
			TTL:        bc.TTL,
			Logger:     logger.With("component", "badger"),
		})
		if err != nil {
			return nil, err
		}
		stack.closers = append(stack.closers, bs.Close)
		store = bs
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Server.Backend)
	}

	if enc := cfg.Server.Encryption; enc.Key != "" {
		mw, err := encryption(enc)
		if err != nil {
			_ = stack.Close()
			return nil, err
		}
		store = middleware.Chain(store, mw)
	}

	if cfg.Server.Seed != "" {
		seed, err := loam.Open(cfg.Server.Seed)
		if err != nil {
			_ = stack.Close()
			return nil, err
		}
		opts = append(opts, authority.WithSeed(seed))
	}

	serverOpts := []scenehttp.ServerOption{
		scenehttp.WithVersion(version),
		scenehttp.WithServerLogger(logger),
	}
	if cfg.Server.AuthSecret != "" {
		auth, err := scenehttp.NewAuthenticator([]byte(cfg.Server.AuthSecret))
		if err != nil {
			_ = stack.Close()
			return nil, err
		}
		serverOpts = append(serverOpts, scenehttp.WithAuthenticator(auth))
	}
	if cfg.Server.Metrics {
		stack.Metrics = observability.NewMetrics(nil)
		opts = append(opts, authority.WithHooks(stack.Metrics.Hooks()))
		serverOpts = append(serverOpts, scenehttp.WithMetricsHandler(stack.Metrics.Handler()))
	}

	stack.Authority = authority.New(store, opts...)
	stack.Handler = scenehttp.NewHandler(stack.Authority, serverOpts...)
	return stack, nil
}

func encryption(cfg config.Encryption) (middleware.Middleware, error) {
	active, err := middleware.DecodeKey(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption key: %w", err)
	}
	ec := middleware.EncryptionConfig{ActiveKey: active}
	for i, k := range cfg.FallbackKeys {
		key, err := middleware.DecodeKey(k)
		if err != nil {
			return nil, fmt.Errorf("fallback key %d: %w", i, err)
		}
		ec.FallbackKeys = append(ec.FallbackKeys, key)
	}
	return middleware.NewEncryption(ec)
}

// Serve runs handler on addr until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("authority listening", "addr", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown did not complete", "timeout", ShutdownTimeout, "err", err)
		return srv.Close()
	}
	return nil
}
