package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"keerthanaapi/internal/attachment"
	"keerthanaapi/internal/auth"
	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/config"
	"keerthanaapi/internal/editor"
	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/logging"
	"keerthanaapi/internal/notify"
	"keerthanaapi/internal/session"
	"keerthanaapi/internal/store"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		logging.Default().Fatal().Err(err).Msg("server stopped")
	}
}

func run() error {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := openDB(ctx, cfg.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	logger.Info().Msg("database connection OK")

	objects, files, err := openObjectStore(cfg.Storage)
	if err != nil {
		return err
	}

	keerthanas := store.NewKeerthanaPG(dbPool, cfg.DBTimeout)
	users := store.NewUserPG(dbPool)

	verifier := catalog.NewVerifier(cfg.SecurityCode, cfg.SecurityCodeHash)
	if !verifier.Required() {
		logger.Warn().Msg("no security code configured, mutations run without confirmation")
	}

	broker := notify.NewBroker(&logger)
	sessions := session.NewRegistry(session.Config{
		Store:       keerthanas,
		Verifier:    verifier,
		Uploader:    attachment.NewUploader(objects),
		Notifiers:   broker.For,
		IdleTTL:     cfg.SessionTTL,
		LoadTimeout: cfg.DBTimeout,
	})
	authService := auth.NewService(cfg.JWTSecret, cfg.TokenTTL, users, sessions)

	rt := routes{
		auth:      auth.NewHTTPHandler(authService),
		catalog:   catalog.NewHTTPHandler(sessions),
		editor:    editor.NewHTTPHandler(sessions),
		events:    notify.NewSSEHandler(broker),
		files:     files,
		verifier:  authService,
		ready:     dbPool.Ping,
		maxBody:   cfg.MaxBodyBytes,
		maxUpload: cfg.MaxUploadBytes,
	}

	rateLimiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler := httpx.Chain(rt.handler(),
		httpx.RecoveryMiddleware,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware,
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		rateLimiter.Middleware,
	)

	httpServer := &http.Server{
		Addr:        cfg.Addr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout stays zero so /api/events can stream.
		IdleTimeout: 60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return logging.WithLogger(context.Background(), &logger)
		},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		broker.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Msg("starting server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", redactDSN(dsn), err)
	}
	return pool, nil
}

// openObjectStore returns the configured store and, for disk storage, the
// handler that serves it under /files/.
func openObjectStore(cfg config.Storage) (attachment.ObjectStore, http.Handler, error) {
	if cfg.Driver == "remote" {
		return attachment.NewRemoteStore(cfg.URL, cfg.Bucket, cfg.Key, cfg.RPS), nil, nil
	}
	disk, err := attachment.NewDiskStore(cfg.Dir, cfg.PublicURL)
	if err != nil {
		return nil, nil, err
	}
	return disk, disk.Handler(), nil
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
