package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neexbeast/geoplaces/internal/api"
	"github.com/neexbeast/geoplaces/internal/auth"
	"github.com/neexbeast/geoplaces/internal/config"
	"github.com/neexbeast/geoplaces/internal/storage"
	"github.com/neexbeast/geoplaces/internal/throttle"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("loading config", "err", err)
		os.Exit(1)
	}
	log := cfg.Logging.NewLogger(os.Stdout)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx := context.Background()

	// Connect to PostgreSQL.
	pool, err := storage.Connect(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	// Run migrations.
	if err := storage.RunMigrations(ctx, pool, cfg.Database.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	log.Info("migrations applied", "dir", cfg.Database.MigrationsDir)

	// Connect to Redis. Without it logins are not throttled.
	var (
		limiter     auth.LoginLimiter
		redisPinger api.Pinger
	)
	if cfg.Redis.URL != "" {
		redisClient, err := throttle.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Warn("redis unavailable, login throttling disabled", "err", err)
		} else {
			defer func() { _ = redisClient.Close() }()
			limiter = throttle.NewLoginLimiter(redisClient, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockoutWindow)
			redisPinger = &redisPingerAdapter{client: redisClient}
		}
	} else {
		log.Info("REDIS_URL not set, login throttling disabled")
	}

	// Wire dependencies.
	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTAlgorithm, cfg.Auth.TokenTTL())
	if err != nil {
		return fmt.Errorf("creating token issuer: %w", err)
	}
	users := storage.NewUserRepository(pool)
	accounts := auth.NewService(users, tokens, auth.Options{
		AdminUsers: cfg.Auth.AdminUsers,
		BcryptCost: cfg.Auth.BcryptCost,
		Limiter:    limiter,
	}, log)

	handlers := api.NewHandlers(
		storage.NewPlaceRepository(pool),
		storage.NewReviewRepository(pool),
		storage.NewRouteRepository(pool),
		accounts,
		log,
	)

	router := api.NewRouter(handlers, accounts, api.RouterOptions{
		CORSOrigins:     cfg.CORS.Origins,
		RateLimitPerIP:  cfg.RateLimit.Requests,
		RateLimitWindow: cfg.RateLimit.Window,
		DB:              pool,
		Redis:           redisPinger,
		Log:             log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("server goroutine panicked", "recover", r)
				errCh <- fmt.Errorf("server panicked: %v", r)
			}
		}()
		log.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listening: %w", err)
		}
	}()

	select {
	case sig := <-quit:
		log.Info("shutdown signal received", "signal", sig)
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}

	log.Info("server shut down cleanly")
	return nil
}

// redisPingerAdapter adapts redis.Client to api.Pinger.
type redisPingerAdapter struct {
	client *redis.Client
}

func (r *redisPingerAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
