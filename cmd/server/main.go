package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/snackattack-pos/api/internal/auth"
	"github.com/snackattack-pos/api/internal/config"
	"github.com/snackattack-pos/api/internal/database"
	"github.com/snackattack-pos/api/internal/observability"
	"github.com/snackattack-pos/api/internal/router"
	"github.com/snackattack-pos/api/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogFormat, !cfg.IsProduction())
	slog.SetDefault(logger)

	if cfg.MigrateOnStart {
		if err := database.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("run migrations", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("ping postgres", slog.Any("error", err))
		os.Exit(1)
	}

	store, closeStore := sessionStore(ctx, cfg, logger)
	defer closeStore()
	sessions := auth.NewSessionManager(store, cfg.SessionSecret, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())

	metrics := observability.NewMetrics()
	queries := database.New(pool)

	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}, metrics)
	inventoryService := service.NewInventoryService(pool, func(db database.DBTX) service.InventoryStore {
		return database.New(db)
	}, metrics)
	reportService := service.NewReportService(queries)

	handler := router.New(router.Deps{
		Config:    cfg,
		Queries:   queries,
		Sessions:  sessions,
		Orders:    orderService,
		Inventory: inventoryService,
		Reports:   reportService,
		Metrics:   metrics,
		Logger:    logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", server.Addr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// sessionStore returns a Redis backed store when REDIS_ADDR is set and an
// in-process store otherwise. The returned func releases the client.
func sessionStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (auth.SessionStore, func()) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, sessions are kept in memory")
		return auth.NewMemoryStore(), func() {}
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("sessions stored in redis", slog.String("addr", cfg.RedisAddr))
	return auth.NewRedisStore(client), func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
