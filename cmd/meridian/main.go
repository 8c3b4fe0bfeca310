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

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/meridian-erp/meridian-erp/internal/app"
	"github.com/meridian-erp/meridian-erp/internal/category"
	"github.com/meridian-erp/meridian-erp/internal/dashboard"
	"github.com/meridian-erp/meridian-erp/internal/fleet"
	"github.com/meridian-erp/meridian-erp/internal/history"
	"github.com/meridian-erp/meridian-erp/internal/platform/cache"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/requisition"
	"github.com/meridian-erp/meridian-erp/internal/sales"
	"github.com/meridian-erp/meridian-erp/internal/shared"
	"github.com/meridian-erp/meridian-erp/internal/stock"
	"github.com/meridian-erp/meridian-erp/internal/users"
	"github.com/meridian-erp/meridian-erp/jobs"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, dashboard cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
	}()

	idempotency := shared.NewIdempotencyStore(pool)

	dashCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	if err := dashCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("cache invalidation listener", slog.Any("error", err))
	}

	categoryService := category.NewService(category.NewRepository(pool))
	historyService := history.NewService(history.NewRepository(pool))
	stockService := stock.NewService(stock.NewRepository(pool), idempotency, dashCache)
	requisitionService := requisition.NewService(requisition.NewRepository(pool), idempotency, dashCache)
	salesService := sales.NewService(sales.NewRepository(pool), idempotency, dashCache)
	fleetService := fleet.NewService(fleet.NewRepository(pool))
	dashboardService := dashboard.NewService(dashboard.NewRepository(pool), dashCache)
	usersService := users.NewService(users.NewRepository(pool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init jobs client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = jobsClient.Close() }()

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		Category:    category.NewHandler(logger, categoryService),
		Stock:       stock.NewHandler(logger, stockService),
		Requisition: requisition.NewHandler(logger, requisitionService),
		History:     history.NewHandler(logger, historyService),
		Sales:       sales.NewHandler(logger, salesService),
		Fleet:       fleet.NewHandler(logger, fleetService),
		Dashboard:   dashboard.NewHandler(logger, dashboardService),
		Users:       users.NewHandler(logger, usersService),
		Jobs:        jobs.NewHandler(inspector, jobsClient, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
