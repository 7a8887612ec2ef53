package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mrcaglayan/cariledger/internal/app"
	"github.com/mrcaglayan/cariledger/internal/platform/cache"
	"github.com/mrcaglayan/cariledger/internal/ledger/document"
	"github.com/mrcaglayan/cariledger/internal/ledger/fx"
	"github.com/mrcaglayan/cariledger/internal/ledger/journal"
	"github.com/mrcaglayan/cariledger/internal/observability"
	"github.com/mrcaglayan/cariledger/internal/platform/db"
	"github.com/mrcaglayan/cariledger/internal/shared"
	"github.com/mrcaglayan/cariledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

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
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// The fx cache degrades to direct table reads when redis is down.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable, fx cache disabled", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(pool)
	access := shared.AllowAllAccess{}

	documentRepo := document.NewRepository(pool)
	documentService := document.NewService(documentRepo, access, nil, metrics, logger)
	documentHandler := document.NewHandler(logger, documentService)

	journalStore := journal.NewStore(pool)
	journalService := journal.NewService(journalStore, access, logger)
	journalHandler := journal.NewHandler(logger, journalService)

	var fxCache *fx.Cache
	if redisClient != nil {
		fxCache = fx.NewCache(redisClient, 5*time.Minute)
	}
	fxRepo := fx.NewCachedRepository(fx.NewRepository(pool), fxCache)
	fxHandler := fx.NewHandler(logger, fxRepo)

	auditHandler := shared.NewAuditHandler(logger, auditLogger)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		DocumentHandler: documentHandler,
		JournalHandler:  journalHandler,
		FxHandler:       fxHandler,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
		Pool:            pool,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
