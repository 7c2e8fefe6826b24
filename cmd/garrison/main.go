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
	"golang.org/x/sync/errgroup"

	"github.com/garrison-ops/garrison/internal/app"
	"github.com/garrison-ops/garrison/internal/assignments"
	"github.com/garrison-ops/garrison/internal/audit"
	"github.com/garrison-ops/garrison/internal/auth"
	"github.com/garrison-ops/garrison/internal/dashboard"
	"github.com/garrison-ops/garrison/internal/expenditures"
	"github.com/garrison-ops/garrison/internal/ledger"
	"github.com/garrison-ops/garrison/internal/masterdata/bases"
	"github.com/garrison-ops/garrison/internal/masterdata/equipment"
	"github.com/garrison-ops/garrison/internal/platform/db"
	"github.com/garrison-ops/garrison/internal/purchases"
	"github.com/garrison-ops/garrison/internal/scope"
	"github.com/garrison-ops/garrison/internal/transfers"
	"github.com/garrison-ops/garrison/jobs"
)

func main() {
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

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()
	auditRecorder := jobs.NewAuditEnqueuer(asynqClient, logger)

	accessReader := scope.NewCachedAccessReader(scope.NewRepository(pool), redisClient, cfg.ScopeCacheTTL, logger)
	scopes := scope.NewResolver(accessReader)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	userRepo := auth.NewRepository(pool)
	authService := auth.NewService(userRepo, tokens)
	authHandler := auth.NewHandler(logger, authService)
	authMiddleware := auth.Middleware{Tokens: tokens, Users: userRepo, Logger: logger}

	ledgerRepo := ledger.NewRepository(pool)

	purchaseService := purchases.NewService(purchases.NewRepository(pool), scopes, auditRecorder)
	transferService := transfers.NewService(transfers.NewRepository(pool), scopes, auditRecorder)
	assignmentService := assignments.NewService(assignments.NewRepository(pool), scopes, auditRecorder)
	expenditureService := expenditures.NewService(expenditures.NewRepository(pool), scopes, auditRecorder)
	dashboardService := dashboard.NewService(ledgerRepo, dashboard.NewRepository(pool), scopes)

	baseService := bases.NewService(bases.NewRepository(pool), scopes)
	equipmentService := equipment.NewService(equipment.NewRepository(pool))
	auditRepo := audit.NewRepository(pool)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AuthMiddleware:     authMiddleware,
		AuthHandler:        authHandler,
		PurchaseHandler:    purchases.NewHandler(logger, purchaseService),
		TransferHandler:    transfers.NewHandler(logger, transferService),
		AssignmentHandler:  assignments.NewHandler(logger, assignmentService),
		ExpenditureHandler: expenditures.NewHandler(logger, expenditureService),
		DashboardHandler:   dashboard.NewHandler(logger, dashboardService),
		BaseHandler:        bases.NewHandler(logger, baseService),
		EquipmentHandler:   equipment.NewHandler(logger, equipmentService),
		AuditHandler:       audit.NewHandler(logger, auditRepo),
		Pool:               pool,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
