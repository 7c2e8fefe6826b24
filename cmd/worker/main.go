package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/garrison-ops/garrison/internal/app"
	"github.com/garrison-ops/garrison/internal/audit"
	"github.com/garrison-ops/garrison/internal/platform/db"
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

	auditWriter := jobs.NewAuditWriter(audit.NewRepository(pool), logger)

	mux := asynq.NewServeMux()
	mux.Handle(jobs.TypeAuditRecord, auditWriter)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		asynq.Config{
			Concurrency: 5,
			Queues:      map[string]int{"default": 1},
		},
	)

	go func() {
		<-ctx.Done()
		srv.Shutdown()
	}()

	logger.Info("worker starting", slog.String("redis", cfg.RedisAddr))
	if err := srv.Run(mux); err != nil {
		logger.Error("worker stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
