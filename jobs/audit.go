// Package jobs defines the background task types and their handlers.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/garrison-ops/garrison/internal/audit"
	"github.com/garrison-ops/garrison/internal/shared"
)

// TypeAuditRecord is the task type for audit trail writes.
const TypeAuditRecord = "audit:record"

// NewAuditRecordTask packs one audit record into a task.
func NewAuditRecordTask(rec shared.AuditRecord) (*asynq.Task, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal audit record: %w", err)
	}
	return asynq.NewTask(TypeAuditRecord, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// AuditEnqueuer hands audit records to the queue. It is best-effort:
// enqueue failures are logged and swallowed so the business transaction
// that already committed is never reported as failed.
type AuditEnqueuer struct {
	client *asynq.Client
	logger *slog.Logger
}

// NewAuditEnqueuer constructs an AuditEnqueuer.
func NewAuditEnqueuer(client *asynq.Client, logger *slog.Logger) *AuditEnqueuer {
	return &AuditEnqueuer{client: client, logger: logger}
}

// Record implements shared.AuditRecorder.
func (e *AuditEnqueuer) Record(ctx context.Context, rec shared.AuditRecord) {
	if rec.OccurredAt.IsZero() {
		rec.OccurredAt = time.Now().UTC()
	}
	task, err := NewAuditRecordTask(rec)
	if err != nil {
		e.logger.Error("audit task build failed", slog.String("action", rec.Action), slog.Any("error", err))
		return
	}
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		e.logger.Error("audit enqueue failed", slog.String("action", rec.Action), slog.Any("error", err))
	}
}

// AuditWriter handles queued audit records in the worker.
type AuditWriter struct {
	repo   *audit.Repository
	logger *slog.Logger
}

// NewAuditWriter constructs an AuditWriter.
func NewAuditWriter(repo *audit.Repository, logger *slog.Logger) *AuditWriter {
	return &AuditWriter{repo: repo, logger: logger}
}

// ProcessTask implements asynq.Handler.
func (w *AuditWriter) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var rec shared.AuditRecord
	if err := json.Unmarshal(task.Payload(), &rec); err != nil {
		// Unparseable payloads will never succeed; drop them.
		w.logger.Error("audit payload unreadable", slog.Any("error", err))
		return fmt.Errorf("jobs: unmarshal audit record: %v: %w", err, asynq.SkipRetry)
	}
	if err := w.repo.Insert(ctx, rec); err != nil {
		return err
	}
	w.logger.Debug("audit record stored", slog.String("action", rec.Action))
	return nil
}
