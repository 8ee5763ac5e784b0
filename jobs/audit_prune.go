package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/returnsdesk/internal/jobs"
)

// Pruner deletes audit entries older than retention.
type Pruner interface {
	Prune(ctx context.Context, retention time.Duration) (int64, error)
}

// AuditPruneJob enforces audit retention.
type AuditPruneJob struct {
	pruner  Pruner
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewAuditPruneJob constructs the job handler.
func NewAuditPruneJob(pruner Pruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditPruneJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditPruneJob{pruner: pruner, logger: logger, metrics: metrics}
}

// Handle processes TaskAuditPrune.
func (j *AuditPruneJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskAuditPrune)
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.Retention <= 0 {
		return tracker.End(fmt.Errorf("invalid audit prune payload: %w", asynq.SkipRetry))
	}
	removed, err := j.pruner.Prune(ctx, payload.Retention)
	if err != nil {
		return tracker.End(fmt.Errorf("prune audit logs: %w", err))
	}
	j.metrics.AddPruned(removed)
	j.logger.Info("audit logs pruned", slog.Int64("removed", removed), slog.Duration("retention", payload.Retention))
	return tracker.End(nil)
}
