package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	jobmetrics "github.com/odyssey-erp/returnsdesk/internal/jobs"
)

// InventoryUpdater applies one adjustment to the inventory sheet.
type InventoryUpdater interface {
	UpdateInventory(ctx context.Context, update sheets.InventoryUpdate) (json.RawMessage, error)
}

// InventorySyncJob pushes finalized uploads to the gateway one by one.
type InventorySyncJob struct {
	gateway InventoryUpdater
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewInventorySyncJob constructs the job handler.
func NewInventorySyncJob(gateway InventoryUpdater, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventorySyncJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &InventorySyncJob{gateway: gateway, logger: logger, metrics: metrics}
}

// Handle processes TaskInventorySync. A failed update does not stop the
// remaining ones; the task fails without retry when any update failed.
func (j *InventorySyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track(TaskInventorySync)
	var payload InventorySyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return tracker.End(fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry))
	}

	var failed []error
	for _, update := range payload.Updates {
		if _, err := j.gateway.UpdateInventory(ctx, update); err != nil {
			j.logger.Error("inventory sync update",
				slog.String("session", payload.SessionID),
				slog.String("asin", update.ASIN),
				slog.Any("error", err))
			failed = append(failed, fmt.Errorf("%s: %w", update.ASIN, err))
		}
	}
	ok := len(payload.Updates) - len(failed)
	j.metrics.AddSynced("ok", ok)
	j.metrics.AddSynced("failed", len(failed))
	j.logger.Info("inventory sync finished",
		slog.String("session", payload.SessionID),
		slog.Int("updated", ok),
		slog.Int("failed", len(failed)))

	if len(failed) > 0 {
		return tracker.End(fmt.Errorf("%d of %d updates failed: %w: %w",
			len(failed), len(payload.Updates), errors.Join(failed...), asynq.SkipRetry))
	}
	return tracker.End(nil)
}
