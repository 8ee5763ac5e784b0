package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/returns"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInventorySync pushes finalized uploads to the inventory sheet.
	TaskInventorySync = "inventory:sync"
	// TaskAuditPrune removes audit entries past retention.
	TaskAuditPrune = "audit:prune"
)

// InventorySyncPayload carries the updates produced by one finalize.
type InventorySyncPayload struct {
	SessionID string                   `json:"session_id"`
	Updates   []sheets.InventoryUpdate `json:"updates"`
}

// NewInventorySyncTask builds an inventory:sync task. Gateway writes are
// not idempotent, so the task is never retried.
func NewInventorySyncTask(sessionID string, uploads []returns.PendingUpload) (*asynq.Task, error) {
	payload := InventorySyncPayload{SessionID: sessionID, Updates: make([]sheets.InventoryUpdate, 0, len(uploads))}
	for _, u := range uploads {
		payload.Updates = append(payload.Updates, sheets.InventoryUpdate{
			Action:         sheets.InventoryAdd,
			ASIN:           u.ASIN,
			SKU:            u.SKU,
			ProductName:    u.ProductName,
			Quantity:       u.Quantity,
			Condition:      u.Condition,
			InventoryPrice: u.InventoryPrice,
			ListingPrice:   u.ListingPrice,
			Location:       u.Location,
		})
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventorySync, body, asynq.Queue(QueueDefault), asynq.MaxRetry(0)), nil
}

// AuditPrunePayload carries the retention window.
type AuditPrunePayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditPruneTask builds an audit:prune task.
func NewAuditPruneTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(AuditPrunePayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, body, asynq.Queue(QueueDefault)), nil
}
