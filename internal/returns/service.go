package returns

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
)

// StateStore persists one State per operator session.
type StateStore interface {
	Load(ctx context.Context, sessionID string) (*State, error)
	Save(ctx context.Context, sessionID string, st *State) error
	Delete(ctx context.Context, sessionID string) error
}

// InventorySource returns the inventory sheet.
type InventorySource interface {
	Inventory(ctx context.Context) ([]sheets.InventoryRow, error)
}

// SubmitGuard rejects a key claimed within its window.
type SubmitGuard interface {
	Claim(ctx context.Context, scope, key string) error
	Release(ctx context.Context, scope, key string) error
}

// SyncQueue receives finalized uploads for pushing to the inventory sheet.
type SyncQueue interface {
	EnqueueInventorySync(ctx context.Context, sessionID string, uploads []PendingUpload) error
}

// AuditRecorder stores an audit trail entry.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service serialises desk operations per session and persists the
// resulting state after every successful mutation.
type Service struct {
	desk      *Desk
	store     StateStore
	inventory InventorySource
	guard     SubmitGuard
	sync      SyncQueue
	audit     AuditRecorder
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sessionLock
	group singleflight.Group
}

// NewService constructs a Service. guard, sync and audit are optional.
func NewService(desk *Desk, store StateStore, inventory InventorySource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		desk:      desk,
		store:     store,
		inventory: inventory,
		logger:    logger,
		locks:     make(map[string]*sessionLock),
	}
}

// SetSubmitGuard installs the double-submit guard used by drains.
func (s *Service) SetSubmitGuard(guard SubmitGuard) { s.guard = guard }

// SetSyncQueue installs the queue that receives finalized uploads.
func (s *Service) SetSyncQueue(q SyncQueue) { s.sync = q }

// SetAuditRecorder installs the audit trail.
func (s *Service) SetAuditRecorder(a AuditRecorder) { s.audit = a }

type sessionLock struct {
	sync.Mutex
	refs int
}

// lock serialises work on one session. Entries leave the map once no caller
// holds or waits on them.
func (s *Service) lock(sessionID string) func() {
	s.mu.Lock()
	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, sessionID)
		}
		s.mu.Unlock()
	}
}

// View returns a copy of the session state.
func (s *Service) View(ctx context.Context, sessionID string) (*State, error) {
	unlock := s.lock(sessionID)
	defer unlock()
	return s.store.Load(ctx, sessionID)
}

// mutate loads the state, applies fn and saves the state unless fn failed
// with a fault. Notices still persist whatever fn changed.
func (s *Service) mutate(ctx context.Context, sessionID string, fn func(*State) error) error {
	unlock := s.lock(sessionID)
	defer unlock()
	st, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load desk: %w", err)
	}
	ferr := fn(st)
	if ferr != nil && !errors.Is(ferr, errPartial) {
		return ferr
	}
	if err := s.store.Save(ctx, sessionID, st); err != nil {
		return fmt.Errorf("save desk: %w", err)
	}
	return nil
}

// errPartial marks a failure after some mutations that must be kept.
var errPartial = errors.New("partial")

type partialError struct{ err error }

func (e partialError) Error() string        { return e.err.Error() }
func (e partialError) Unwrap() error        { return e.err }
func (e partialError) Is(target error) bool { return target == errPartial }

// AddReturn performs an intake lookup and appends the priced entry.
func (s *Service) AddReturn(ctx context.Context, sessionID string, in IntakeInput) (ReturnEntry, error) {
	var entry ReturnEntry
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		entry, err = s.desk.AddReturn(ctx, st, in)
		return err
	})
	return entry, err
}

// RemoveReturn drops one return entry.
func (s *Service) RemoveReturn(ctx context.Context, sessionID, id string) error {
	return s.mutate(ctx, sessionID, func(st *State) error { return st.RemoveReturn(id) })
}

// ClearReturns drops the returns preview.
func (s *Service) ClearReturns(ctx context.Context, sessionID string) error {
	return s.mutate(ctx, sessionID, func(st *State) error {
		st.ClearReturns()
		return nil
	})
}

// QueueReturn moves a return entry into the pending uploads.
func (s *Service) QueueReturn(ctx context.Context, sessionID, id, location, notes string) (PendingUpload, error) {
	var upload PendingUpload
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		upload, err = s.desk.QueueReturn(st, id, location, notes)
		return err
	})
	return upload, err
}

// SearchOrders runs a name search and keeps the results on the desk.
func (s *Service) SearchOrders(ctx context.Context, sessionID string, names []string) ([]OrderRecord, error) {
	var results []OrderRecord
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		results, err = s.desk.SearchOrders(ctx, st, names)
		return err
	})
	return results, err
}

// StageSearchResult stages one order from the last search.
func (s *Service) StageSearchResult(ctx context.Context, sessionID, orderID string) (bool, error) {
	var added bool
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		added, err = s.desk.StageSearchResult(st, orderID)
		return err
	})
	return added, err
}

// StageOrder stages an order supplied directly by the caller.
func (s *Service) StageOrder(ctx context.Context, sessionID string, order OrderRecord) (bool, error) {
	var added bool
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		added, err = s.desk.StageOrder(st, order)
		return err
	})
	return added, err
}

// StageLPN stages a license plate number.
func (s *Service) StageLPN(ctx context.Context, sessionID, lpn string) (StagedLPN, error) {
	var staged StagedLPN
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		staged, err = s.desk.StageLPN(st, lpn)
		return err
	})
	return staged, err
}

// StageRemoval stages an ASIN or UPC for removal.
func (s *Service) StageRemoval(ctx context.Context, sessionID, asinUPC string) (StagedRemoval, error) {
	var staged StagedRemoval
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		staged, err = s.desk.StageRemoval(st, asinUPC)
		return err
	})
	return staged, err
}

// Unstage removes one ledger entry.
func (s *Service) Unstage(ctx context.Context, sessionID string, kind LedgerKind, key string) error {
	return s.mutate(ctx, sessionID, func(st *State) error { return s.desk.Unstage(st, kind, key) })
}

// UpdateOrderQuantity edits a staged order's quantity.
func (s *Service) UpdateOrderQuantity(ctx context.Context, sessionID, orderID string, qty int) error {
	return s.mutate(ctx, sessionID, func(st *State) error { return st.UpdateOrderQuantity(orderID, qty) })
}

// Drain submits a ledger to the gateway. An identical batch submitted again
// within the guard window is rejected with ErrDuplicateSubmit.
func (s *Service) Drain(ctx context.Context, sessionID string, kind LedgerKind) (int, error) {
	var n int
	err := s.mutate(ctx, sessionID, func(st *State) error {
		key, err := s.drainKey(sessionID, st, kind)
		if err != nil {
			return err
		}
		if s.guard != nil && key != "" {
			if err := s.guard.Claim(ctx, drainScope, key); err != nil {
				if errors.Is(err, shared.ErrAlreadySubmitted) {
					return ErrDuplicateSubmit
				}
				return err
			}
		}
		n, err = s.desk.Drain(ctx, st, kind)
		if err != nil && s.guard != nil && key != "" {
			if derr := s.guard.Release(ctx, drainScope, key); derr != nil {
				s.logger.Warn("release drain guard", slog.Any("error", derr))
			}
		}
		return err
	})
	if err == nil {
		s.record(ctx, sessionID, "drain", string(kind), map[string]any{"count": n})
	}
	return n, err
}

const drainScope = "drain"

func (s *Service) drainKey(sessionID string, st *State, kind LedgerKind) (string, error) {
	req, n, err := BatchFor(st, kind)
	if err != nil || n == 0 {
		return "", err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(sessionID+"|"), payload...))
	return hex.EncodeToString(sum[:]), nil
}

// Promote moves a ledger into the pending uploads. Entries promoted before
// a failure stay promoted.
func (s *Service) Promote(ctx context.Context, sessionID string, kind LedgerKind, in PromoteInput) (int, error) {
	var (
		n      int
		runErr error
	)
	err := s.mutate(ctx, sessionID, func(st *State) error {
		n, runErr = s.desk.Promote(ctx, st, kind, in)
		if runErr != nil && n > 0 {
			return partialError{err: runErr}
		}
		return runErr
	})
	if err != nil {
		return n, err
	}
	return n, runErr
}

// RemovePendingUpload drops one pending upload, releasing its reservation.
func (s *Service) RemovePendingUpload(ctx context.Context, sessionID, id string) error {
	return s.mutate(ctx, sessionID, func(st *State) error {
		_, err := st.RemovePendingUpload(id)
		return err
	})
}

// UpdatePendingLocation edits the shelf location of a pending upload.
func (s *Service) UpdatePendingLocation(ctx context.Context, sessionID, id, location, notes string) error {
	return s.mutate(ctx, sessionID, func(st *State) error { return st.UpdatePendingLocation(id, location, notes) })
}

// ClearPending empties the pending uploads.
func (s *Service) ClearPending(ctx context.Context, sessionID string) error {
	return s.mutate(ctx, sessionID, func(st *State) error {
		st.ClearPending()
		return nil
	})
}

// FinalizeUpload moves pending quantities into available stock and hands
// the finalized uploads to the sync queue.
func (s *Service) FinalizeUpload(ctx context.Context, sessionID string) ([]PendingUpload, error) {
	var finalized []PendingUpload
	err := s.mutate(ctx, sessionID, func(st *State) error {
		var err error
		finalized, err = st.FinalizeUpload()
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.sync != nil {
		if err := s.sync.EnqueueInventorySync(ctx, sessionID, finalized); err != nil {
			s.logger.Error("enqueue inventory sync", slog.String("session", sessionID), slog.Any("error", err))
		}
	}
	s.record(ctx, sessionID, "finalize", "pending_uploads", map[string]any{"count": len(finalized)})
	return finalized, nil
}

// LoadInventory replaces the session's inventory snapshot with the current
// sheet. Concurrent loads share one gateway call.
func (s *Service) LoadInventory(ctx context.Context, sessionID string) ([]InventoryItem, error) {
	items, err := s.fetchInventory(ctx)
	if err != nil {
		return nil, err
	}
	var out []InventoryItem
	err = s.mutate(ctx, sessionID, func(st *State) error {
		st.SetInventory(items)
		out = append([]InventoryItem(nil), st.Inventory...)
		return nil
	})
	return out, err
}

// fetchInventory joins an in-flight sheet read if there is one. A caller
// whose context ends stops waiting without cancelling the shared read.
func (s *Service) fetchInventory(ctx context.Context) ([]InventoryItem, error) {
	readCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan("inventory", func() (any, error) {
		rows, err := s.inventory.Inventory(readCtx)
		if err != nil {
			return nil, err
		}
		return inventoryItems(rows), nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]InventoryItem), nil
	}
}

// Reset discards the session's desk.
func (s *Service) Reset(ctx context.Context, sessionID string) error {
	unlock := s.lock(sessionID)
	defer unlock()
	return s.store.Delete(ctx, sessionID)
}

func (s *Service) record(ctx context.Context, sessionID, action, entity string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	meta["session"] = sessionID
	if err := s.audit.Record(ctx, shared.AuditLog{
		Action:   "returns." + action,
		Entity:   entity,
		Actor:    sessionID,
		EntityID: sessionID,
		Meta:     meta,
		At:       time.Now(),
	}); err != nil {
		s.logger.Warn("record audit", slog.String("action", action), slog.Any("error", err))
	}
}

func inventoryItems(rows []sheets.InventoryRow) []InventoryItem {
	items := make([]InventoryItem, len(rows))
	for i, row := range rows {
		items[i] = InventoryItem{
			ASIN:           row.ASIN,
			SKU:            row.SKU,
			ProductName:    row.ProductName,
			Qty:            row.Qty.Int(),
			PendingQty:     row.PendingQty.Int(),
			TotalQty:       row.TotalQty.Int(),
			Location:       row.Location,
			LocationNotes:  row.LocationNotes,
			Condition:      row.Condition,
			InventoryPrice: row.InventoryPrice.Float(),
			ListingPrice:   row.ListingPrice.Float(),
			Dims:           row.Dims,
			Weight:         row.Weight.Float(),
			LastReceived:   row.LastReceived,
		}
	}
	return items
}
