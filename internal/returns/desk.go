package returns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/pricing"
)

// DateLayout renders capture dates the way the intake sheet stores them.
const DateLayout = "1/2/2006"

const unknownProduct = "Unknown Product"

// Gateway is the subset of the sheets client the desk calls.
type Gateway interface {
	Lookup(ctx context.Context, q sheets.LookupQuery) (sheets.Record, error)
	SearchOrders(ctx context.Context, name string) ([]sheets.Record, error)
	Batch(ctx context.Context, req sheets.BatchRequest) error
}

// Desk applies operator actions to a State. It keeps no per-operator data
// itself; callers serialise access to each State.
type Desk struct {
	gateway Gateway
	policy  pricing.Policy
	now     func() time.Time
	newID   func() string
}

// NewDesk constructs a Desk.
func NewDesk(gateway Gateway, policy pricing.Policy) *Desk {
	return &Desk{
		gateway: gateway,
		policy:  policy,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// IntakeInput is one operator submission from the intake form.
type IntakeInput struct {
	Name      string `json:"name" validate:"max=200"`
	LPN       string `json:"lpn" validate:"max=64"`
	UPCASIN   string `json:"upcAsin" validate:"max=64"`
	Quantity  int    `json:"quantity" validate:"min=1,max=10000"`
	Condition string `json:"condition" validate:"required"`
	Output    Output `json:"output" validate:"oneof=mfn fba eBay throw"`
}

func (in IntakeInput) query() sheets.LookupQuery {
	return sheets.LookupQuery{
		Name:    strings.TrimSpace(in.Name),
		LPN:     strings.TrimSpace(in.LPN),
		UPCASIN: strings.TrimSpace(in.UPCASIN),
	}
}

// PromoteInput carries the values applied to every entry moved from a
// staging ledger into the pending uploads.
type PromoteInput struct {
	Condition string `json:"condition" validate:"required"`
	Output    Output `json:"output" validate:"oneof=mfn fba eBay throw"`
	Location  string `json:"location" validate:"max=64"`
}

// AddReturn looks the item up on the gateway, prices it and appends the
// resulting entry. Nothing is mutated when the lookup fails.
func (d *Desk) AddReturn(ctx context.Context, st *State, in IntakeInput) (ReturnEntry, error) {
	q := in.query()
	if q.Empty() {
		return ReturnEntry{}, ErrNoIdentifier
	}
	rec, err := d.gateway.Lookup(ctx, q)
	if err != nil {
		return ReturnEntry{}, err
	}
	tier, _ := pricing.ParseTier(in.Condition)
	entry := d.entryFrom(rec, identifiers{name: q.Name, lpn: q.LPN, asin: q.UPCASIN}, tier, in.Output, in.Quantity)
	st.AddReturn(entry)
	return entry, nil
}

type identifiers struct {
	name string
	lpn  string
	asin string
}

func (d *Desk) entryFrom(rec sheets.Record, ids identifiers, tier pricing.Tier, output Output, qty int) ReturnEntry {
	asin := firstNonEmpty(rec.ASIN, ids.asin, pricing.NotAvailable)
	price := d.policy.PriceFor(d.policy.Base(rec.InventoryPrice.Float()), tier)
	return ReturnEntry{
		ID:             d.newID(),
		SKU:            pricing.SKU(asin, tier),
		ASIN:           asin,
		Condition:      tier.Label(),
		Quantity:       qty,
		OrderID:        firstNonEmpty(rec.OrderID, pricing.NotAvailable),
		Marketplace:    firstNonEmpty(rec.Marketplace, pricing.NotAvailable),
		ReturnReason:   firstNonEmpty(rec.ReturnReason, pricing.NotAvailable),
		Date:           d.now().Format(DateLayout),
		LPN:            firstNonEmpty(rec.LPN, ids.lpn, pricing.NotAvailable),
		Output:         output,
		InventoryPrice: price.InventoryPrice,
		ListingPrice:   price.ListingPrice,
		ProductName:    firstNonEmpty(rec.ProductName, rec.Name, ids.name, unknownProduct),
	}
}

// QueueReturn moves a return entry into the pending uploads at location.
func (d *Desk) QueueReturn(st *State, id, location, notes string) (PendingUpload, error) {
	for _, entry := range st.Returns {
		if entry.ID != id {
			continue
		}
		upload := PendingUpload{ReturnEntry: entry, Location: location, LocationNotes: notes}
		st.AddPendingUpload(upload)
		_ = st.RemoveReturn(id)
		return upload, nil
	}
	return PendingUpload{}, ErrEntryNotFound
}

// SearchOrders queries the gateway once per name, in order, and replaces
// the transient search results. The first failure aborts the search and
// leaves the previous results in place.
func (d *Desk) SearchOrders(ctx context.Context, st *State, names []string) ([]OrderRecord, error) {
	cleaned := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			cleaned = append(cleaned, name)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoIdentifier
	}
	if len(cleaned) > MaxSearchNames {
		return nil, fmt.Errorf("returns: at most %d names per search", MaxSearchNames)
	}
	var results []OrderRecord
	for _, name := range cleaned {
		recs, err := d.gateway.SearchOrders(ctx, name)
		if err != nil {
			return nil, err
		}
		for _, rec := range recs {
			if len(results) == MaxSearchResults {
				break
			}
			results = append(results, orderFrom(rec, name))
		}
	}
	st.SearchResults = results
	return results, nil
}

func orderFrom(rec sheets.Record, name string) OrderRecord {
	return OrderRecord{
		Name:         firstNonEmpty(rec.Name, name),
		OrderID:      rec.OrderID,
		Marketplace:  rec.Marketplace,
		ReturnReason: rec.ReturnReason,
		ASIN:         rec.ASIN,
		LPN:          rec.LPN,
		Date:         rec.Date,
		Address:      rec.Address,
		City:         rec.City,
		State:        rec.State,
		Quantity:     max(rec.Quantity.Int(), 1),
	}
}

// StageOrder stages an order. Orders already staged are ignored and
// reported as false.
func (d *Desk) StageOrder(st *State, order OrderRecord) (bool, error) {
	order.OrderID = strings.TrimSpace(order.OrderID)
	if order.OrderID == "" {
		return false, ErrNoIdentifier
	}
	if order.Quantity < 1 {
		order.Quantity = 1
	}
	return st.Orders.Stage(order), nil
}

// StageSearchResult stages the search result with orderID.
func (d *Desk) StageSearchResult(st *State, orderID string) (bool, error) {
	for _, order := range st.SearchResults {
		if order.OrderID == orderID {
			return d.StageOrder(st, order)
		}
	}
	return false, ErrEntryNotFound
}

// StageLPN stages a license plate number dated today.
func (d *Desk) StageLPN(st *State, lpn string) (StagedLPN, error) {
	lpn = strings.TrimSpace(lpn)
	if lpn == "" {
		return StagedLPN{}, ErrNoIdentifier
	}
	staged := StagedLPN{ID: d.newID(), Date: d.now().Format(DateLayout), LPN: lpn}
	st.LPNs.Stage(staged)
	return staged, nil
}

// StageRemoval stages an ASIN or UPC for removal dated today.
func (d *Desk) StageRemoval(st *State, asinUPC string) (StagedRemoval, error) {
	asinUPC = strings.TrimSpace(asinUPC)
	if asinUPC == "" {
		return StagedRemoval{}, ErrNoIdentifier
	}
	staged := StagedRemoval{ID: d.newID(), Date: d.now().Format(DateLayout), ASINUPC: asinUPC}
	st.Removals.Stage(staged)
	return staged, nil
}

// Unstage removes one entry from a ledger. Orders are keyed by order id,
// LPNs and removals by entry id.
func (d *Desk) Unstage(st *State, kind LedgerKind, key string) error {
	var ok bool
	switch kind {
	case LedgerOrders:
		ok = st.Orders.Unstage(key)
	case LedgerLPNs:
		ok = st.LPNs.Unstage(key)
	case LedgerRemovals:
		ok = st.Removals.Unstage(key)
	default:
		return fmt.Errorf("returns: unknown ledger %q", kind)
	}
	if !ok {
		return ErrEntryNotFound
	}
	return nil
}

// BatchFor builds the gateway batch request for a ledger.
func BatchFor(st *State, kind LedgerKind) (sheets.BatchRequest, int, error) {
	switch kind {
	case LedgerOrders:
		return sheets.BatchRequest{Action: sheets.ActionPopulateMFN, Orders: st.Orders.List()}, st.Orders.Len(), nil
	case LedgerLPNs:
		return sheets.BatchRequest{Action: sheets.ActionPopulateLPN, LPNs: st.LPNs.List()}, st.LPNs.Len(), nil
	case LedgerRemovals:
		return sheets.BatchRequest{Action: sheets.ActionPopulateRemoval, Removals: st.Removals.List()}, st.Removals.Len(), nil
	default:
		return sheets.BatchRequest{}, 0, fmt.Errorf("returns: unknown ledger %q", kind)
	}
}

// Drain submits a whole ledger in one gateway call and clears it on
// success. On failure the ledger is left exactly as it was.
func (d *Desk) Drain(ctx context.Context, st *State, kind LedgerKind) (int, error) {
	req, n, err := BatchFor(st, kind)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrEmptyBatch
	}
	if err := d.gateway.Batch(ctx, req); err != nil {
		return 0, err
	}
	switch kind {
	case LedgerOrders:
		st.Orders.Clear()
	case LedgerLPNs:
		st.LPNs.Clear()
	case LedgerRemovals:
		st.Removals.Clear()
	}
	return n, nil
}

// Promote looks up every entry of a ledger in order and queues each one as
// a priced pending upload, unstaging it once queued. The first failed lookup
// stops the run; that entry and every later one stay staged.
func (d *Desk) Promote(ctx context.Context, st *State, kind LedgerKind, in PromoteInput) (int, error) {
	tier, _ := pricing.ParseTier(in.Condition)
	promote := func(key string, q sheets.LookupQuery, ids identifiers, qty int, unstage func(string) bool) error {
		rec, err := d.gateway.Lookup(ctx, q)
		if err != nil {
			return err
		}
		if qty > 0 {
			entry := d.entryFrom(rec, ids, tier, in.Output, qty)
			st.AddPendingUpload(PendingUpload{
				ReturnEntry:   entry,
				Location:      firstNonEmpty(rec.Location, in.Location),
				LocationNotes: rec.LocationNotes,
			})
		}
		unstage(key)
		return nil
	}

	done := 0
	var err error
	switch kind {
	case LedgerOrders:
		for _, o := range st.Orders.List() {
			q := sheets.LookupQuery{OrderID: o.OrderID, Name: o.Name, LPN: o.LPN, UPCASIN: o.ASIN}
			if err = promote(o.OrderID, q, identifiers{name: o.Name, lpn: o.LPN, asin: o.ASIN}, o.Quantity, st.Orders.Unstage); err != nil {
				break
			}
			done++
		}
	case LedgerLPNs:
		for _, l := range st.LPNs.List() {
			q := sheets.LookupQuery{LPN: l.LPN}
			if err = promote(l.ID, q, identifiers{lpn: l.LPN}, 1, st.LPNs.Unstage); err != nil {
				break
			}
			done++
		}
	case LedgerRemovals:
		for _, r := range st.Removals.List() {
			q := sheets.LookupQuery{UPCASIN: r.ASINUPC}
			if err = promote(r.ID, q, identifiers{asin: r.ASINUPC}, 1, st.Removals.Unstage); err != nil {
				break
			}
			done++
		}
	default:
		return 0, fmt.Errorf("returns: unknown ledger %q", kind)
	}
	if err != nil {
		return done, err
	}
	if done == 0 {
		return 0, ErrEmptyBatch
	}
	return done, nil
}

// IsNotice reports errors that are operator notices rather than faults.
func IsNotice(err error) bool {
	return errors.Is(err, ErrEmptyBatch) || errors.Is(err, ErrNoIdentifier) || errors.Is(err, ErrDuplicateSubmit)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
