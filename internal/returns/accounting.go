package returns

// State is the working set owned by one operator session. It holds no I/O
// handles so it can be persisted between requests.
type State struct {
	Returns         []ReturnEntry         `json:"returns"`
	Inventory       []InventoryItem       `json:"inventory"`
	InventoryLoaded bool                  `json:"inventoryLoaded"`
	Pending         []PendingUpload       `json:"pending"`
	Orders          Ledger[OrderRecord]   `json:"orders"`
	LPNs            Ledger[StagedLPN]     `json:"lpns"`
	Removals        Ledger[StagedRemoval] `json:"removals"`
	SearchResults   []OrderRecord         `json:"searchResults"`
}

// NewState returns an empty state with the orders ledger de-duplicating.
func NewState() *State {
	return &State{Orders: Ledger[OrderRecord]{Unique: true}}
}

// SetInventory replaces the inventory snapshot, restoring the
// total = qty + pending identity on every row. Quantities reserved by
// pending entries that are not yet finalized exist only in this session,
// so they are re-applied on top of the fresh rows.
func (s *State) SetInventory(items []InventoryItem) {
	s.Inventory = make([]InventoryItem, len(items))
	for i, item := range items {
		item.Qty = max(item.Qty, 0)
		item.PendingQty = max(item.PendingQty, 0)
		item.TotalQty = item.Qty + item.PendingQty
		s.Inventory[i] = item
	}
	for _, upload := range s.Pending {
		if !upload.Finalized {
			s.adjust(upload.ASIN, 0, upload.Quantity)
		}
	}
	s.InventoryLoaded = true
}

// Item returns the inventory row for asin.
func (s *State) Item(asin string) (InventoryItem, bool) {
	if idx := s.itemIndex(asin); idx >= 0 {
		return s.Inventory[idx], true
	}
	return InventoryItem{}, false
}

func (s *State) itemIndex(asin string) int {
	if asin == "" {
		return -1
	}
	for i := range s.Inventory {
		if s.Inventory[i].ASIN == asin {
			return i
		}
	}
	return -1
}

// adjust moves qty between the available and pending buckets of the item
// keyed by asin. Both buckets are floored at zero and the total is derived.
func (s *State) adjust(asin string, qtyDelta, pendingDelta int) {
	idx := s.itemIndex(asin)
	if idx < 0 {
		return
	}
	item := &s.Inventory[idx]
	item.Qty = max(item.Qty+qtyDelta, 0)
	item.PendingQty = max(item.PendingQty+pendingDelta, 0)
	item.TotalQty = item.Qty + item.PendingQty
}

// AddPendingUpload queues upload and reserves its quantity on the matching
// inventory item.
func (s *State) AddPendingUpload(upload PendingUpload) {
	s.Pending = append(s.Pending, upload)
	s.adjust(upload.ASIN, 0, upload.Quantity)
}

// RemovePendingUpload drops the pending entry with id and releases its
// reservation.
func (s *State) RemovePendingUpload(id string) (PendingUpload, error) {
	for i, upload := range s.Pending {
		if upload.ID != id {
			continue
		}
		s.Pending = append(s.Pending[:i:i], s.Pending[i+1:]...)
		if !upload.Finalized {
			s.adjust(upload.ASIN, 0, -upload.Quantity)
		}
		return upload, nil
	}
	return PendingUpload{}, ErrEntryNotFound
}

// FinalizeUpload moves every pending quantity into available stock on the
// matching items and returns the entries it finalized. The pending list is
// left intact; callers clear it separately.
func (s *State) FinalizeUpload() ([]PendingUpload, error) {
	var finalized []PendingUpload
	for i := range s.Pending {
		upload := &s.Pending[i]
		if upload.Finalized {
			continue
		}
		s.adjust(upload.ASIN, upload.Quantity, -upload.Quantity)
		upload.Finalized = true
		finalized = append(finalized, *upload)
	}
	if len(finalized) == 0 {
		return nil, ErrEmptyBatch
	}
	return finalized, nil
}

// ClearPending removes every pending entry, releasing any reservation that
// is still held.
func (s *State) ClearPending() {
	for _, upload := range s.Pending {
		if !upload.Finalized {
			s.adjust(upload.ASIN, 0, -upload.Quantity)
		}
	}
	s.Pending = nil
}

// UpdatePendingLocation edits the shelf location of a pending entry.
func (s *State) UpdatePendingLocation(id, location, notes string) error {
	for i := range s.Pending {
		if s.Pending[i].ID == id {
			s.Pending[i].Location = location
			s.Pending[i].LocationNotes = notes
			return nil
		}
	}
	return ErrEntryNotFound
}

// AddReturn appends a return entry.
func (s *State) AddReturn(entry ReturnEntry) {
	s.Returns = append(s.Returns, entry)
}

// RemoveReturn drops the return entry with id.
func (s *State) RemoveReturn(id string) error {
	for i, entry := range s.Returns {
		if entry.ID == id {
			s.Returns = append(s.Returns[:i:i], s.Returns[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

// ClearReturns drops every return entry.
func (s *State) ClearReturns() {
	s.Returns = nil
}

// UpdateOrderQuantity sets the staged quantity of an order, clamped at zero.
func (s *State) UpdateOrderQuantity(orderID string, qty int) error {
	if !s.Orders.Update(orderID, func(o *OrderRecord) { o.Quantity = max(qty, 0) }) {
		return ErrEntryNotFound
	}
	return nil
}
