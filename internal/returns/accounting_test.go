package returns

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func stocked(asin string, qty, pending int) InventoryItem {
	return InventoryItem{ASIN: asin, SKU: asin + "-NEW", Qty: qty, PendingQty: pending, TotalQty: qty + pending}
}

func upload(id, asin string, qty int) PendingUpload {
	return PendingUpload{ReturnEntry: ReturnEntry{ID: id, ASIN: asin, Quantity: qty}}
}

func requireBalanced(t *testing.T, st *State) {
	t.Helper()
	for _, item := range st.Inventory {
		require.GreaterOrEqual(t, item.Qty, 0, item.ASIN)
		require.GreaterOrEqual(t, item.PendingQty, 0, item.ASIN)
		require.Equal(t, item.Qty+item.PendingQty, item.TotalQty, item.ASIN)
	}
}

func TestAddPendingUploadReservesQuantity(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("B0726307618", 3, 1)})

	st.AddPendingUpload(upload("u1", "B0726307618", 2))

	item, ok := st.Item("B0726307618")
	require.True(t, ok)
	require.Equal(t, 3, item.Qty)
	require.Equal(t, 3, item.PendingQty)
	require.Equal(t, 6, item.TotalQty)
	require.Len(t, st.Pending, 1)
}

func TestAddPendingUploadWithoutInventoryMatch(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 1, 0)})

	st.AddPendingUpload(upload("u1", "N/A", 4))

	require.Len(t, st.Pending, 1)
	item, _ := st.Item("A")
	require.Equal(t, 0, item.PendingQty)
}

func TestRemovePendingUploadFloorsAtZero(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 2, 1)})
	st.Pending = []PendingUpload{upload("u1", "A", 5)}

	removed, err := st.RemovePendingUpload("u1")
	require.NoError(t, err)
	require.Equal(t, 5, removed.Quantity)

	item, _ := st.Item("A")
	require.Equal(t, 0, item.PendingQty)
	require.Equal(t, 2, item.Qty)
	require.Equal(t, 2, item.TotalQty)
	require.Empty(t, st.Pending)
}

func TestRemovePendingUploadUnknownID(t *testing.T) {
	st := NewState()
	_, err := st.RemovePendingUpload("missing")
	require.ErrorIs(t, err, ErrEntryNotFound)
}

func TestFinalizeUploadMovesPendingIntoStock(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 1, 0), stocked("B", 0, 0)})
	st.AddPendingUpload(upload("u1", "A", 2))
	st.AddPendingUpload(upload("u2", "B", 1))

	finalized, err := st.FinalizeUpload()
	require.NoError(t, err)
	require.Len(t, finalized, 2)
	require.Len(t, st.Pending, 2)

	a, _ := st.Item("A")
	require.Equal(t, InventoryItem{ASIN: "A", SKU: "A-NEW", Qty: 3, PendingQty: 0, TotalQty: 3}, a)
	requireBalanced(t, st)

	_, err = st.FinalizeUpload()
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestFinalizeUploadEmpty(t *testing.T) {
	st := NewState()
	_, err := st.FinalizeUpload()
	require.ErrorIs(t, err, ErrEmptyBatch)
}

func TestClearPendingAfterFinalizeKeepsStock(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 0, 0)})
	st.AddPendingUpload(upload("u1", "A", 2))
	_, err := st.FinalizeUpload()
	require.NoError(t, err)
	st.AddPendingUpload(upload("u2", "A", 1))

	st.ClearPending()

	item, _ := st.Item("A")
	require.Equal(t, 2, item.Qty)
	require.Equal(t, 0, item.PendingQty)
	require.Empty(t, st.Pending)
	requireBalanced(t, st)
}

func TestSetInventoryRestoresTotals(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{{ASIN: "A", Qty: 3, PendingQty: 1, TotalQty: 9}, {ASIN: "B", Qty: -2, PendingQty: 1}})
	requireBalanced(t, st)
	b, _ := st.Item("B")
	require.Equal(t, 1, b.TotalQty)
	require.True(t, st.InventoryLoaded)
}

func TestSetInventoryKeepsPendingReservations(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 3, 1)})
	st.AddPendingUpload(upload("u1", "A", 2))

	st.SetInventory([]InventoryItem{stocked("A", 3, 1)})

	item, _ := st.Item("A")
	require.Equal(t, 3, item.PendingQty)
	require.Equal(t, 6, item.TotalQty)

	_, err := st.RemovePendingUpload("u1")
	require.NoError(t, err)
	item, _ = st.Item("A")
	require.Equal(t, 1, item.PendingQty)
	require.Equal(t, 4, item.TotalQty)
	requireBalanced(t, st)
}

func TestSetInventoryAppliesUploadsQueuedBeforeLoad(t *testing.T) {
	st := NewState()
	st.AddPendingUpload(upload("u1", "A", 2))
	st.AddPendingUpload(upload("u2", "A", 1))

	st.SetInventory([]InventoryItem{stocked("A", 3, 1)})

	item, _ := st.Item("A")
	require.Equal(t, 4, item.PendingQty)

	_, err := st.RemovePendingUpload("u1")
	require.NoError(t, err)
	st.ClearPending()
	item, _ = st.Item("A")
	require.Equal(t, 1, item.PendingQty)
	require.Equal(t, 3, item.Qty)
	requireBalanced(t, st)
}

func TestSetInventorySkipsFinalizedUploads(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 0, 0)})
	st.AddPendingUpload(upload("u1", "A", 2))
	_, err := st.FinalizeUpload()
	require.NoError(t, err)
	st.AddPendingUpload(upload("u2", "A", 1))

	st.SetInventory([]InventoryItem{stocked("A", 2, 0)})

	item, _ := st.Item("A")
	require.Equal(t, 2, item.Qty)
	require.Equal(t, 1, item.PendingQty)
	requireBalanced(t, st)
}

func TestAccountingSequenceStaysBalanced(t *testing.T) {
	st := NewState()
	st.SetInventory([]InventoryItem{stocked("A", 1, 0), stocked("B", 0, 2)})
	steps := []func(){
		func() { st.AddPendingUpload(upload("1", "A", 3)) },
		func() { st.AddPendingUpload(upload("2", "B", 1)) },
		func() { _, _ = st.RemovePendingUpload("2") },
		func() { st.AddPendingUpload(upload("3", "B", 7)) },
		func() { _, _ = st.FinalizeUpload() },
		func() { _, _ = st.RemovePendingUpload("1") },
		func() { st.AddPendingUpload(upload("4", "A", 1)) },
		func() { st.ClearPending() },
	}
	for _, step := range steps {
		step()
		requireBalanced(t, st)
	}
	a, _ := st.Item("A")
	require.Equal(t, 4, a.Qty)
	b, _ := st.Item("B")
	require.Equal(t, 7, b.Qty)
	require.Equal(t, 2, b.PendingQty)
}

func TestUpdatePendingLocation(t *testing.T) {
	st := NewState()
	st.Pending = []PendingUpload{upload("u1", "A", 1)}
	require.NoError(t, st.UpdatePendingLocation("u1", "C3", "top shelf"))
	require.Equal(t, "C3", st.Pending[0].Location)
	require.Equal(t, "top shelf", st.Pending[0].LocationNotes)
	require.ErrorIs(t, st.UpdatePendingLocation("x", "", ""), ErrEntryNotFound)
}

func TestReturnsByStableID(t *testing.T) {
	st := NewState()
	st.AddReturn(ReturnEntry{ID: "a"})
	st.AddReturn(ReturnEntry{ID: "b"})
	st.AddReturn(ReturnEntry{ID: "c"})

	require.NoError(t, st.RemoveReturn("b"))
	require.Equal(t, []string{"a", "c"}, []string{st.Returns[0].ID, st.Returns[1].ID})
	require.ErrorIs(t, st.RemoveReturn("b"), ErrEntryNotFound)

	st.ClearReturns()
	require.Empty(t, st.Returns)
}

func TestUpdateOrderQuantityClamps(t *testing.T) {
	st := NewState()
	st.Orders.Stage(OrderRecord{OrderID: "114-1", Quantity: 1})

	require.NoError(t, st.UpdateOrderQuantity("114-1", -3))
	o, _ := st.Orders.Find("114-1")
	require.Equal(t, 0, o.Quantity)

	require.NoError(t, st.UpdateOrderQuantity("114-1", 4))
	o, _ = st.Orders.Find("114-1")
	require.Equal(t, 4, o.Quantity)

	require.ErrorIs(t, st.UpdateOrderQuantity("nope", 1), ErrEntryNotFound)
}

func TestLedgerDedupe(t *testing.T) {
	st := NewState()
	require.True(t, st.Orders.Stage(OrderRecord{OrderID: "1", Name: "first"}))
	require.False(t, st.Orders.Stage(OrderRecord{OrderID: "1", Name: "second"}))
	require.Equal(t, 1, st.Orders.Len())
	o, _ := st.Orders.Find("1")
	require.Equal(t, "first", o.Name)

	require.True(t, st.LPNs.Stage(StagedLPN{ID: "x", LPN: "L1"}))
	require.True(t, st.LPNs.Stage(StagedLPN{ID: "y", LPN: "L1"}))
	require.Equal(t, 2, st.LPNs.Len())

	require.True(t, st.LPNs.Unstage("x"))
	require.False(t, st.LPNs.Unstage("x"))
	require.Equal(t, "y", st.LPNs.List()[0].ID)
}
