package returns

import (
	"errors"
	"fmt"
)

// Output is the routing destination chosen for a returned unit.
type Output string

const (
	// OutputMFN lists the unit as merchant fulfilled on Amazon.
	OutputMFN Output = "mfn"
	// OutputFBA sends the unit to Amazon fulfilment.
	OutputFBA Output = "fba"
	// OutputEBay lists the unit on eBay.
	OutputEBay Output = "eBay"
	// OutputThrow disposes of the unit.
	OutputThrow Output = "throw"
)

// Amazon reports whether the destination is an Amazon listing.
func (o Output) Amazon() bool {
	return o == OutputMFN || o == OutputFBA
}

// ReturnEntry is one returned unit queued for disposition.
type ReturnEntry struct {
	ID             string  `json:"id"`
	SKU            string  `json:"sku"`
	ASIN           string  `json:"asin"`
	Condition      string  `json:"condition"`
	Quantity       int     `json:"quantity"`
	OrderID        string  `json:"orderId"`
	Marketplace    string  `json:"marketplace"`
	ReturnReason   string  `json:"returnReason"`
	Date           string  `json:"date"`
	LPN            string  `json:"lpn"`
	Output         Output  `json:"output"`
	InventoryPrice float64 `json:"inventoryPrice"`
	ListingPrice   float64 `json:"listingPrice"`
	ProductName    string  `json:"productName"`
}

// InventoryItem is one stocked SKU, keyed by ASIN.
type InventoryItem struct {
	ASIN           string  `json:"asin"`
	SKU            string  `json:"sku"`
	ProductName    string  `json:"productName"`
	Qty            int     `json:"qty"`
	PendingQty     int     `json:"pendingQty"`
	TotalQty       int     `json:"totalQty"`
	Location       string  `json:"location"`
	LocationNotes  string  `json:"locationNotes"`
	Condition      string  `json:"condition"`
	InventoryPrice float64 `json:"inventoryPrice"`
	ListingPrice   float64 `json:"listingPrice"`
	Dims           string  `json:"dims"`
	Weight         float64 `json:"weight"`
	LastReceived   string  `json:"lastReceived"`
}

// OrderRecord is a candidate return found by name search.
type OrderRecord struct {
	Name         string `json:"name"`
	OrderID      string `json:"orderId"`
	Marketplace  string `json:"marketplace"`
	ReturnReason string `json:"returnReason"`
	ASIN         string `json:"asin"`
	LPN          string `json:"lpn"`
	Date         string `json:"date"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Quantity     int    `json:"quantity"`
}

// Key implements Keyed.
func (o OrderRecord) Key() string { return o.OrderID }

// PendingUpload is a unit queued for marketplace listing. Finalized entries
// have already moved their quantity into available stock.
type PendingUpload struct {
	ReturnEntry
	Location      string `json:"location"`
	LocationNotes string `json:"locationNotes"`
	Finalized     bool   `json:"finalized"`
}

// StagedLPN is a license plate number waiting to be logged.
type StagedLPN struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	LPN  string `json:"lpn"`
}

// Key implements Keyed.
func (s StagedLPN) Key() string { return s.ID }

// StagedRemoval is an ASIN or UPC waiting to be logged as removed.
type StagedRemoval struct {
	ID      string `json:"id"`
	Date    string `json:"date"`
	ASINUPC string `json:"asinUpc"`
}

// Key implements Keyed.
func (s StagedRemoval) Key() string { return s.ID }

// LedgerKind names one of the three staging ledgers.
type LedgerKind string

const (
	// LedgerOrders holds staged orders.
	LedgerOrders LedgerKind = "orders"
	// LedgerLPNs holds staged license plate numbers.
	LedgerLPNs LedgerKind = "lpns"
	// LedgerRemovals holds staged removals.
	LedgerRemovals LedgerKind = "removals"
)

// ParseLedgerKind validates a ledger name taken from a URL.
func ParseLedgerKind(raw string) (LedgerKind, error) {
	switch kind := LedgerKind(raw); kind {
	case LedgerOrders, LedgerLPNs, LedgerRemovals:
		return kind, nil
	default:
		return "", fmt.Errorf("returns: unknown ledger %q", raw)
	}
}

const (
	// MaxSearchNames caps the names accepted by one order search.
	MaxSearchNames = 25
	// MaxSearchResults caps the orders returned by one order search.
	MaxSearchResults = 250
)

var (
	// ErrNoIdentifier is returned when a lookup has no name, LPN or UPC/ASIN.
	ErrNoIdentifier = errors.New("returns: enter at least one of name, LPN, or UPC/ASIN")
	// ErrEmptyBatch is returned when draining or finalizing an empty list.
	ErrEmptyBatch = errors.New("returns: nothing to submit")
	// ErrEntryNotFound is returned for an unknown entry id.
	ErrEntryNotFound = errors.New("returns: entry not found")
	// ErrDuplicateSubmit is returned when the same batch is submitted twice in quick succession.
	ErrDuplicateSubmit = errors.New("returns: batch already submitted")
)
