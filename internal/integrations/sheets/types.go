package sheets

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Number decodes a JSON number that the spreadsheet may also emit as a
// string. Blank or unparsable values decode as zero.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimPrefix(strings.TrimSpace(s), "$")
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*n = 0
			return nil
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 { return float64(n) }

// Count is a whole quantity decoded with the same tolerance as Number.
// Fractions are truncated and negative values are kept for the caller to
// clamp.
type Count int

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	var n Number
	if err := n.UnmarshalJSON(data); err != nil {
		return err
	}
	*c = Count(int(n))
	return nil
}

// Int returns the value as int.
func (c Count) Int() int { return int(c) }

// LookupQuery identifies the row to fetch. At least one of Name, LPN or
// UPCASIN must be set for item lookups.
type LookupQuery struct {
	Name    string
	LPN     string
	UPCASIN string
	OrderID string
	Action  string
}

// Empty reports whether the query carries no identifier.
func (q LookupQuery) Empty() bool {
	return strings.TrimSpace(q.Name) == "" && strings.TrimSpace(q.LPN) == "" &&
		strings.TrimSpace(q.UPCASIN) == "" && strings.TrimSpace(q.OrderID) == ""
}

// Record is a row returned by the lookup endpoint. Every field is optional.
type Record struct {
	ASIN           string `json:"asin"`
	SKU            string `json:"sku"`
	ProductName    string `json:"productName"`
	Name           string `json:"name"`
	Condition      string `json:"condition"`
	InventoryPrice Number `json:"inventoryPrice"`
	ListingPrice   Number `json:"listingPrice"`
	Location       string `json:"location"`
	LocationNotes  string `json:"locationNotes"`
	Marketplace    string `json:"marketplace"`
	OrderID        string `json:"orderId"`
	ReturnReason   string `json:"returnReason"`
	LPN            string `json:"lpn"`
	Date           string `json:"date"`
	Address        string `json:"address"`
	City           string `json:"city"`
	State          string `json:"state"`
	Quantity       Count  `json:"quantity"`
	Error          string `json:"error,omitempty"`
}

// InventoryRow is one row of the inventory sheet.
type InventoryRow struct {
	ASIN           string `json:"asin"`
	SKU            string `json:"sku"`
	ProductName    string `json:"productName"`
	Qty            Count  `json:"qty"`
	PendingQty     Count  `json:"pendingQty"`
	TotalQty       Count  `json:"totalQty"`
	Location       string `json:"location"`
	LocationNotes  string `json:"locationNotes"`
	Condition      string `json:"condition"`
	InventoryPrice Number `json:"inventoryPrice"`
	ListingPrice   Number `json:"listingPrice"`
	Dims           string `json:"dims"`
	Weight         Number `json:"weight"`
	LastReceived   string `json:"lastReceived"`
}

// InventoryUpdate adjusts the inventory sheet for one ASIN.
type InventoryUpdate struct {
	Action         string  `json:"action"`
	ASIN           string  `json:"asin"`
	SKU            string  `json:"sku"`
	ProductName    string  `json:"productName"`
	Quantity       int     `json:"quantity"`
	Condition      string  `json:"condition"`
	InventoryPrice float64 `json:"inventoryPrice"`
	ListingPrice   float64 `json:"listingPrice"`
	Location       string  `json:"location"`
	Dims           string  `json:"dims,omitempty"`
	Weight         float64 `json:"weight,omitempty"`
}

// Inventory update actions.
const (
	InventoryAdd      = "add"
	InventorySubtract = "subtract"
)

// Batch actions accepted by the batch endpoint.
const (
	ActionPopulateMFN     = "populateMFN"
	ActionPopulateLPN     = "populateLPN"
	ActionPopulateRemoval = "populateRemoval"
	ActionSearchOrders    = "searchOrders"
)

// BatchRequest submits a staged ledger in one call. Exactly one of the
// slices is populated, matching Action.
type BatchRequest struct {
	Action   string `json:"action"`
	Orders   any    `json:"orders,omitempty"`
	LPNs     any    `json:"lpns,omitempty"`
	Removals any    `json:"removals,omitempty"`
}

// Shipment is the carrier view of a shipped order.
type Shipment struct {
	OrderID        string  `json:"orderId"`
	OrderDate      string  `json:"orderDate"`
	ShipDate       string  `json:"shipDate"`
	Carrier        string  `json:"carrier"`
	Service        string  `json:"service"`
	TrackingNumber string  `json:"trackingNumber"`
	Location       string  `json:"location"`
	Marketplace    string  `json:"marketplace"`
	Address        string  `json:"address"`
	City           string  `json:"city"`
	State          string  `json:"state"`
	Zip            string  `json:"zip"`
	Weight         float64 `json:"weight"`
}

type statusResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type searchResponse struct {
	Orders []Record `json:"orders"`
	Error  string   `json:"error,omitempty"`
}

// NotAvailable is the placeholder the gateway and UI use for unknown values.
const NotAvailable = "N/A"
