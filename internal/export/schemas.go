package export

import (
	"fmt"
	"strconv"

	"github.com/odyssey-erp/returnsdesk/internal/pricing"
	"github.com/odyssey-erp/returnsdesk/internal/returns"
)

// Schema names accepted by the download endpoints.
const (
	SchemaReturns  = "returns"
	SchemaAmazon   = "amazon"
	SchemaEBay     = "ebay"
	SchemaOrders   = "orders"
	SchemaLPNs     = "lpns"
	SchemaRemovals = "removals"
)

// Artifact kinds used in file names.
const (
	KindReturns  = "returns_upload"
	KindAmazon   = "amazon_inventory_upload"
	KindEBay     = "ebay_upload"
	KindOrders   = "staged_orders"
	KindLPNs     = "staged_lpns"
	KindRemovals = "staged_removals"
	KindPending  = "pending_uploads"
)

var (
	returnsHeader = []string{"SKU", "ASIN", "Product Name", "Condition", "Quantity", "Order ID", "Marketplace", "Return Reason", "Date", "LPN", "Output", "Inventory Price", "Listing Price"}
	amazonHeader  = []string{"sku", "product-id", "product-id-type", "price", "item-condition", "quantity", "add-delete", "will-ship-internationally", "expedited-shipping", "item-note", "fulfillment-center-id"}
	ebayHeader    = []string{"SKU", "Product Name", "Condition", "Quantity", "Price", "Location", "Notes"}
	ordersHeader  = []string{"Order ID", "Name", "Marketplace", "Return Reason", "Quantity"}
	lpnsHeader    = []string{"Date", "LPN"}
	removalHeader = []string{"Date", "ASIN/UPC"}
)

// Returns renders the generic returns log.
func Returns(entries []returns.ReturnEntry) Table {
	t := Table{Kind: KindReturns, Header: returnsHeader}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			e.SKU,
			e.ASIN,
			e.ProductName,
			e.Condition,
			strconv.Itoa(e.Quantity),
			e.OrderID,
			e.Marketplace,
			e.ReturnReason,
			e.Date,
			e.LPN,
			string(e.Output),
			formatPrice(e.InventoryPrice),
			formatPrice(e.ListingPrice),
		})
	}
	return t
}

// Amazon renders the Amazon inventory flat file. Callers filter first.
func Amazon(entries []returns.ReturnEntry) Table {
	t := Table{Kind: KindAmazon, Header: amazonHeader}
	for _, e := range entries {
		fulfillment := ""
		if e.Output == returns.OutputFBA {
			fulfillment = "DEFAULT"
		}
		t.Rows = append(t.Rows, []string{
			e.SKU,
			e.ASIN,
			"ASIN",
			formatPrice(e.ListingPrice),
			pricing.AmazonConditionCode(e.Condition),
			strconv.Itoa(e.Quantity),
			"a",
			"n",
			"n",
			"",
			fulfillment,
		})
	}
	return t
}

// EBay renders the eBay listing feed. Callers filter first.
func EBay(listings []returns.PendingUpload) Table {
	t := Table{Kind: KindEBay, Header: ebayHeader}
	for _, l := range listings {
		t.Rows = append(t.Rows, []string{
			l.SKU,
			l.ProductName,
			l.Condition,
			strconv.Itoa(l.Quantity),
			formatPrice(l.ListingPrice),
			l.Location,
			l.LocationNotes,
		})
	}
	return t
}

// Orders renders the staged orders ledger.
func Orders(orders []returns.OrderRecord) Table {
	t := Table{Kind: KindOrders, Header: ordersHeader}
	for _, o := range orders {
		t.Rows = append(t.Rows, []string{o.OrderID, o.Name, o.Marketplace, o.ReturnReason, strconv.Itoa(o.Quantity)})
	}
	return t
}

// LPNs renders the staged LPN ledger.
func LPNs(lpns []returns.StagedLPN) Table {
	t := Table{Kind: KindLPNs, Header: lpnsHeader}
	for _, l := range lpns {
		t.Rows = append(t.Rows, []string{l.Date, l.LPN})
	}
	return t
}

// Removals renders the staged removals ledger.
func Removals(removals []returns.StagedRemoval) Table {
	t := Table{Kind: KindRemovals, Header: removalHeader}
	for _, r := range removals {
		t.Rows = append(t.Rows, []string{r.Date, r.ASINUPC})
	}
	return t
}

// ForReturns builds the table for schema from the returns preview, applying
// the schema's destination filter.
func ForReturns(schema string, entries []returns.ReturnEntry) (Table, error) {
	switch schema {
	case SchemaReturns:
		return Returns(entries), nil
	case SchemaAmazon:
		return Amazon(FilterAmazon(entries)), nil
	case SchemaEBay:
		return EBay(AsListings(FilterOutput(entries, returns.OutputEBay))), nil
	default:
		return Table{}, fmt.Errorf("export: schema %q does not apply to returns", schema)
	}
}

// ForPending builds the table for schema from the pending uploads, keeping
// only rows for marketplace when it is set.
func ForPending(schema, marketplace string, uploads []returns.PendingUpload) (Table, error) {
	if marketplace != "" {
		uploads = FilterMarketplace(uploads, marketplace)
	}
	var t Table
	switch schema {
	case SchemaReturns:
		t = Returns(entriesOf(uploads))
		t.Kind = KindPending
	case SchemaAmazon:
		t = Amazon(entriesOf(uploads))
	case SchemaEBay:
		t = EBay(uploads)
	default:
		return Table{}, fmt.Errorf("export: schema %q does not apply to pending uploads", schema)
	}
	if marketplace != "" {
		t.Kind += "_" + slug(marketplace)
	}
	return t, nil
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
