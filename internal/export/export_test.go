package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/returnsdesk/internal/returns"
)

func sampleEntries() []returns.ReturnEntry {
	return []returns.ReturnEntry{
		{
			ID: "r1", SKU: "B0726307618-UGD", ASIN: "B0726307618", ProductName: "Pool Item #21",
			Condition: "UsedGood", Quantity: 2, OrderID: "114-1", Marketplace: "Amazon",
			ReturnReason: "Defective", Date: "3/4/2025", LPN: "LPN1", Output: returns.OutputMFN,
			InventoryPrice: 19.51, ListingPrice: 13.66,
		},
		{
			ID: "r2", SKU: "B000000002-NEW", ASIN: "B000000002", ProductName: `Lamp 12" "Deluxe"`,
			Condition: "New", Quantity: 1, Output: returns.OutputFBA, InventoryPrice: 25, ListingPrice: 25,
		},
		{
			ID: "r3", SKU: "B000000003-ULN", ASIN: "B000000003", ProductName: "Chair",
			Condition: "UsedLikeNew", Quantity: 1, Output: returns.OutputEBay, InventoryPrice: 10, ListingPrice: 8,
		},
		{
			ID: "r4", SKU: "B000000004-UAC", ASIN: "B000000004", Condition: "UsedAcceptable",
			Quantity: 1, Output: returns.OutputThrow,
		},
	}
}

func TestReturnsCSVQuotesDataCells(t *testing.T) {
	out, err := Render(Returns(sampleEntries()[:1]), FormatCSV)
	require.NoError(t, err)
	require.Equal(t,
		"SKU,ASIN,Product Name,Condition,Quantity,Order ID,Marketplace,Return Reason,Date,LPN,Output,Inventory Price,Listing Price\n"+
			`"B0726307618-UGD","B0726307618","Pool Item #21","UsedGood","2","114-1","Amazon","Defective","3/4/2025","LPN1","mfn","19.51","13.66"`+"\n",
		out)
}

func TestCSVEscapesEmbeddedQuotes(t *testing.T) {
	out, err := Render(Returns(sampleEntries()[1:2]), FormatCSV)
	require.NoError(t, err)
	require.Contains(t, out, `"Lamp 12"" ""Deluxe"""`)
	require.Contains(t, out, `"25.00","25.00"`)
}

func TestTXTIsTabSeparatedWithoutQuotes(t *testing.T) {
	out, err := Render(LPNs([]returns.StagedLPN{{ID: "1", Date: "3/4/2025", LPN: "LPN9"}}), FormatTXT)
	require.NoError(t, err)
	require.Equal(t, "Date\tLPN\n3/4/2025\tLPN9\n", out)
}

func TestAmazonFeed(t *testing.T) {
	table, err := ForReturns(SchemaAmazon, sampleEntries())
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	require.Equal(t, KindAmazon, table.Kind)

	require.Equal(t, []string{"B0726307618-UGD", "B0726307618", "ASIN", "13.66", "3", "2", "a", "n", "n", "", ""}, table.Rows[0])
	require.Equal(t, "11", table.Rows[1][4])
	require.Equal(t, "DEFAULT", table.Rows[1][10])
}

func TestEBayFeedFiltersOutput(t *testing.T) {
	table, err := ForReturns(SchemaEBay, sampleEntries())
	require.NoError(t, err)
	require.Equal(t, [][]string{{"B000000003-ULN", "Chair", "UsedLikeNew", "1", "8.00", "", ""}}, table.Rows)
}

func TestAmazonFeedRendersFlatFile(t *testing.T) {
	table, err := ForReturns(SchemaAmazon, sampleEntries()[:1])
	require.NoError(t, err)

	csv, err := Render(table, FormatCSV)
	require.NoError(t, err)
	require.Equal(t,
		"sku,product-id,product-id-type,price,item-condition,quantity,add-delete,will-ship-internationally,expedited-shipping,item-note,fulfillment-center-id\n"+
			`"B0726307618-UGD","B0726307618","ASIN","13.66","3","2","a","n","n","",""`+"\n",
		csv)

	txt, err := Render(table, FormatTXT)
	require.NoError(t, err)
	require.Equal(t,
		"sku\tproduct-id\tproduct-id-type\tprice\titem-condition\tquantity\tadd-delete\twill-ship-internationally\texpedited-shipping\titem-note\tfulfillment-center-id\n"+
			"B0726307618-UGD\tB0726307618\tASIN\t13.66\t3\t2\ta\tn\tn\t\t\n",
		txt)
}

func TestEBayFeedRendersListing(t *testing.T) {
	entry := sampleEntries()[0]
	entry.Output = returns.OutputEBay
	table, err := ForPending(SchemaEBay, "", []returns.PendingUpload{{ReturnEntry: entry, Location: "C3", LocationNotes: "top shelf"}})
	require.NoError(t, err)

	csv, err := Render(table, FormatCSV)
	require.NoError(t, err)
	require.Equal(t,
		"SKU,Product Name,Condition,Quantity,Price,Location,Notes\n"+
			`"B0726307618-UGD","Pool Item #21","UsedGood","2","13.66","C3","top shelf"`+"\n",
		csv)

	txt, err := Render(table, FormatTXT)
	require.NoError(t, err)
	require.Equal(t,
		"SKU\tProduct Name\tCondition\tQuantity\tPrice\tLocation\tNotes\n"+
			"B0726307618-UGD\tPool Item #21\tUsedGood\t2\t13.66\tC3\ttop shelf\n",
		txt)
}

func TestForReturnsRejectsLedgerSchema(t *testing.T) {
	_, err := ForReturns(SchemaOrders, sampleEntries())
	require.Error(t, err)
}

func TestPendingMarketplaceFilter(t *testing.T) {
	uploads := []returns.PendingUpload{
		{ReturnEntry: returns.ReturnEntry{SKU: "A-NEW", Marketplace: "Amazon", Quantity: 1, Output: returns.OutputMFN}, Location: "C3"},
		{ReturnEntry: returns.ReturnEntry{SKU: "B-NEW", Marketplace: "Walmart", Quantity: 1, Output: returns.OutputEBay}, Location: "D1", LocationNotes: "top"},
	}
	table, err := ForPending(SchemaEBay, "Walmart", uploads)
	require.NoError(t, err)
	require.Equal(t, "ebay_upload_walmart", table.Kind)
	require.Equal(t, [][]string{{"B-NEW", "", "", "1", "0.00", "D1", "top"}}, table.Rows)

	all, err := ForPending(SchemaReturns, "", uploads)
	require.NoError(t, err)
	require.Equal(t, KindPending, all.Kind)
	require.Len(t, all.Rows, 2)
}

func TestLedgerTables(t *testing.T) {
	orders := Orders([]returns.OrderRecord{{OrderID: "114-1", Name: "Jo", Marketplace: "Amazon", ReturnReason: "Late", Quantity: 3}})
	require.Equal(t, []string{"Order ID", "Name", "Marketplace", "Return Reason", "Quantity"}, orders.Header)
	require.Equal(t, [][]string{{"114-1", "Jo", "Amazon", "Late", "3"}}, orders.Rows)

	removals := Removals([]returns.StagedRemoval{{ID: "x", Date: "1/2/2025", ASINUPC: "0123"}})
	require.Equal(t, []string{"Date", "ASIN/UPC"}, removals.Header)
	require.Equal(t, [][]string{{"1/2/2025", "0123"}}, removals.Rows)
}

func TestEmptyTableWritesHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Orders(nil), FormatCSV))
	require.Equal(t, "Order ID,Name,Marketplace,Return Reason,Quantity\n", buf.String())
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 4, 23, 30, 0, 0, time.FixedZone("X", -5*3600))
	require.Equal(t, "returns_upload_2025-03-05.csv", Filename(KindReturns, FormatCSV, now))
	require.Equal(t, "staged_lpns_2025-03-05.txt", Filename(KindLPNs, FormatTXT, now))
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("TXT")
	require.NoError(t, err)
	require.Equal(t, FormatTXT, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatCSV, f)
	_, err = ParseFormat("xlsx")
	require.Error(t, err)
}
