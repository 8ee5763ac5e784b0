// Package sheets is the client for the spreadsheet-backed gateway that holds
// returns, orders and inventory.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// CallObserver receives one observation per gateway call.
type CallObserver interface {
	ObserveGatewayCall(operation string, status int, elapsed time.Duration)
}

// Client talks to the gateway endpoints. It never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	observer   CallObserver
}

// NewClient constructs a new client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// WithObserver attaches a call observer.
func (c *Client) WithObserver(observer CallObserver) *Client {
	c.observer = observer
	return c
}

// LookupRaw returns the lookup body exactly as the gateway produced it.
func (c *Client) LookupRaw(ctx context.Context, q LookupQuery) (json.RawMessage, error) {
	params := url.Values{}
	setParam(params, "name", q.Name)
	setParam(params, "lpn", q.LPN)
	setParam(params, "upcasin", q.UPCASIN)
	setParam(params, "orderId", q.OrderID)
	setParam(params, "action", q.Action)
	return c.get(ctx, "lookup", "/lookup", params)
}

// Lookup fetches one record. An error field in the body is returned as an
// UpstreamError.
func (c *Client) Lookup(ctx context.Context, q LookupQuery) (Record, error) {
	raw, err := c.LookupRaw(ctx, q)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Record{}, fmt.Errorf("sheets: decode lookup: %w", err)
	}
	if rec.Error != "" {
		return Record{}, &UpstreamError{Status: http.StatusOK, Message: rec.Error}
	}
	return rec, nil
}

// SearchOrders returns the orders recorded under a customer name.
func (c *Client) SearchOrders(ctx context.Context, name string) ([]Record, error) {
	params := url.Values{}
	setParam(params, "name", name)
	params.Set("action", ActionSearchOrders)
	raw, err := c.get(ctx, "search_orders", "/lookup", params)
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("sheets: decode search: %w", err)
	}
	if resp.Error != "" {
		return nil, &UpstreamError{Status: http.StatusOK, Message: resp.Error}
	}
	return resp.Orders, nil
}

// Batch submits a whole ledger in one call.
func (c *Client) Batch(ctx context.Context, req BatchRequest) error {
	raw, err := c.post(ctx, "batch_"+req.Action, "/batch", req)
	if err != nil {
		return err
	}
	return decodeStatus(raw)
}

// Inventory returns the inventory sheet.
func (c *Client) Inventory(ctx context.Context) ([]InventoryRow, error) {
	raw, err := c.get(ctx, "inventory", "/inventory", nil)
	if err != nil {
		return nil, err
	}
	var rows []InventoryRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		var status statusResponse
		if json.Unmarshal(raw, &status) == nil && status.Error != "" {
			return nil, &UpstreamError{Status: http.StatusOK, Message: status.Error}
		}
		return nil, fmt.Errorf("sheets: decode inventory: %w", err)
	}
	return rows, nil
}

// InventoryRaw returns the inventory body exactly as the gateway produced it.
func (c *Client) InventoryRaw(ctx context.Context) (json.RawMessage, error) {
	return c.get(ctx, "inventory", "/inventory", nil)
}

// UpdateInventory applies one inventory adjustment and returns the raw
// acknowledgement.
func (c *Client) UpdateInventory(ctx context.Context, update InventoryUpdate) (json.RawMessage, error) {
	raw, err := c.post(ctx, "inventory_update", "/inventory/update", update)
	if err != nil {
		return nil, err
	}
	if err := decodeStatus(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// ShipmentLocation looks up the shipment record for an order.
func (c *Client) ShipmentLocation(ctx context.Context, orderID string) (Shipment, error) {
	params := url.Values{}
	params.Set("orderId", orderID)
	raw, err := c.get(ctx, "shipment_location", "/shipment-location", params)
	if err != nil {
		return Shipment{}, err
	}
	var shipment Shipment
	if err := json.Unmarshal(raw, &shipment); err != nil {
		return Shipment{}, fmt.Errorf("sheets: decode shipment: %w", err)
	}
	return shipment, nil
}

func (c *Client) get(ctx context.Context, op, path string, params url.Values) (json.RawMessage, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(op, req)
}

func (c *Client) post(ctx context.Context, op, path string, body any) (json.RawMessage, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req)
}

func (c *Client) do(op string, req *http.Request) (json.RawMessage, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(op, 0, start)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	c.observe(op, resp.StatusCode, start)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := &UpstreamError{Status: resp.StatusCode}
		var status statusResponse
		if json.Unmarshal(body, &status) == nil {
			upstream.Message = status.Error
		}
		return nil, upstream
	}
	return json.RawMessage(body), nil
}

func (c *Client) observe(op string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveGatewayCall(op, status, time.Since(start))
	}
}

func decodeStatus(raw json.RawMessage) error {
	var status statusResponse
	if err := json.Unmarshal(raw, &status); err != nil {
		return fmt.Errorf("sheets: decode status: %w", err)
	}
	if status.Error != "" {
		return &UpstreamError{Status: http.StatusOK, Message: status.Error}
	}
	return nil
}

func setParam(params url.Values, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		params.Set(key, value)
	}
}

// StatusCode reports the HTTP status to relay for err.
func StatusCode(err error) int {
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.Status >= 400 {
		return upstream.Status
	}
	return http.StatusInternalServerError
}

// FormatStatus renders the relay message for a non-2xx gateway status.
func FormatStatus(status int) string {
	return "gateway returned status " + strconv.Itoa(status)
}
