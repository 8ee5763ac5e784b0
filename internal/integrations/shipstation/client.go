// Package shipstation resolves shipment details for an order from the
// carrier API, falling back to the gateway's shipment sheet when no API
// credentials are configured.
package shipstation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
)

// ErrNotFound is returned when neither source knows the order.
var ErrNotFound = errors.New("shipstation: shipment not found")

// Fallback supplies shipments when the carrier API is not configured.
type Fallback interface {
	ShipmentLocation(ctx context.Context, orderID string) (sheets.Shipment, error)
}

// Config holds carrier API settings.
type Config struct {
	BaseURL   string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// Client fetches shipments.
type Client struct {
	cfg        Config
	httpClient *http.Client
	fallback   Fallback
}

// NewClient constructs a Client.
func NewClient(cfg Config, fallback Fallback) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}, fallback: fallback}
}

// Configured reports whether carrier API credentials are present.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" && c.cfg.APISecret != ""
}

type apiOrder struct {
	OrderNumber     string `json:"orderNumber"`
	OrderDate       string `json:"orderDate"`
	ShipDate        string `json:"shipDate"`
	CarrierCode     string `json:"carrierCode"`
	ServiceCode     string `json:"serviceCode"`
	TrackingNumber  string `json:"trackingNumber"`
	AdvancedOptions *struct {
		WarehouseID json.Number `json:"warehouseId"`
		Source      string      `json:"source"`
	} `json:"advancedOptions"`
	ShipTo *struct {
		Street1    string `json:"street1"`
		City       string `json:"city"`
		State      string `json:"state"`
		PostalCode string `json:"postalCode"`
	} `json:"shipTo"`
	Weight *struct {
		Value float64 `json:"value"`
	} `json:"weight"`
}

type apiOrderList struct {
	Orders []apiOrder `json:"orders"`
}

// Shipment returns the shipment for orderID.
func (c *Client) Shipment(ctx context.Context, orderID string) (sheets.Shipment, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return sheets.Shipment{}, errors.New("shipstation: order id required")
	}
	if !c.Configured() {
		if c.fallback == nil {
			return sheets.Shipment{}, ErrNotFound
		}
		shipment, err := c.fallback.ShipmentLocation(ctx, orderID)
		if errors.Is(err, sheets.ErrNotFound) {
			return sheets.Shipment{}, ErrNotFound
		}
		return shipment, err
	}
	return c.fetch(ctx, orderID)
}

func (c *Client) fetch(ctx context.Context, orderID string) (sheets.Shipment, error) {
	target := fmt.Sprintf("%s/orders?orderNumber=%s", c.cfg.BaseURL, url.QueryEscape(orderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return sheets.Shipment{}, err
	}
	req.SetBasicAuth(c.cfg.APIKey, c.cfg.APISecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return sheets.Shipment{}, fmt.Errorf("shipstation: request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 400 {
		return sheets.Shipment{}, fmt.Errorf("shipstation: api error: %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return sheets.Shipment{}, fmt.Errorf("shipstation: read body: %w", err)
	}

	var list apiOrderList
	if err := json.Unmarshal(body, &list); err == nil && list.Orders != nil {
		if len(list.Orders) == 0 {
			return sheets.Shipment{}, ErrNotFound
		}
		return transform(list.Orders[0]), nil
	}
	var order apiOrder
	if err := json.Unmarshal(body, &order); err != nil {
		return sheets.Shipment{}, fmt.Errorf("shipstation: decode: %w", err)
	}
	return transform(order), nil
}

func transform(o apiOrder) sheets.Shipment {
	s := sheets.Shipment{
		OrderID:        o.OrderNumber,
		OrderDate:      o.OrderDate,
		ShipDate:       o.ShipDate,
		Carrier:        o.CarrierCode,
		Service:        o.ServiceCode,
		TrackingNumber: o.TrackingNumber,
		Location:       sheets.NotAvailable,
		Marketplace:    sheets.NotAvailable,
		Address:        sheets.NotAvailable,
		City:           sheets.NotAvailable,
		State:          sheets.NotAvailable,
		Zip:            sheets.NotAvailable,
	}
	if o.AdvancedOptions != nil {
		s.Location = orNA(o.AdvancedOptions.WarehouseID.String())
		s.Marketplace = orNA(o.AdvancedOptions.Source)
	}
	if o.ShipTo != nil {
		s.Address = orNA(o.ShipTo.Street1)
		s.City = orNA(o.ShipTo.City)
		s.State = orNA(o.ShipTo.State)
		s.Zip = orNA(o.ShipTo.PostalCode)
	}
	if o.Weight != nil {
		s.Weight = o.Weight.Value
	}
	return s
}

func orNA(v string) string {
	if strings.TrimSpace(v) == "" {
		return sheets.NotAvailable
	}
	return v
}
