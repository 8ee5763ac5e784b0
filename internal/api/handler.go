// Package api exposes the gateway pass-through endpoints used by the
// browser and by carrier webhooks.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/shipstation"
	"github.com/odyssey-erp/returnsdesk/internal/platform/httpx"
)

// Gateway is the subset of the sheets client relayed by this package.
type Gateway interface {
	LookupRaw(ctx context.Context, q sheets.LookupQuery) (json.RawMessage, error)
	InventoryRaw(ctx context.Context) (json.RawMessage, error)
	UpdateInventory(ctx context.Context, update sheets.InventoryUpdate) (json.RawMessage, error)
}

// ShipmentSource resolves the shipment for an order.
type ShipmentSource interface {
	Shipment(ctx context.Context, orderID string) (sheets.Shipment, error)
}

// Handler relays requests to the gateway and the carrier.
type Handler struct {
	logger    *slog.Logger
	gateway   Gateway
	shipments ShipmentSource
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, gateway Gateway, shipments ShipmentSource) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, gateway: gateway, shipments: shipments, validator: validator.New()}
}

// MountRoutes registers the pass-through routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sheets", h.lookup)
	r.Get("/shipstation", h.shipment)
	r.Post("/shipstation", h.webhook)
	r.Get("/inventory", h.inventory)
	r.Post("/inventory/update", h.updateInventory)
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) {
	q := sheets.LookupQuery{
		Name:    r.URL.Query().Get("name"),
		LPN:     r.URL.Query().Get("lpn"),
		UPCASIN: r.URL.Query().Get("upcasin"),
		OrderID: r.URL.Query().Get("orderId"),
		Action:  r.URL.Query().Get("action"),
	}
	if q.Empty() {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Error: "Please provide name, lpn, or upcasin"})
		return
	}
	raw, err := h.gateway.LookupRaw(r.Context(), q)
	if err != nil {
		h.relayError(w, "lookup", err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (h *Handler) inventory(w http.ResponseWriter, r *http.Request) {
	raw, err := h.gateway.InventoryRaw(r.Context())
	if err != nil {
		h.relayError(w, "inventory", err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

type inventoryUpdateRequest struct {
	Action         string  `json:"action" validate:"required,oneof=add subtract"`
	ASIN           string  `json:"asin" validate:"required"`
	SKU            string  `json:"sku"`
	ProductName    string  `json:"productName"`
	Quantity       int     `json:"quantity" validate:"min=1"`
	Condition      string  `json:"condition"`
	InventoryPrice float64 `json:"inventoryPrice"`
	ListingPrice   float64 `json:"listingPrice"`
	Location       string  `json:"location"`
	Dims           string  `json:"dims"`
	Weight         float64 `json:"weight"`
}

func (h *Handler) updateInventory(w http.ResponseWriter, r *http.Request) {
	var req inventoryUpdateRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Error: "Invalid JSON body"})
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Error: "Invalid inventory update: " + err.Error()})
		return
	}
	raw, err := h.gateway.UpdateInventory(r.Context(), sheets.InventoryUpdate(req))
	if err != nil {
		h.relayError(w, "inventory_update", err)
		return
	}
	writeRaw(w, http.StatusOK, raw)
}

func (h *Handler) shipment(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(r.URL.Query().Get("orderId"))
	if orderID == "" {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Error: "Order ID is required"})
		return
	}
	shipment, err := h.shipments.Shipment(r.Context(), orderID)
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, shipment)
	case errors.Is(err, shipstation.ErrNotFound):
		httpx.JSON(w, http.StatusNotFound, errorBody{Error: "Shipment record not found"})
	default:
		h.logger.Error("fetch shipment", slog.String("order_id", orderID), slog.Any("error", err))
		httpx.JSON(w, http.StatusInternalServerError, errorBody{Error: "Failed to fetch shipment data"})
	}
}

type webhookEvent struct {
	ResourceURL  string `json:"resource_url"`
	ResourceType string `json:"resource_type"`
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	var event webhookEvent
	if err := httpx.DecodeJSON(w, r, &event); err != nil {
		httpx.JSON(w, http.StatusBadRequest, errorBody{Error: "Invalid webhook payload"})
		return
	}
	h.logger.Info("shipstation webhook", slog.String("resource_type", event.ResourceType), slog.String("resource_url", event.ResourceURL))
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// relayError mirrors a gateway failure: non-2xx statuses are passed through
// with a generic message, an error field in a 2xx body becomes a 502 and
// anything else is a 500.
func (h *Handler) relayError(w http.ResponseWriter, op string, err error) {
	var upstream *sheets.UpstreamError
	if errors.As(err, &upstream) {
		if upstream.Status >= 300 {
			httpx.JSON(w, upstream.Status, errorBody{Error: sheets.FormatStatus(upstream.Status)})
			return
		}
		httpx.JSON(w, http.StatusBadGateway, errorBody{Error: upstream.Error()})
		return
	}
	h.logger.Error("gateway relay", slog.String("op", op), slog.Any("error", err))
	httpx.JSON(w, http.StatusInternalServerError, errorBody{Error: "failed to connect to gateway"})
}

func writeRaw(w http.ResponseWriter, status int, raw json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}
