package returnshttp

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/platform/httpx"
	"github.com/odyssey-erp/returnsdesk/internal/returns"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
)

// APIHandler exposes the desk as JSON for scripted clients. It shares the
// session-scoped desk with the HTML pages.
type APIHandler struct {
	logger    *slog.Logger
	service   *returns.Service
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewAPIHandler builds an APIHandler.
func NewAPIHandler(logger *slog.Logger, service *returns.Service, csrf *shared.CSRFManager) *APIHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &APIHandler{logger: logger, service: service, csrf: csrf, validator: validator.New()}
}

// MountRoutes registers JSON routes.
func (h *APIHandler) MountRoutes(r chi.Router) {
	r.Get("/state", h.state)
	r.Post("/entries", h.addReturn)
	r.Delete("/entries", h.clearReturns)
	r.Delete("/entries/{id}", h.removeReturn)
	r.Post("/entries/{id}/queue", h.queueReturn)
	r.Post("/search", h.search)
	r.Post("/ledgers/{kind}", h.stage)
	r.Delete("/ledgers/{kind}/{key}", h.unstage)
	r.Post("/ledgers/{kind}/drain", h.drain)
	r.Post("/ledgers/{kind}/promote", h.promote)
	r.Patch("/ledgers/orders/{orderID}/quantity", h.updateOrderQuantity)
	r.Post("/pending/finalize", h.finalize)
	r.Delete("/pending", h.clearPending)
	r.Delete("/pending/{id}", h.removePending)
	r.Patch("/pending/{id}/location", h.updatePendingLocation)
	r.Post("/inventory/refresh", h.refreshInventory)
}

func (h *APIHandler) session(w http.ResponseWriter, r *http.Request) (*shared.Session, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session required")
		return nil, false
	}
	return sess, true
}

func (h *APIHandler) state(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if token, err := h.csrf.EnsureToken(r.Context(), sess); err == nil {
		w.Header().Set(shared.CSRFHeader, token)
	}
	st, err := h.service.View(r.Context(), sess.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *APIHandler) addReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var in returns.IntakeInput
	if !h.decode(w, r, &in) {
		return
	}
	entry, err := h.service.AddReturn(r.Context(), sess.ID, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *APIHandler) removeReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.RemoveReturn(r.Context(), sess.ID, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) clearReturns(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.ClearReturns(r.Context(), sess.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type locationRequest struct {
	Location string `json:"location" validate:"max=64"`
	Notes    string `json:"notes" validate:"max=256"`
}

func (h *APIHandler) queueReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if !h.decode(w, r, &req) {
		return
	}
	upload, err := h.service.QueueReturn(r.Context(), sess.ID, chi.URLParam(r, "id"), req.Location, req.Notes)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, upload)
}

type searchRequest struct {
	Names []string `json:"names" validate:"required,min=1,max=25"`
}

func (h *APIHandler) search(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if !h.decode(w, r, &req) {
		return
	}
	results, err := h.service.SearchOrders(r.Context(), sess.ID, req.Names)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"orders": results})
}

type stageRequest struct {
	Value string              `json:"value"`
	Order returns.OrderRecord `json:"order"`
}

func (h *APIHandler) stage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	var req stageRequest
	if !h.decode(w, r, &req) {
		return
	}
	var body any
	switch kind {
	case returns.LedgerOrders:
		var added bool
		added, err = h.service.StageOrder(r.Context(), sess.ID, req.Order)
		body = map[string]bool{"added": added}
	case returns.LedgerLPNs:
		body, err = h.service.StageLPN(r.Context(), sess.ID, req.Value)
	case returns.LedgerRemovals:
		body, err = h.service.StageRemoval(r.Context(), sess.ID, req.Value)
	}
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, body)
}

func (h *APIHandler) unstage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	if err := h.service.Unstage(r.Context(), sess.ID, kind, chi.URLParam(r, "key")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) drain(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	n, err := h.service.Drain(r.Context(), sess.ID, kind)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"success": true, "count": n})
}

func (h *APIHandler) promote(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
		return
	}
	var in returns.PromoteInput
	if !h.decode(w, r, &in) {
		return
	}
	n, err := h.service.Promote(r.Context(), sess.ID, kind, in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"count": n})
}

type quantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

func (h *APIHandler) updateOrderQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req quantityRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.UpdateOrderQuantity(r.Context(), sess.ID, chi.URLParam(r, "orderID"), *req.Quantity); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) finalize(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	finalized, err := h.service.FinalizeUpload(r.Context(), sess.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"finalized": finalized})
}

func (h *APIHandler) removePending(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.RemovePendingUpload(r.Context(), sess.ID, chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) updatePendingLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req locationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.UpdatePendingLocation(r.Context(), sess.ID, chi.URLParam(r, "id"), req.Location, req.Notes); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) clearPending(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := h.service.ClearPending(r.Context(), sess.ID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) refreshInventory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	items, err := h.service.LoadInventory(r.Context(), sess.ID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *APIHandler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

var deskErrorRules = []httpx.ErrorRule{
	{Target: returns.ErrNoIdentifier, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Target: returns.ErrEntryNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Target: returns.ErrDuplicateSubmit, Status: http.StatusConflict, Title: "Duplicate"},
	{Target: returns.ErrEmptyBatch, Status: http.StatusUnprocessableEntity, Title: "Empty Batch"},
	{Target: sheets.ErrUnavailable, Status: http.StatusBadGateway, Title: "Gateway Unavailable", Detail: "failed to connect to gateway"},
}

func (h *APIHandler) respondError(w http.ResponseWriter, err error) {
	var upstream *sheets.UpstreamError
	if errors.As(err, &upstream) {
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", upstream.Error())
		return
	}
	if errors.Is(err, sheets.ErrUnavailable) {
		h.logger.Warn("gateway unavailable", slog.Any("error", err))
	} else if !matchesRule(err) {
		h.logger.Error("desk api", slog.Any("error", err))
	}
	httpx.RespondError(w, err, deskErrorRules...)
}

func matchesRule(err error) bool {
	for _, rule := range deskErrorRules {
		if errors.Is(err, rule.Target) {
			return true
		}
	}
	return false
}
