// Package returnshttp serves the returns desk over HTTP: the operator pages
// with their form actions and exports, and a JSON API for scripted clients.
package returnshttp

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/returnsdesk/internal/export"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/returns"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
	"github.com/odyssey-erp/returnsdesk/internal/view"
)

const basePath = "/returns"

// Handler serves the operator desk pages and form actions.
type Handler struct {
	logger    *slog.Logger
	service   *returns.Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
	now       func() time.Time
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *returns.Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
		now:       time.Now,
	}
}

// MountRoutes registers desk routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showDesk)

	r.Post("/intake", h.addReturn)
	r.Post("/entries/clear", h.clearReturns)
	r.Post("/entries/{id}/delete", h.removeReturn)
	r.Post("/entries/{id}/queue", h.queueReturn)

	r.Post("/search", h.searchOrders)
	r.Post("/search/{orderID}/stage", h.stageSearchResult)

	r.Post("/ledgers/{kind}/stage", h.stage)
	r.Post("/ledgers/{kind}/drain", h.drain)
	r.Post("/ledgers/{kind}/promote", h.promote)
	r.Post("/ledgers/{kind}/{key}/unstage", h.unstage)
	r.Post("/ledgers/orders/{orderID}/quantity", h.updateOrderQuantity)

	r.Post("/pending/finalize", h.finalize)
	r.Post("/pending/clear", h.clearPending)
	r.Post("/pending/{id}/delete", h.removePending)
	r.Post("/pending/{id}/location", h.updateLocation)

	r.Post("/inventory/refresh", h.refreshInventory)
	r.Post("/reset", h.reset)

	r.Get("/export/entries/{schema}", h.exportReturns)
	r.Get("/export/pending/{schema}", h.exportPending)
	r.Get("/export/ledgers/{kind}", h.exportLedger)
}

type deskPage struct {
	State        *returns.State
	MFN          []returns.ReturnEntry
	EBay         []returns.ReturnEntry
	Disposals    []returns.ReturnEntry
	Marketplaces []string
	Form         returns.IntakeInput
	Errors       map[string]string
}

func (h *Handler) showDesk(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	st, err := h.service.View(r.Context(), sess.ID)
	if err != nil {
		h.logger.Error("load desk", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/desk.html", newDeskPage(st, returns.IntakeInput{Quantity: 1, Condition: "new", Output: returns.OutputMFN}, nil), http.StatusOK)
}

func newDeskPage(st *returns.State, form returns.IntakeInput, errs map[string]string) deskPage {
	page := deskPage{State: st, Form: form, Errors: errs}
	seen := make(map[string]bool)
	for _, e := range st.Returns {
		switch {
		case e.Output.Amazon():
			page.MFN = append(page.MFN, e)
		case e.Output == returns.OutputEBay:
			page.EBay = append(page.EBay, e)
		default:
			page.Disposals = append(page.Disposals, e)
		}
	}
	for _, p := range st.Pending {
		if p.Marketplace != "" && !seen[p.Marketplace] {
			seen[p.Marketplace] = true
			page.Marketplaces = append(page.Marketplaces, p.Marketplace)
		}
	}
	return page
}

func (h *Handler) addReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	qty, _ := strconv.Atoi(r.PostFormValue("quantity"))
	form := returns.IntakeInput{
		Name:      r.PostFormValue("name"),
		LPN:       r.PostFormValue("lpn"),
		UPCASIN:   r.PostFormValue("upc_asin"),
		Quantity:  qty,
		Condition: r.PostFormValue("condition"),
		Output:    returns.Output(r.PostFormValue("output")),
	}
	errs := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				errs[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}
	if len(errs) == 0 {
		entry, err := h.service.AddReturn(r.Context(), sess.ID, form)
		if err == nil {
			h.redirectWithFlash(w, r, basePath, "success", "Added "+entry.SKU)
			return
		}
		errs["general"] = h.operatorMessage(err)
	}
	st, err := h.service.View(r.Context(), sess.ID)
	if err != nil {
		h.logger.Error("load desk", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/desk.html", newDeskPage(st, form, errs), http.StatusBadRequest)
}

func (h *Handler) clearReturns(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.service.ClearReturns(r.Context(), sess.ID), "Returns cleared")
}

func (h *Handler) removeReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.service.RemoveReturn(r.Context(), sess.ID, chi.URLParam(r, "id")), "Entry removed")
}

func (h *Handler) queueReturn(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	_, err := h.service.QueueReturn(r.Context(), sess.ID, chi.URLParam(r, "id"), r.PostFormValue("location"), r.PostFormValue("location_notes"))
	h.finish(w, r, err, "Entry added to pending uploads")
}

func (h *Handler) searchOrders(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	names := splitNames(r.PostFormValue("names"))
	results, err := h.service.SearchOrders(r.Context(), sess.ID, names)
	h.finish(w, r, err, strconv.Itoa(len(results))+" orders found")
}

func splitNames(raw string) []string {
	return strings.FieldsFunc(raw, func(r rune) bool { return r == '\n' || r == ',' || r == ';' })
}

func (h *Handler) stageSearchResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	added, err := h.service.StageSearchResult(r.Context(), sess.ID, chi.URLParam(r, "orderID"))
	msg := "Order staged"
	if err == nil && !added {
		msg = "Order already staged"
	}
	h.finish(w, r, err, msg)
}

func (h *Handler) stage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	value := r.PostFormValue("value")
	switch kind {
	case returns.LedgerLPNs:
		_, err = h.service.StageLPN(r.Context(), sess.ID, value)
	case returns.LedgerRemovals:
		_, err = h.service.StageRemoval(r.Context(), sess.ID, value)
	case returns.LedgerOrders:
		qty, _ := strconv.Atoi(r.PostFormValue("quantity"))
		_, err = h.service.StageOrder(r.Context(), sess.ID, returns.OrderRecord{
			OrderID:      value,
			Name:         r.PostFormValue("name"),
			Marketplace:  r.PostFormValue("marketplace"),
			ReturnReason: r.PostFormValue("return_reason"),
			Quantity:     qty,
		})
	}
	h.finish(w, r, err, "Staged")
}

func (h *Handler) unstage(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.finish(w, r, h.service.Unstage(r.Context(), sess.ID, kind, chi.URLParam(r, "key")), "Removed from staging")
}

func (h *Handler) updateOrderQuantity(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	qty, err := strconv.Atoi(r.PostFormValue("quantity"))
	if err != nil {
		h.redirectWithFlash(w, r, basePath, "error", "Quantity must be a whole number")
		return
	}
	h.finish(w, r, h.service.UpdateOrderQuantity(r.Context(), sess.ID, chi.URLParam(r, "orderID"), qty), "Quantity updated")
}

func (h *Handler) drain(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	n, err := h.service.Drain(r.Context(), sess.ID, kind)
	h.finish(w, r, err, "Submitted "+strconv.Itoa(n)+" "+string(kind)+" to the log")
}

func (h *Handler) promote(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	in := returns.PromoteInput{
		Condition: r.PostFormValue("condition"),
		Output:    returns.Output(r.PostFormValue("output")),
		Location:  r.PostFormValue("location"),
	}
	if err := h.validator.Struct(in); err != nil {
		h.redirectWithFlash(w, r, basePath, "error", "Choose a condition and output before adding to pending")
		return
	}
	n, err := h.service.Promote(r.Context(), sess.ID, kind, in)
	if err != nil && n > 0 {
		h.redirectWithFlash(w, r, basePath, "error", "Added "+strconv.Itoa(n)+" before stopping: "+h.operatorMessage(err))
		return
	}
	h.finish(w, r, err, "Added "+strconv.Itoa(n)+" to pending uploads")
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	finalized, err := h.service.FinalizeUpload(r.Context(), sess.ID)
	h.finish(w, r, err, "Upload created for "+strconv.Itoa(len(finalized))+" entries")
}

func (h *Handler) clearPending(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.service.ClearPending(r.Context(), sess.ID), "Pending uploads cleared")
}

func (h *Handler) removePending(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.service.RemovePendingUpload(r.Context(), sess.ID, chi.URLParam(r, "id")), "Pending upload removed")
}

func (h *Handler) updateLocation(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	err := h.service.UpdatePendingLocation(r.Context(), sess.ID, chi.URLParam(r, "id"), r.PostFormValue("location"), r.PostFormValue("location_notes"))
	h.finish(w, r, err, "Location saved")
}

func (h *Handler) refreshInventory(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	items, err := h.service.LoadInventory(r.Context(), sess.ID)
	h.finish(w, r, err, "Loaded "+strconv.Itoa(len(items))+" inventory rows")
}

func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.formSession(w, r)
	if !ok {
		return
	}
	h.finish(w, r, h.service.Reset(r.Context(), sess.ID), "Desk cleared")
}

func (h *Handler) exportReturns(w http.ResponseWriter, r *http.Request) {
	st, format, ok := h.exportState(w, r)
	if !ok {
		return
	}
	table, err := export.ForReturns(chi.URLParam(r, "schema"), st.Returns)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.download(w, table, format)
}

func (h *Handler) exportPending(w http.ResponseWriter, r *http.Request) {
	st, format, ok := h.exportState(w, r)
	if !ok {
		return
	}
	table, err := export.ForPending(chi.URLParam(r, "schema"), r.URL.Query().Get("marketplace"), st.Pending)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.download(w, table, format)
}

func (h *Handler) exportLedger(w http.ResponseWriter, r *http.Request) {
	st, format, ok := h.exportState(w, r)
	if !ok {
		return
	}
	kind, err := returns.ParseLedgerKind(chi.URLParam(r, "kind"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	var table export.Table
	switch kind {
	case returns.LedgerOrders:
		table = export.Orders(st.Orders.List())
	case returns.LedgerLPNs:
		table = export.LPNs(st.LPNs.List())
	case returns.LedgerRemovals:
		table = export.Removals(st.Removals.List())
	}
	h.download(w, table, format)
}

func (h *Handler) exportState(w http.ResponseWriter, r *http.Request) (*returns.State, export.Format, bool) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, "", false
	}
	st, err := h.service.View(r.Context(), sess.ID)
	if err != nil {
		h.logger.Error("load desk", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, "", false
	}
	return st, format, true
}

func (h *Handler) download(w http.ResponseWriter, table export.Table, format export.Format) {
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename(table.Kind, format, h.now())+`"`)
	if err := export.Write(w, table, format); err != nil {
		h.logger.Error("write export", slog.String("kind", table.Kind), slog.Any("error", err))
	}
}

func (h *Handler) formSession(w http.ResponseWriter, r *http.Request) (*shared.Session, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return nil, false
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing on desk action")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

// finish redirects back to the desk with a flash describing the outcome.
func (h *Handler) finish(w http.ResponseWriter, r *http.Request, err error, success string) {
	switch {
	case err == nil:
		h.redirectWithFlash(w, r, basePath, "success", success)
	case returns.IsNotice(err) || errors.Is(err, returns.ErrEntryNotFound):
		h.redirectWithFlash(w, r, basePath, "info", h.operatorMessage(err))
	default:
		h.redirectWithFlash(w, r, basePath, "error", h.operatorMessage(err))
	}
}

// operatorMessage turns err into text for the desk. Transport failures and
// unexpected faults are logged and replaced by a generic message.
func (h *Handler) operatorMessage(err error) string {
	var upstream *sheets.UpstreamError
	switch {
	case errors.Is(err, returns.ErrNoIdentifier):
		return "Please enter at least one: Name, LPN, or UPC/ASIN"
	case errors.Is(err, returns.ErrEmptyBatch):
		return "Nothing to submit"
	case errors.Is(err, returns.ErrDuplicateSubmit):
		return "That batch was just submitted"
	case errors.Is(err, returns.ErrEntryNotFound):
		return "Entry not found"
	case errors.As(err, &upstream):
		return upstream.Error()
	case errors.Is(err, sheets.ErrUnavailable):
		h.logger.Warn("gateway unavailable", slog.Any("error", err))
		return "Could not connect to the gateway"
	default:
		h.logger.Error("desk action failed", slog.Any("error", err))
		return err.Error()
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Returns Desk",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}
