package catalog

import (
	"context"
	"errors"
	"net/http"

	"keerthanaapi/internal/attachment"
	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/keerthana"
	"keerthanaapi/internal/logging"
)

// EngineSource resolves the signed-in user's engine, loading it on first use.
type EngineSource interface {
	Engine(ctx context.Context, userID string) (*Engine, error)
}

type HTTPHandler struct {
	sessions EngineSource
}

func NewHTTPHandler(sessions EngineSource) *HTTPHandler {
	return &HTTPHandler{sessions: sessions}
}

func (h *HTTPHandler) engine(w http.ResponseWriter, r *http.Request) (*Engine, bool) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", nil)
		return nil, false
	}
	e, err := h.sessions.Engine(r.Context(), userID)
	if err != nil {
		WriteError(w, r, err)
		return nil, false
	}
	return e, true
}

// List handles GET /api/keerthanas?filter=raga&q=rama&field=deity
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	c, err := keerthana.ParseClassification(query.Get("filter"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	field, err := keerthana.ParseClassification(query.Get("field"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}

	e, ok := h.engine(w, r)
	if !ok {
		return
	}

	view := e.View(c, keerthana.Search{Term: query.Get("q"), Field: field})
	httpx.JSONSuccess(w, r, view, map[string]interface{}{
		"total":   e.Len(),
		"matched": view.Count(),
	})
}

// Get handles GET /api/keerthanas/{id} and makes it the current entry.
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	entry, err := e.Select(r.PathValue("id"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, entry, nil)
}

// Current handles GET /api/current
func (h *HTTPHandler) Current(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	entry, found := e.Current()
	if !found {
		WriteError(w, r, keerthana.ErrNotFound)
		return
	}
	httpx.JSONSuccess(w, r, entry, nil)
}

// ClearCurrent handles DELETE /api/current
func (h *HTTPHandler) ClearCurrent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	e.ClearCurrent()
	httpx.JSONNoContent(w)
}

// Create handles POST /api/keerthanas
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var f keerthana.Fields
	if err := httpx.DecodeJSON(r, &f); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	res, deferred, err := e.Perform(r.Context(), ActionAdd, e.AddAction(f))
	WriteResult(w, r, res, deferred, err)
}

// Update handles PUT /api/keerthanas/{id}. The body replaces every field.
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	var f keerthana.Fields
	if err := httpx.DecodeJSON(r, &f); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	res, deferred, err := e.Perform(r.Context(), ActionEdit, e.EditAction(r.PathValue("id"), f))
	WriteResult(w, r, res, deferred, err)
}

// Delete handles DELETE /api/keerthanas/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	res, deferred, err := e.Perform(r.Context(), ActionDelete, e.DeleteAction(r.PathValue("id")))
	WriteResult(w, r, res, deferred, err)
}

type confirmRequest struct {
	Code string `json:"code"`
}

// Confirm handles POST /api/confirm
func (h *HTTPHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	res, err := e.Confirm(r.Context(), req.Code)
	WriteResult(w, r, res, false, err)
}

// Cancel handles POST /api/cancel
func (h *HTTPHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	e.Cancel()
	httpx.JSONNoContent(w)
}

type pendingResponse struct {
	Pending      *ActionKind `json:"pending"`
	GateRequired bool        `json:"gateRequired"`
}

// Pending handles GET /api/pending
func (h *HTTPHandler) Pending(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	resp := pendingResponse{GateRequired: e.GateRequired()}
	if kind, found := e.Pending(); found {
		resp.Pending = &kind
	}
	httpx.JSONSuccess(w, r, resp, nil)
}

type selectionResponse struct {
	SelectionMode bool     `json:"selectionMode"`
	Selected      []string `json:"selected"`
}

func selectionOf(e *Engine) selectionResponse {
	return selectionResponse{SelectionMode: e.SelectionMode(), Selected: e.Selected()}
}

// Selection handles GET /api/selection
func (h *HTTPHandler) Selection(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	httpx.JSONSuccess(w, r, selectionOf(e), nil)
}

// ToggleSelectionMode handles POST /api/selection/mode
func (h *HTTPHandler) ToggleSelectionMode(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	e.ToggleSelectionMode()
	httpx.JSONSuccess(w, r, selectionOf(e), nil)
}

type setSelectedRequest struct {
	Selected bool `json:"selected"`
}

// SetSelected handles PUT /api/selection/{id}
func (h *HTTPHandler) SetSelected(w http.ResponseWriter, r *http.Request) {
	var req setSelectedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := e.SetSelected(r.PathValue("id"), req.Selected); err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, selectionOf(e), nil)
}

// DeleteSelected handles POST /api/selection/delete
func (h *HTTPHandler) DeleteSelected(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	if !e.SelectionMode() {
		WriteError(w, r, ErrNotSelecting)
		return
	}
	if len(e.Selected()) == 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "NO_SELECTION", "Select at least one keerthana", nil)
		return
	}
	res, deferred, err := e.Perform(r.Context(), ActionDelete, e.DeleteSelectedAction())
	WriteResult(w, r, res, deferred, err)
}

// Refresh handles POST /api/refresh
func (h *HTTPHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	if err := e.Load(r.Context()); err != nil {
		WriteError(w, r, err)
		return
	}
	httpx.JSONSuccess(w, r, e.View(keerthana.All, keerthana.Search{}), map[string]interface{}{"total": e.Len()})
}

// Facets handles GET /api/facets?field=raga
func (h *HTTPHandler) Facets(w http.ResponseWriter, r *http.Request) {
	c, err := keerthana.ParseClassification(r.URL.Query().Get("field"))
	if err != nil || c == keerthana.All {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "field must be one of raga, tala, composer, deity", nil)
		return
	}
	e, ok := h.engine(w, r)
	if !ok {
		return
	}
	httpx.JSONSuccess(w, r, e.Facets(c), nil)
}

type pendingAccepted struct {
	Pending ActionKind `json:"pending"`
}

type bulkItem struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

type bulkResponse struct {
	Results []bulkItem `json:"results"`
	Deleted int        `json:"deleted"`
	Failed  int        `json:"failed"`
}

func bulkBody(b *BulkResult) bulkResponse {
	resp := bulkResponse{Results: make([]bulkItem, 0, len(b.Outcomes))}
	for _, o := range b.Outcomes {
		item := bulkItem{ID: o.ID, Deleted: o.Err == nil}
		if o.Err != nil {
			item.Error = o.Err.Error()
			resp.Failed++
		} else {
			resp.Deleted++
		}
		resp.Results = append(resp.Results, item)
	}
	return resp
}

// WriteResult renders the outcome of a performed or confirmed action.
func WriteResult(w http.ResponseWriter, r *http.Request, res Result, deferred bool, err error) {
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if deferred {
		httpx.JSONAccepted(w, r, pendingAccepted{Pending: res.Kind})
		return
	}

	switch {
	case res.Bulk != nil:
		status := http.StatusOK
		if len(res.Bulk.Failed()) > 0 {
			status = http.StatusMultiStatus
		}
		httpx.JSONStatus(w, r, status, bulkBody(res.Bulk), nil)
	case res.Entry != nil && res.Kind == ActionAdd:
		httpx.JSONCreated(w, r, res.Entry)
	case res.Entry != nil:
		httpx.JSONSuccess(w, r, res.Entry, nil)
	default:
		httpx.JSONNoContent(w)
	}
}

// WriteError maps engine, validation, upload and store errors to responses.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *keerthana.ValidationError
	var uerr *attachment.UploadError

	switch {
	case errors.As(err, &verr):
		details := make([]httpx.ErrorDetail, 0, len(verr.Problems))
		for _, p := range verr.Problems {
			details = append(details, httpx.ErrorDetail{Field: p.Field, Message: p.Message})
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input", details)
	case errors.Is(err, keerthana.ErrInvalid):
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, keerthana.ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Keerthana not found", nil)
	case errors.Is(err, ErrCodeMismatch):
		httpx.JSONError(w, r, http.StatusForbidden, "CODE_MISMATCH", "Incorrect security code. Please try again.", nil)
	case errors.Is(err, ErrNoPendingAction):
		httpx.JSONError(w, r, http.StatusConflict, "NO_PENDING_ACTION", "Nothing is waiting for confirmation", nil)
	case errors.Is(err, ErrNotSelecting):
		httpx.JSONError(w, r, http.StatusConflict, "SELECTION_MODE_OFF", "Turn on selection mode first", nil)
	case errors.Is(err, ErrConflict):
		httpx.JSONError(w, r, http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.As(err, &uerr):
		logging.FromContext(r.Context()).Warn().Err(err).Msg("upload failed")
		httpx.JSONError(w, r, http.StatusBadGateway, "UPLOAD_ERROR", "File upload failed", nil)
	default:
		logging.FromContext(r.Context()).Error().Err(err).Msg("store request failed")
		httpx.JSONError(w, r, http.StatusBadGateway, "STORE_ERROR", "The record store rejected the request", nil)
	}
}
