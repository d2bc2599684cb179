package editor

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"keerthanaapi/internal/attachment"
	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/keerthana"
)

const multipartMemory = 8 << 20

// Sessions resolves the signed-in user's editor and the engine it submits to.
type Sessions interface {
	Editor(ctx context.Context, userID string) (*Editor, *catalog.Engine, error)
}

type HTTPHandler struct {
	sessions Sessions
}

func NewHTTPHandler(sessions Sessions) *HTTPHandler {
	return &HTTPHandler{sessions: sessions}
}

type draftResponse struct {
	Draft
	Uploading bool `json:"uploading"`
}

func (h *HTTPHandler) editor(w http.ResponseWriter, r *http.Request) (*Editor, *catalog.Engine, bool) {
	userID := httpx.UserIDFrom(r)
	if userID == "" {
		httpx.JSONError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "Sign in required", nil)
		return nil, nil, false
	}
	ed, engine, err := h.sessions.Editor(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return nil, nil, false
	}
	return ed, engine, true
}

func writeDraft(w http.ResponseWriter, r *http.Request, ed *Editor) {
	httpx.JSONSuccess(w, r, draftResponse{Draft: ed.Draft(), Uploading: ed.Uploading()}, nil)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrUploadInFlight):
		httpx.JSONError(w, r, http.StatusConflict, "UPLOAD_IN_FLIGHT", "Wait for the file upload to finish", nil)
	case errors.Is(err, ErrNoSuchFile):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		catalog.WriteError(w, r, err)
	}
}

// Get handles GET /api/draft
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	ed, _, ok := h.editor(w, r)
	if !ok {
		return
	}
	writeDraft(w, r, ed)
}

// Put handles PUT /api/draft. Attached files are managed separately.
func (h *HTTPHandler) Put(w http.ResponseWriter, r *http.Request) {
	var f keerthana.Fields
	if err := httpx.DecodeJSON(r, &f); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	ed, _, ok := h.editor(w, r)
	if !ok {
		return
	}
	ed.Set(f)
	writeDraft(w, r, ed)
}

// Reset handles DELETE /api/draft
func (h *HTTPHandler) Reset(w http.ResponseWriter, r *http.Request) {
	ed, _, ok := h.editor(w, r)
	if !ok {
		return
	}
	ed.Reset()
	writeDraft(w, r, ed)
}

// Edit handles POST /api/draft/edit/{id}
func (h *HTTPHandler) Edit(w http.ResponseWriter, r *http.Request) {
	ed, engine, ok := h.editor(w, r)
	if !ok {
		return
	}
	entry, err := engine.Select(r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ed.Edit(entry)
	writeDraft(w, r, ed)
}

// AttachFile handles POST /api/draft/files (multipart field "file")
func (h *HTTPHandler) AttachFile(w http.ResponseWriter, r *http.Request) {
	ed, _, ok := h.editor(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Expected a multipart upload", nil)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Missing file field", nil)
		return
	}
	defer file.Close()

	nf, err := ed.AttachFile(r.Context(), attachment.File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	httpx.JSONCreated(w, r, nf)
}

// RemoveFile handles DELETE /api/draft/files/{index}
func (h *HTTPHandler) RemoveFile(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "index must be a number", nil)
		return
	}
	ed, _, ok := h.editor(w, r)
	if !ok {
		return
	}
	if err := ed.RemoveFile(i); err != nil {
		writeError(w, r, err)
		return
	}
	writeDraft(w, r, ed)
}

// Submit handles POST /api/draft/submit. The draft is checked and captured
// when the gate opens; confirming submits that capture.
func (h *HTTPHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ed, engine, ok := h.editor(w, r)
	if !ok {
		return
	}
	if err := ed.Check(); err != nil {
		writeError(w, r, err)
		return
	}

	draft := ed.Draft()
	kind := catalog.ActionAdd
	if draft.Editing() {
		kind = catalog.ActionEdit
	}
	res, deferred, err := engine.Perform(r.Context(), kind, func(ctx context.Context) (catalog.Result, error) {
		entry, err := ed.SubmitDraft(ctx, engine, draft)
		if err != nil {
			return catalog.Result{}, err
		}
		return catalog.Result{Entry: &entry}, nil
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	catalog.WriteResult(w, r, res, deferred, nil)
}
