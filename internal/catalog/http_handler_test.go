package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"keerthanaapi/internal/attachment"
	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/keerthana"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticSessions struct {
	engine *Engine
	err    error
}

func (s staticSessions) Engine(context.Context, string) (*Engine, error) {
	return s.engine, s.err
}

func authed(method, target, body string) *http.Request {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	return r.WithContext(httpx.ContextWithUser(r.Context(), "user-1", "user@example.com", "jti-1"))
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.True(t, env.Success, w.Body.String())
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body httpx.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

const validBody = `{"name":"Marugelara","raga":"Jayanthasri","tala":"Adi","composer":"Tyagaraja","deity":"Rama","notationFiles":[]}`

func TestHTTPHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, []keerthana.Entry{
		entry("1", "Nidhi Chala", "Kalyani"),
		entry("2", "Vatapi", "Hamsadhwani"),
	})
	handler := NewHTTPHandler(staticSessions{engine: e})

	t.Run("grouped and searched", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.List(w, authed(http.MethodGet, "/api/keerthanas?filter=raga&q=nidhi", ""))

		assert.Equal(t, http.StatusOK, w.Code)
		var view keerthana.View
		decodeData(t, w, &view)
		require.Len(t, view.Groups, 1)
		assert.Equal(t, "Kalyani", view.Groups[0].Key)
	})

	t.Run("unknown filter", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.List(w, authed(http.MethodGet, "/api/keerthanas?filter=ragam", ""))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("signed out", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.List(w, httptest.NewRequest(http.MethodGet, "/api/keerthanas", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("session load failure", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewHTTPHandler(staticSessions{err: errors.New("db down")}).List(w, authed(http.MethodGet, "/api/keerthanas", ""))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "STORE_ERROR", errorCode(t, w))
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, []keerthana.Entry{entry("1", "Nidhi Chala", "Kalyani")})
	handler := NewHTTPHandler(staticSessions{engine: e})

	r := authed(http.MethodGet, "/api/keerthanas/1", "")
	r.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	handler.Get(w, r)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.Current(w, authed(http.MethodGet, "/api/current", ""))
	assert.Equal(t, http.StatusOK, w.Code)

	r = authed(http.MethodGet, "/api/keerthanas/9", "")
	r.SetPathValue("id", "9")
	w = httptest.NewRecorder()
	handler.Get(w, r)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.ClearCurrent(w, authed(http.MethodDelete, "/api/current", ""))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	handler.Current(w, authed(http.MethodGet, "/api/current", ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHTTPHandler_CreateWithoutGate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, nil)
	handler := NewHTTPHandler(staticSessions{engine: e})

	t.Run("created", func(t *testing.T) {
		store.EXPECT().Insert(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f keerthana.Fields) (keerthana.Entry, error) {
			return keerthana.Entry{ID: "new", Fields: f}, nil
		})

		w := httptest.NewRecorder()
		handler.Create(w, authed(http.MethodPost, "/api/keerthanas", validBody))

		assert.Equal(t, http.StatusCreated, w.Code)
		var got keerthana.Entry
		decodeData(t, w, &got)
		assert.Equal(t, "new", got.ID)
		assert.Equal(t, "Marugelara", got.Name)
	})

	t.Run("validation error", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Create(w, authed(http.MethodPost, "/api/keerthanas", `{"name":"x"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var body httpx.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Len(t, body.Error.Details, 4)
	})

	t.Run("store error", func(t *testing.T) {
		store.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(keerthana.Entry{}, errors.New("boom"))

		w := httptest.NewRecorder()
		handler.Create(w, authed(http.MethodPost, "/api/keerthanas", validBody))

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, "STORE_ERROR", errorCode(t, w))
	})

	t.Run("malformed body", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.Create(w, authed(http.MethodPost, "/api/keerthanas", `{`))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHTTPHandler_GatedDeleteAndConfirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, []keerthana.Entry{entry("1", "a", "x")}, WithVerifier(StaticCode("1234")))
	handler := NewHTTPHandler(staticSessions{engine: e})

	r := authed(http.MethodDelete, "/api/keerthanas/1", "")
	r.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	handler.Delete(w, r)

	assert.Equal(t, http.StatusAccepted, w.Code)
	var accepted map[string]string
	decodeData(t, w, &accepted)
	assert.Equal(t, "delete", accepted["pending"])

	w = httptest.NewRecorder()
	handler.Pending(w, authed(http.MethodGet, "/api/pending", ""))
	var pending pendingResponse
	decodeData(t, w, &pending)
	require.NotNil(t, pending.Pending)
	assert.Equal(t, ActionDelete, *pending.Pending)
	assert.True(t, pending.GateRequired)

	w = httptest.NewRecorder()
	handler.Confirm(w, authed(http.MethodPost, "/api/confirm", `{"code":"9999"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "CODE_MISMATCH", errorCode(t, w))

	store.EXPECT().Delete(gomock.Any(), "1").Return(nil)
	w = httptest.NewRecorder()
	handler.Confirm(w, authed(http.MethodPost, "/api/confirm", `{"code":"1234"}`))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, e.Len())

	w = httptest.NewRecorder()
	handler.Confirm(w, authed(http.MethodPost, "/api/confirm", `{"code":"1234"}`))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHTTPHandler_GatedUpdateCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, []keerthana.Entry{entry("1", "a", "x")}, WithVerifier(StaticCode("1234")))
	handler := NewHTTPHandler(staticSessions{engine: e})

	r := authed(http.MethodPut, "/api/keerthanas/1", validBody)
	r.SetPathValue("id", "1")
	w := httptest.NewRecorder()
	handler.Update(w, r)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	handler.Cancel(w, authed(http.MethodPost, "/api/cancel", ""))
	assert.Equal(t, http.StatusNoContent, w.Code)

	_, ok := e.Pending()
	assert.False(t, ok)
}

func TestHTTPHandler_BulkDelete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, []keerthana.Entry{entry("1", "a", "x"), entry("2", "b", "x"), entry("3", "c", "x")})
	handler := NewHTTPHandler(staticSessions{engine: e})

	w := httptest.NewRecorder()
	handler.DeleteSelected(w, authed(http.MethodPost, "/api/selection/delete", ""))
	assert.Equal(t, http.StatusConflict, w.Code)

	w = httptest.NewRecorder()
	handler.ToggleSelectionMode(w, authed(http.MethodPost, "/api/selection/mode", ""))
	var sel selectionResponse
	decodeData(t, w, &sel)
	assert.True(t, sel.SelectionMode)

	w = httptest.NewRecorder()
	handler.DeleteSelected(w, authed(http.MethodPost, "/api/selection/delete", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for _, id := range []string{"1", "3"} {
		r := authed(http.MethodPut, "/api/selection/"+id, `{"selected":true}`)
		r.SetPathValue("id", id)
		w = httptest.NewRecorder()
		handler.SetSelected(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w = httptest.NewRecorder()
	handler.Selection(w, authed(http.MethodGet, "/api/selection", ""))
	decodeData(t, w, &sel)
	assert.Equal(t, []string{"1", "3"}, sel.Selected)

	store.EXPECT().Delete(gomock.Any(), "1").Return(nil)
	store.EXPECT().Delete(gomock.Any(), "3").Return(errors.New("timeout"))

	w = httptest.NewRecorder()
	handler.DeleteSelected(w, authed(http.MethodPost, "/api/selection/delete", ""))

	assert.Equal(t, http.StatusMultiStatus, w.Code)
	var bulk bulkResponse
	decodeData(t, w, &bulk)
	assert.Equal(t, 1, bulk.Deleted)
	assert.Equal(t, 1, bulk.Failed)
	assert.Equal(t, []bulkItem{{ID: "1", Deleted: true}, {ID: "3", Deleted: false, Error: "timeout"}}, bulk.Results)
}

func TestHTTPHandler_RefreshAndFacets(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	store := NewMockStore(ctrl)
	e := loadedEngine(t, store, nil)
	handler := NewHTTPHandler(staticSessions{engine: e})

	store.EXPECT().List(gomock.Any()).Return([]keerthana.Entry{entry("1", "a", "Kalyani")}, nil)
	w := httptest.NewRecorder()
	handler.Refresh(w, authed(http.MethodPost, "/api/refresh", ""))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, e.Len())

	w = httptest.NewRecorder()
	handler.Facets(w, authed(http.MethodGet, "/api/facets?field=raga", ""))
	var facets []keerthana.Facet
	decodeData(t, w, &facets)
	assert.Equal(t, []keerthana.Facet{{Value: "Kalyani", Count: 1}}, facets)

	w = httptest.NewRecorder()
	handler.Facets(w, authed(http.MethodGet, "/api/facets?field=all", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWriteError_Upload(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, httptest.NewRequest(http.MethodPost, "/", nil), &attachment.UploadError{Name: "a.pdf", Err: errors.New("503")})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "UPLOAD_ERROR", errorCode(t, w))
}
