package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSuccess_IncludesRequestID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(ContextWithRequestID(r.Context(), "req-1"))
	w := httptest.NewRecorder()

	JSONSuccess(w, r, map[string]string{"name": "Marugelara"}, map[string]interface{}{"total": 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Success bool                   `json:"success"`
		Data    map[string]string      `json:"data"`
		Meta    map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Marugelara", body.Data["name"])
	assert.Equal(t, "req-1", body.Meta["request_id"])
	assert.EqualValues(t, 1, body.Meta["total"])
}

func TestJSONError(t *testing.T) {
	w := httptest.NewRecorder()

	JSONError(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusBadRequest, "VALIDATION_ERROR", "Invalid input",
		[]ErrorDetail{{Field: "raga", Message: "raga is required"}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
	assert.Equal(t, []ErrorDetail{{Field: "raga", Message: "raga is required"}}, body.Error.Details)
	assert.Nil(t, body.Meta)
}

func TestJSONCreatedAndAccepted(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", nil)

	w := httptest.NewRecorder()
	JSONCreated(w, r, "x")
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	JSONAccepted(w, r, "x")
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = httptest.NewRecorder()
	JSONNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestDecodeJSON_RejectsUnknownFields(t *testing.T) {
	var dst struct {
		Code string `json:"code"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"1234","extra":true}`))
	assert.Error(t, DecodeJSON(r, &dst))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"code":"1234"}`))
	require.NoError(t, DecodeJSON(r, &dst))
	assert.Equal(t, "1234", dst.Code)
}
