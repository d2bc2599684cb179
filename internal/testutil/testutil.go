// Package testutil holds fixtures shared by handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	"keerthanaapi/internal/auth"
	"keerthanaapi/internal/keerthana"

	"github.com/golang-jwt/jwt/v5"
)

// TestUser is a signed-up user for testing
var TestUser = auth.User{
	ID:        "test-user-id-123",
	Email:     "vidya@example.com",
	Name:      "Vidya",
	CreatedAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
}

// SampleFields returns a complete keerthana draft.
func SampleFields() keerthana.Fields {
	d := keerthana.NewDate(2024, time.January, 15)
	return keerthana.Fields{
		Name:          "Jagadananda Karaka",
		Raga:          "Natabhairavi",
		Tala:          "Adi",
		Composer:      "Tyagaraja",
		Deity:         "Rama",
		DateTaught:    &d,
		Lyrics:        "Jagadananda karaka jaya janaardana...",
		NotationFiles: []keerthana.NotationFile{},
	}
}

// SampleEntry returns a stored keerthana with the given id.
func SampleEntry(id string) keerthana.Entry {
	return keerthana.Entry{
		ID:        id,
		Fields:    SampleFields(),
		CreatedAt: time.Date(2024, time.January, 15, 10, 0, 0, 0, time.UTC),
	}
}

// GenerateTestToken generates a JWT token for testing
func GenerateTestToken(secret, userID, email string) string {
	token, _, _ := auth.GenerateToken(secret, userID, email, time.Hour)
	return token
}

// GenerateExpiredToken generates an expired JWT token for testing
func GenerateExpiredToken(secret, userID, email string) string {
	c := auth.Claims{
		Sub:   userID,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "expired-jti",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	token, _ := t.SignedString([]byte(secret))
	return token
}

// NewRequest creates a new HTTP request for testing
func NewRequest(method, path string, body interface{}) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}
	var r *http.Request
	if bodyBytes != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	return r
}

// NewRequestWithAuth creates a new HTTP request with JWT auth for testing
func NewRequestWithAuth(method, path string, body interface{}, token string) *http.Request {
	r := NewRequest(method, path, body)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	return r
}

// RecordResponse records the HTTP response for testing
type RecordResponse struct {
	Code   int
	Header http.Header
	Body   map[string]interface{}
}

// RecordHTTPResponse records the HTTP response
func RecordHTTPResponse(w *httptest.ResponseRecorder) RecordResponse {
	result := w.Result()
	defer result.Body.Close()

	bodyBytes, _ := io.ReadAll(result.Body)

	var bodyMap map[string]interface{}
	if len(bodyBytes) > 0 {
		_ = json.Unmarshal(bodyBytes, &bodyMap)
	}

	return RecordResponse{
		Code:   result.StatusCode,
		Header: result.Header,
		Body:   bodyMap,
	}
}

// ErrorCode returns error.code from an error envelope, or "".
func (r RecordResponse) ErrorCode() string {
	e, ok := r.Body["error"].(map[string]interface{})
	if !ok {
		return ""
	}
	code, _ := e["code"].(string)
	return code
}

// AssertResponseCode checks if the response code matches expected
func AssertResponseCode(t interface {
	Errorf(format string, args ...any)
}, got, want int) {
	if got != want {
		t.Errorf("got status code %d, want %d", got, want)
	}
}
