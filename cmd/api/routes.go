package main

import (
	"context"
	"net/http"
	"time"

	"keerthanaapi/internal/auth"
	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/editor"
	"keerthanaapi/internal/httpx"
	"keerthanaapi/internal/notify"
)

type routes struct {
	auth      *auth.HTTPHandler
	catalog   *catalog.HTTPHandler
	editor    *editor.HTTPHandler
	events    *notify.SSEHandler
	files     http.Handler
	verifier  httpx.TokenVerifier
	ready     func(ctx context.Context) error
	maxBody   int64
	maxUpload int64
}

// handler builds the API mux. Everything under /api requires a bearer token.
func (rt routes) handler() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if rt.files != nil {
		router.Handle("GET /files/", http.StripPrefix("/files", rt.files))
	}

	limitBody := httpx.RequestSizeLimitMiddleware(rt.maxBody)
	router.Handle("POST /auth/sign-in", limitBody(http.HandlerFunc(rt.auth.SignIn)))

	protected := httpx.AuthMiddleware(rt.verifier)
	protect := func(h http.HandlerFunc) http.Handler {
		return httpx.Chain(h, protected, limitBody)
	}
	router.Handle("POST /auth/sign-out", protect(rt.auth.SignOut))
	router.Handle("GET /auth/me", protect(rt.auth.Me))

	router.Handle("GET /api/keerthanas", protect(rt.catalog.List))
	router.Handle("POST /api/keerthanas", protect(rt.catalog.Create))
	router.Handle("GET /api/keerthanas/{id}", protect(rt.catalog.Get))
	router.Handle("PUT /api/keerthanas/{id}", protect(rt.catalog.Update))
	router.Handle("DELETE /api/keerthanas/{id}", protect(rt.catalog.Delete))
	router.Handle("GET /api/current", protect(rt.catalog.Current))
	router.Handle("DELETE /api/current", protect(rt.catalog.ClearCurrent))
	router.Handle("GET /api/pending", protect(rt.catalog.Pending))
	router.Handle("POST /api/confirm", protect(rt.catalog.Confirm))
	router.Handle("POST /api/cancel", protect(rt.catalog.Cancel))
	router.Handle("GET /api/selection", protect(rt.catalog.Selection))
	router.Handle("POST /api/selection/mode", protect(rt.catalog.ToggleSelectionMode))
	router.Handle("PUT /api/selection/{id}", protect(rt.catalog.SetSelected))
	router.Handle("POST /api/selection/delete", protect(rt.catalog.DeleteSelected))
	router.Handle("POST /api/refresh", protect(rt.catalog.Refresh))
	router.Handle("GET /api/facets", protect(rt.catalog.Facets))

	router.Handle("GET /api/draft", protect(rt.editor.Get))
	router.Handle("PUT /api/draft", protect(rt.editor.Put))
	router.Handle("DELETE /api/draft", protect(rt.editor.Reset))
	router.Handle("POST /api/draft/edit/{id}", protect(rt.editor.Edit))
	router.Handle("POST /api/draft/files", httpx.Chain(http.HandlerFunc(rt.editor.AttachFile),
		protected, httpx.RequestSizeLimitMiddleware(rt.maxUpload)))
	router.Handle("DELETE /api/draft/files/{index}", protect(rt.editor.RemoveFile))
	router.Handle("POST /api/draft/submit", protect(rt.editor.Submit))

	router.Handle("GET /api/events", httpx.Chain(rt.events, protected))

	return router
}
