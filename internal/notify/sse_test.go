package notify

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"keerthanaapi/internal/catalog"
	"keerthanaapi/internal/httpx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEHandler_Streams(t *testing.T) {
	b, _ := runBroker(t)
	h := NewSSEHandler(b)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := httpx.ContextWithUser(r.Context(), "user-1", "vidya@example.com", "jti")
		h.ServeHTTP(w, r.WithContext(ctx))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out reading stream")
			return ""
		}
	}

	assert.Equal(t, "event: connected", next())
	subscribed(t, b, "user-1", 1)

	b.For("user-1").Notify(context.Background(), catalog.Notice{Level: catalog.LevelInfo, Title: "Security Check"})

	var data string
	for data == "" {
		if l := next(); strings.HasPrefix(l, "data: {\"id\"") {
			data = l
		}
	}
	assert.Contains(t, data, `"title":"Security Check"`)
	assert.Contains(t, data, `"level":"info"`)

	cancel()
	subscribed(t, b, "user-1", 0)
}

func TestSSEHandler_RequiresUser(t *testing.T) {
	b, _ := runBroker(t)
	w := httptest.NewRecorder()
	NewSSEHandler(b).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/events", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
