package attachment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RemoteStore uploads to a hosted object storage service that exposes
// POST {base}/object/{bucket}/{key} and public reads under
// {base}/object/public/{bucket}/{key}.
type RemoteStore struct {
	httpClient *http.Client
	baseURL    string
	bucket     string
	apiKey     string
	limiter    *rate.Limiter
}

func NewRemoteStore(baseURL, bucket, apiKey string, rps int) *RemoteStore {
	if rps <= 0 {
		rps = 5
	}
	return &RemoteStore{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		bucket:  bucket,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Every(time.Second/time.Duration(rps)), 1),
	}
}

func (s *RemoteStore) Put(ctx context.Context, key, contentType string, body io.Reader) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	u := fmt.Sprintf("%s/object/%s/%s", s.baseURL, url.PathEscape(s.bucket), url.PathEscape(key))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
		req.Header.Set("apikey", s.apiKey)
	}
	req.Header.Set("x-upsert", "false")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("storage returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

func (s *RemoteStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", s.baseURL, url.PathEscape(s.bucket), url.PathEscape(key))
}
