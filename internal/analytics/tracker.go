package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Tracker emits analytics events. Errors are returned so callers that gate
// state on a successful emission (the revenue tracker) can decide to retry
// later; ordinary callers log and move on.
type Tracker interface {
	Track(ctx context.Context, event, distinctID string, props map[string]any) error
	TrackCharge(ctx context.Context, distinctID string, amount float64, props map[string]any) error
}

// HTTPTracker speaks the Mixpanel ingestion API. With no token configured it
// degrades to a logging no-op, which keeps local environments quiet.
type HTTPTracker struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewHTTPTracker(baseURL, token string) *HTTPTracker {
	return &HTTPTracker{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *HTTPTracker) Track(ctx context.Context, event, distinctID string, props map[string]any) error {
	if t.token == "" {
		log.Printf("[analytics] (disabled) event=%s user=%s", event, distinctID)
		return nil
	}
	properties := map[string]any{
		"token":       t.token,
		"distinct_id": distinctID,
		"time":        time.Now().Unix(),
	}
	for k, v := range props {
		properties[k] = v
	}
	payload := []map[string]any{{
		"event":      event,
		"properties": properties,
	}}
	return t.post(ctx, "/track", payload)
}

func (t *HTTPTracker) TrackCharge(ctx context.Context, distinctID string, amount float64, props map[string]any) error {
	if t.token == "" {
		log.Printf("[analytics] (disabled) charge=%.2f user=%s", amount, distinctID)
		return nil
	}
	appended := map[string]any{"$amount": amount, "$time": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range props {
		appended[k] = v
	}
	payload := []map[string]any{{
		"$token":       t.token,
		"$distinct_id": distinctID,
		"$append":      map[string]any{"$transactions": appended},
	}}
	return t.post(ctx, "/engage", payload)
}

func (t *HTTPTracker) post(ctx context.Context, path string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("analytics emit failed: %s (%d)", string(body), res.StatusCode)
	}
	return nil
}
