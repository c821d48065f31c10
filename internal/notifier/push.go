package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// ErrTokenInvalid tells the worker to deactivate the token instead of
// retrying it.
var ErrTokenInvalid = errors.New("push_token_invalid")

type PushMessage struct {
	Title string
	Body  string
	URL   string
}

type PushSender interface {
	Send(ctx context.Context, token string, msg PushMessage) error
}

// ConsoleSender logs instead of sending. Default when no push endpoint is
// configured.
type ConsoleSender struct{}

func (ConsoleSender) Send(_ context.Context, token string, msg PushMessage) error {
	log.Printf("[push] (console) to=%s title=%q body=%q", token, msg.Title, msg.Body)
	return nil
}

// HTTPSender posts web-push payloads to a relay endpoint.
type HTTPSender struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

func NewHTTPSender(endpoint, apiKey string) *HTTPSender {
	return &HTTPSender{
		endpoint: endpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSender) Send(ctx context.Context, token string, msg PushMessage) error {
	payload := map[string]any{
		"token": token,
		"title": msg.Title,
		"body":  msg.Body,
		"url":   msg.URL,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)

	// 404/410 from push relays mean the subscription is gone
	if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusGone {
		return ErrTokenInvalid
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("push send failed: %s (%d)", string(body), res.StatusCode)
	}
	return nil
}
