package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Mailer sends a ticket email and returns the provider's message id.
type Mailer interface {
	SendTicket(ctx context.Context, m TicketMail) (string, error)
}

type TicketMail struct {
	To        string
	Name      string
	EventName string
	Code      string
	RedeemURL string
}

// HTTPMailer posts to a Resend-style transactional mail API.
type HTTPMailer struct {
	apiURL string
	apiKey string
	from   string
	http   *http.Client
}

func NewHTTPMailer(apiURL, apiKey, from string) *HTTPMailer {
	return &HTTPMailer{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		http:   &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *HTTPMailer) SendTicket(ctx context.Context, mail TicketMail) (string, error) {
	if m.apiKey == "" {
		return "", fmt.Errorf("mail api key not configured")
	}
	html := fmt.Sprintf(
		"<p>Hola %s,</p><p>Tu entrada para <strong>%s</strong> está lista.</p>"+
			"<p>Código: <strong>%s</strong></p><p><a href=%q>Ver entrada</a></p>",
		mail.Name, mail.EventName, mail.Code, mail.RedeemURL,
	)
	payload := map[string]any{
		"from":    m.from,
		"to":      []string{mail.To},
		"subject": fmt.Sprintf("Tu entrada para %s", mail.EventName),
		"html":    html,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.apiURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := m.http.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("mail send failed: %s (%d)", string(body), res.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("parse mail response: %w", err)
	}
	return out.ID, nil
}
