package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// Mailer defines the interface for transactional email dispatch
type Mailer interface {
	Send(ctx context.Context, to, subject, html string) error
}

// HTTPMailer delivers mail through the provider's JSON API.
type HTTPMailer struct {
	endpoint string
	apiKey   string
	from     string
	client   *http.Client
}

// NewHTTPMailer creates a mailer for the given provider endpoint and sender.
func NewHTTPMailer(endpoint, apiKey, from string) *HTTPMailer {
	return &HTTPMailer{
		endpoint: endpoint,
		apiKey:   apiKey,
		from:     from,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send posts the message to the provider. Delivery failures are returned to
// the caller, which logs them; a failed dispatch is never retried here.
func (m *HTTPMailer) Send(ctx context.Context, to, subject, html string) error {
	body, err := json.Marshal(sendRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("email provider returned status %d", resp.StatusCode)
	}
	return nil
}

// LogMailer logs instead of sending; used in development and tests.
type LogMailer struct{}

// Send logs the dispatch with a masked recipient.
func (LogMailer) Send(_ context.Context, to, subject, _ string) error {
	log.Printf("mail to %s: %s", MaskEmail(to), subject)
	return nil
}

// MaskEmail masks the local part of an address for logging (e.g. an**@x.com).
func MaskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return "****"
	}
	local := email[:at]
	if len(local) <= 2 {
		return local[:1] + "****" + email[at:]
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + email[at:]
}
