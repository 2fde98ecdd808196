package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Resend sends email through the Resend HTTP API.
type Resend struct {
	APIKey  string
	BaseURL string
	From    string
	Client  *http.Client
}

// NewResend builds a client; from is the full sender, e.g. "Segbon <news@example.com>".
func NewResend(apiKey, baseURL, from string) *Resend {
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	return &Resend{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		From:    from,
		Client:  newHTTPClient(),
	}
}

type resendError struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

// SendEmail implements EmailProvider.
func (r *Resend) SendEmail(ctx context.Context, mail Email) error {
	if r.APIKey == "" || r.From == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(map[string]interface{}{
		"from":    r.From,
		"to":      []string{mail.To},
		"subject": mail.Subject,
		"html":    mail.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("resend: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.APIKey)

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var e resendError
		if json.Unmarshal(raw, &e) == nil && e.Message != "" {
			return fmt.Errorf("resend: %s (%d)", e.Message, resp.StatusCode)
		}
		return fmt.Errorf("resend: status %d", resp.StatusCode)
	}
	return nil
}
