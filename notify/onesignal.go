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

// OneSignal talks to the OneSignal REST API. It serves both push and transactional email.
type OneSignal struct {
	AppID    string
	APIKey   string
	BaseURL  string
	FromName string
	FromAddr string
	Client   *http.Client
}

// NewOneSignal builds a client; baseURL defaults to the public API.
func NewOneSignal(appID, apiKey, baseURL string) *OneSignal {
	if baseURL == "" {
		baseURL = "https://onesignal.com/api/v1"
	}
	return &OneSignal{
		AppID:   appID,
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(),
	}
}

type oneSignalResponse struct {
	ID         string          `json:"id"`
	Recipients int             `json:"recipients"`
	Errors     json.RawMessage `json:"errors"`
}

// SendPush targets the given player ids with a single API call.
func (o *OneSignal) SendPush(ctx context.Context, msg PushMessage) error {
	if o.AppID == "" || o.APIKey == "" {
		return ErrNotConfigured
	}
	payload := map[string]interface{}{
		"app_id":             o.AppID,
		"include_player_ids": msg.PlayerIDs,
		"headings":           map[string]string{"en": msg.Heading},
		"contents":           map[string]string{"en": msg.Content},
	}
	if msg.URL != "" {
		payload["url"] = msg.URL
	}
	return o.post(ctx, payload)
}

// SendEmail sends a transactional email through OneSignal's email channel.
func (o *OneSignal) SendEmail(ctx context.Context, mail Email) error {
	if o.AppID == "" || o.APIKey == "" {
		return ErrNotConfigured
	}
	payload := map[string]interface{}{
		"app_id":               o.AppID,
		"include_email_tokens": []string{mail.To},
		"email_subject":        mail.Subject,
		"email_body":           mail.HTML,
	}
	if o.FromName != "" {
		payload["email_from_name"] = o.FromName
	}
	if o.FromAddr != "" {
		payload["email_from_address"] = o.FromAddr
	}
	return o.post(ctx, payload)
}

func (o *OneSignal) post(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("onesignal: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/notifications", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("onesignal: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Basic "+o.APIKey)

	resp, err := o.Client.Do(req)
	if err != nil {
		return fmt.Errorf("onesignal: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("onesignal: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out oneSignalResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("onesignal: decode response: %w", err)
	}
	// 200 without an id means no notification was created
	if out.ID == "" {
		return fmt.Errorf("onesignal: notification rejected: %s", strings.TrimSpace(string(out.Errors)))
	}
	return nil
}
