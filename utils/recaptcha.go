package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrRecaptchaFailed = errors.New("reCAPTCHA verification failed")
	ErrRecaptchaAction = errors.New("reCAPTCHA action mismatch")
	ErrRecaptchaScore  = errors.New("reCAPTCHA score too low")
)

// Recaptcha verifies reCAPTCHA v3 tokens against Google's siteverify endpoint.
type Recaptcha struct {
	Secret    string
	MinScore  float64
	VerifyURL string
	Client    *http.Client
}

type siteverifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	Action     string   `json:"action"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// NewRecaptcha builds a verifier with a bounded HTTP client.
func NewRecaptcha(secret string, minScore float64, verifyURL string) *Recaptcha {
	return &Recaptcha{
		Secret:    secret,
		MinScore:  minScore,
		VerifyURL: verifyURL,
		Client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether a secret is configured.
func (r *Recaptcha) Enabled() bool {
	return r != nil && r.Secret != ""
}

// Verify checks token for the expected action. A disabled verifier always passes.
func (r *Recaptcha) Verify(ctx context.Context, token, action, remoteIP string) error {
	if !r.Enabled() {
		return nil
	}
	if strings.TrimSpace(token) == "" {
		return ErrRecaptchaFailed
	}

	form := url.Values{}
	form.Set("secret", r.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.VerifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.Client.Do(req)
	if err != nil {
		Sugar.Warnw("recaptcha request failed", "err", err)
		return ErrRecaptchaFailed
	}
	defer resp.Body.Close()

	var out siteverifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		Sugar.Warnw("recaptcha response undecodable", "status", resp.StatusCode, "err", err)
		return ErrRecaptchaFailed
	}
	if !out.Success {
		Sugar.Infow("recaptcha rejected", "codes", out.ErrorCodes)
		return ErrRecaptchaFailed
	}
	if action != "" && out.Action != action {
		Sugar.Infow("recaptcha action mismatch", "want", action, "got", out.Action)
		return ErrRecaptchaAction
	}
	if out.Score < r.MinScore {
		Sugar.Infow("recaptcha score below threshold", "score", out.Score, "min", r.MinScore)
		return ErrRecaptchaScore
	}
	return nil
}
