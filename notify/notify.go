// Package notify delivers publication announcements to subscribers by push and email.
package notify

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// ErrNotConfigured is returned by providers that lack credentials.
var ErrNotConfigured = errors.New("notification provider not configured")

// PushMessage is one push notification addressed to many devices.
type PushMessage struct {
	PlayerIDs []string
	Heading   string
	Content   string
	URL       string
}

// Email is a single outbound message.
type Email struct {
	To      string
	Subject string
	HTML    string
}

// PushProvider sends push notifications.
type PushProvider interface {
	SendPush(ctx context.Context, msg PushMessage) error
}

// EmailProvider sends one email.
type EmailProvider interface {
	SendEmail(ctx context.Context, mail Email) error
}

// Result records the outcome of one email send.
type Result struct {
	Email string `json:"email"`
	Sent  bool   `json:"sent"`
	Error string `json:"error,omitempty"`
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 10 * time.Second}
}
