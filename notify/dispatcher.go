package notify

import (
	"context"
	"strings"

	"github.com/samber/lo"

	"github.com/segbon/segbon/utils"
)

// Recipient is an active subscriber as seen by the dispatcher.
type Recipient struct {
	Email    string
	PlayerID string
}

// Report summarizes a fan-out. It never turns into an error for the caller.
type Report struct {
	Notified       bool     `json:"notified"`
	PushRecipients int      `json:"push_recipients"`
	PushError      string   `json:"push_error,omitempty"`
	Emails         []Result `json:"emails"`
}

// Dispatcher fans a publication out to push and email. Either channel may be nil.
type Dispatcher struct {
	Push PushProvider
	Mail *BatchSender
}

// PublicationEnabled sends one push call with every player id, then the email batch.
func (d *Dispatcher) PublicationEnabled(ctx context.Context, pub Publication, recipients []Recipient) Report {
	report := Report{Emails: []Result{}}
	if d == nil {
		return report
	}

	playerIDs := lo.Uniq(lo.FilterMap(recipients, func(r Recipient, _ int) (string, bool) {
		id := strings.TrimSpace(r.PlayerID)
		return id, id != ""
	}))
	if d.Push != nil && len(playerIDs) > 0 {
		report.PushRecipients = len(playerIDs)
		err := d.Push.SendPush(ctx, PushMessage{
			PlayerIDs: playerIDs,
			Heading:   "Segbon",
			Content:   pub.PushText(),
			URL:       pub.URL,
		})
		if err != nil {
			utils.Sugar.Errorw("push fan-out failed", "author", pub.AuthorUsername, "recipients", len(playerIDs), "err", err)
			report.PushError = err.Error()
		} else {
			report.Notified = true
		}
	}

	if d.Mail != nil && d.Mail.Provider != nil {
		emails := lo.Map(recipients, func(r Recipient, _ int) string { return r.Email })
		html, err := pub.RenderEmail()
		if err != nil {
			utils.Sugar.Errorw("render publication email failed", "err", err)
			return report
		}
		report.Emails = d.Mail.Send(ctx, emails, pub.Subject(), html)
		failed := lo.CountBy(report.Emails, func(r Result) bool { return !r.Sent })
		if failed > 0 {
			utils.Sugar.Warnw("email fan-out incomplete", "author", pub.AuthorUsername, "failed", failed, "total", len(report.Emails))
		}
		if len(report.Emails) > failed {
			report.Notified = true
		}
	}
	return report
}
