package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePublication() Publication {
	return Publication{
		AuthorName:     "Ada Lovelace",
		AuthorUsername: "ada",
		Title:          "Engines & Notes",
		Description:    "<p>first</p>",
		URL:            "https://segbon.example/segbopub/tok",
		UnsubscribeURL: "https://segbon.example/segbo/ada",
	}
}

func TestPublicationText(t *testing.T) {
	pub := samplePublication()
	assert.Equal(t, "New publication from ada: Engines & Notes", pub.PushText())
	assert.Equal(t, pub.PushText(), pub.Subject())

	html, err := pub.RenderEmail()
	require.NoError(t, err)
	assert.Contains(t, html, "Engines &amp; Notes")
	assert.Contains(t, html, "<p>first</p>")
	assert.Contains(t, html, `href="https://segbon.example/segbopub/tok"`)
}

func TestDispatcherSinglePushCall(t *testing.T) {
	push := &fakePush{}
	mailer := &fakeMailer{}
	d := &Dispatcher{Push: push, Mail: NewBatchSender(mailer, 50, 0, 0)}

	report := d.PublicationEnabled(context.Background(), samplePublication(), []Recipient{
		{Email: "a@example.com", PlayerID: "p1"},
		{Email: "b@example.com"},
		{Email: "c@example.com", PlayerID: "p2"},
		{Email: "d@example.com", PlayerID: "p1"},
	})

	require.Len(t, push.calls, 1)
	assert.Equal(t, []string{"p1", "p2"}, push.calls[0].PlayerIDs)
	assert.Equal(t, "New publication from ada: Engines & Notes", push.calls[0].Content)
	assert.Equal(t, "https://segbon.example/segbopub/tok", push.calls[0].URL)

	assert.True(t, report.Notified)
	assert.Equal(t, 2, report.PushRecipients)
	assert.Len(t, report.Emails, 4)
	assert.ElementsMatch(t, []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}, mailer.recipients())
	assert.True(t, strings.HasPrefix(mailer.sent[0].Subject, "New publication from ada"))
}

func TestDispatcherSkipsPushWithoutPlayers(t *testing.T) {
	push := &fakePush{}
	d := &Dispatcher{Push: push}

	report := d.PublicationEnabled(context.Background(), samplePublication(), []Recipient{{Email: "a@example.com"}})

	assert.Empty(t, push.calls)
	assert.False(t, report.Notified)
	assert.Empty(t, report.Emails)
}

func TestDispatcherReportsPushFailure(t *testing.T) {
	push := &fakePush{err: errors.New("onesignal down")}
	mailer := &fakeMailer{}
	d := &Dispatcher{Push: push, Mail: NewBatchSender(mailer, 50, 0, 0)}

	report := d.PublicationEnabled(context.Background(), samplePublication(), []Recipient{{Email: "a@example.com", PlayerID: "p1"}})

	assert.Equal(t, "onesignal down", report.PushError)
	assert.True(t, report.Notified, "email still went out")
	assert.Len(t, mailer.recipients(), 1)
}

func TestNilDispatcher(t *testing.T) {
	var d *Dispatcher
	report := d.PublicationEnabled(context.Background(), samplePublication(), []Recipient{{Email: "a@example.com"}})
	assert.False(t, report.Notified)
}
