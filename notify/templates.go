package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

var publicationEmail = template.Must(template.New("publication").Parse(`<!doctype html>
<html>
<body style="font-family:Arial,Helvetica,sans-serif;color:#222">
  <p>{{.AuthorName}} (@{{.AuthorUsername}}) just published:</p>
  <h2 style="margin:8px 0">{{.Title}}</h2>
  {{if .Description}}<div>{{.Description}}</div>{{end}}
  <p><a href="{{.URL}}">Read it on Segbon</a></p>
  <hr>
  <p style="font-size:12px;color:#888">You receive this email because you subscribed to {{.AuthorName}}.
  <a href="{{.UnsubscribeURL}}">Unsubscribe</a></p>
</body>
</html>`))

// Publication describes a newly enabled element, as announced to subscribers.
type Publication struct {
	AuthorName     string
	AuthorUsername string
	Title          string
	Description    template.HTML // already sanitized
	URL            string
	UnsubscribeURL string
}

// PushText is the fixed push message for a publication.
func (p Publication) PushText() string {
	return fmt.Sprintf("New publication from %s: %s", p.AuthorUsername, p.Title)
}

// Subject is the email subject line.
func (p Publication) Subject() string {
	return p.PushText()
}

// RenderEmail renders the HTML body.
func (p Publication) RenderEmail() (string, error) {
	var buf bytes.Buffer
	if err := publicationEmail.Execute(&buf, p); err != nil {
		return "", err
	}
	return buf.String(), nil
}
