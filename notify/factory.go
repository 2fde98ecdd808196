package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/segbon/segbon/config"
)

// NewDispatcherFromConfig wires the providers selected by configuration.
func NewDispatcherFromConfig(cfg config.AppConfig) (*Dispatcher, error) {
	d := &Dispatcher{}

	var onesignal *OneSignal
	if cfg.OneSignalAppID != "" && cfg.OneSignalAPIKey != "" {
		onesignal = NewOneSignal(cfg.OneSignalAppID, cfg.OneSignalAPIKey, cfg.OneSignalBaseURL)
		onesignal.FromName = cfg.MailFromName
		onesignal.FromAddr = cfg.MailFrom
		d.Push = onesignal
	}

	var provider EmailProvider
	switch strings.ToLower(cfg.MailProvider) {
	case "":
	case "resend":
		from := cfg.MailFrom
		if cfg.MailFromName != "" && from != "" {
			from = fmt.Sprintf("%s <%s>", cfg.MailFromName, cfg.MailFrom)
		}
		provider = NewResend(cfg.ResendAPIKey, cfg.ResendBaseURL, from)
	case "onesignal":
		if onesignal == nil {
			return nil, fmt.Errorf("mail provider onesignal requires OneSignal credentials")
		}
		provider = onesignal
	case "smtp":
		provider = &SMTP{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			FromName: cfg.MailFromName,
			TLS:      cfg.SMTPTLS,
		}
	default:
		return nil, fmt.Errorf("unknown mail provider %q", cfg.MailProvider)
	}
	if provider != nil {
		d.Mail = NewBatchSender(provider,
			cfg.MailBatchSize,
			time.Duration(cfg.MailBatchPauseMS)*time.Millisecond,
			time.Duration(cfg.MailRecipientPaceMS)*time.Millisecond,
		)
	}
	return d, nil
}
