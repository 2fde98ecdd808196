package notify

import (
	"context"
	"errors"
	"sync"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	fail map[string]bool
	// onSend runs after every recorded send
	onSend func(n int)
}

func (f *fakeMailer) SendEmail(_ context.Context, mail Email) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[mail.To] {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, mail)
	if f.onSend != nil {
		f.onSend(len(f.sent))
	}
	return nil
}

func (f *fakeMailer) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, m := range f.sent {
		out = append(out, m.To)
	}
	return out
}

type fakePush struct {
	calls []PushMessage
	err   error
}

func (f *fakePush) SendPush(_ context.Context, msg PushMessage) error {
	f.calls = append(f.calls, msg)
	return f.err
}
