package notify

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/segbon/segbon/utils"
)

const (
	// DefaultBatchSize is the number of recipients handled per batch.
	DefaultBatchSize = 50
	// pacingThreshold: batches larger than this are sent one recipient per Pace.
	pacingThreshold = 10
)

// BatchSender delivers the same email to many recipients without tripping provider rate limits.
type BatchSender struct {
	Provider  EmailProvider
	BatchSize int
	Pause     time.Duration // between batches
	Pace      time.Duration // between recipients of a large batch
}

// NewBatchSender returns a sender with defaults for zero values.
func NewBatchSender(p EmailProvider, batchSize int, pause, pace time.Duration) *BatchSender {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &BatchSender{Provider: p, BatchSize: batchSize, Pause: pause, Pace: pace}
}

// Send emails every recipient once. A failed send is recorded and the batch goes on;
// when ctx ends, the remaining recipients are reported as failed.
func (b *BatchSender) Send(ctx context.Context, recipients []string, subject, html string) []Result {
	recipients = lo.Uniq(lo.FilterMap(recipients, func(r string, _ int) (string, bool) {
		r = strings.TrimSpace(r)
		return r, r != ""
	}))
	results := make([]Result, 0, len(recipients))
	if len(recipients) == 0 {
		return results
	}

	size := b.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	batches := lo.Chunk(recipients, size)
	for i, batch := range batches {
		if i > 0 && b.Pause > 0 {
			if err := sleep(ctx, b.Pause); err != nil {
				return appendFailed(results, lo.Flatten(batches[i:]), err)
			}
		}

		var limiter *rate.Limiter
		if len(batch) > pacingThreshold && b.Pace > 0 {
			limiter = rate.NewLimiter(rate.Every(b.Pace), 1)
		}
		for j, to := range batch {
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					results = appendFailed(results, batch[j:], err)
					return appendFailed(results, lo.Flatten(batches[i+1:]), err)
				}
			} else if err := ctx.Err(); err != nil {
				results = appendFailed(results, batch[j:], err)
				return appendFailed(results, lo.Flatten(batches[i+1:]), err)
			}

			err := b.Provider.SendEmail(ctx, Email{To: to, Subject: subject, HTML: html})
			if err != nil {
				utils.Sugar.Warnw("email send failed", "to", to, "err", err)
				results = append(results, Result{Email: to, Error: err.Error()})
				continue
			}
			results = append(results, Result{Email: to, Sent: true})
		}
	}
	return results
}

func appendFailed(results []Result, rest []string, err error) []Result {
	for _, to := range rest {
		results = append(results, Result{Email: to, Error: err.Error()})
	}
	return results
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
