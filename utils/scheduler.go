package utils

import (
	"github.com/robfig/cron/v3"
)

// StartScheduler runs job on the given cron schedule until the returned scheduler is stopped.
func StartScheduler(schedule, name string, job func()) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() {
		Sugar.Debugw("scheduled job started", "job", name)
		job()
	}); err != nil {
		return nil, err
	}
	c.Start()
	Sugar.Infow("scheduled job registered", "job", name, "schedule", schedule)
	return c, nil
}
