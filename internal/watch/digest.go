package watch

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// DigestFunc receives the current scout list on each digest tick
type DigestFunc func(scouts []Scout)

// Digester periodically lists active scouts on a cron schedule and hands
// the snapshot to a callback (the API server broadcasts it to dashboard
// clients).
type Digester struct {
	monitor  Monitor
	schedule cron.Schedule
	fn       DigestFunc
	stop     chan struct{}
}

// NewDigester parses the cron spec (standard 5-field format) and builds a
// digester for the given monitor.
func NewDigester(monitor Monitor, cronSpec string, fn DigestFunc) (*Digester, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	schedule, err := parser.Parse(cronSpec)
	if err != nil {
		return nil, err
	}

	return &Digester{
		monitor:  monitor,
		schedule: schedule,
		fn:       fn,
		stop:     make(chan struct{}),
	}, nil
}

// Run blocks, firing digests per the schedule until Stop is called
func (d *Digester) Run() {
	for {
		next := d.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-d.stop:
			timer.Stop()
			return
		case <-timer.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		scouts, err := d.monitor.ListScouts(ctx)
		cancel()
		if err != nil {
			log.Printf("[watch] scout digest failed: %v", err)
			continue
		}
		d.fn(scouts)
	}
}

// Stop terminates the digest loop
func (d *Digester) Stop() {
	close(d.stop)
}
