package main

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// StartPublishScheduler starts an optional scheduler that publishes a
// summary of the most recently modified dataset on a cron schedule.
// The schedule is a standard 5-field cron expression (minute hour
// day-of-month month day-of-week). Examples: "0 9 * * 1" (Mondays 9am),
// "0 17 * * 5" (Fridays 5pm).
func StartPublishScheduler(cfg Config, store *DatasetStore, loader *Loader, publisher *Publisher) {
	schedule := strings.TrimSpace(cfg.PublishSchedule)
	if schedule == "" {
		log.Println("Scheduled publishing disabled (publish_schedule not set)")
		return
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid publish_schedule '%s': %v; scheduled publishing disabled", schedule, err)
		return
	}
	log.Printf("Scheduled publishing enabled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now().In(cfg.Location)
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next scheduled publish at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			if err := publishNewestDataset(cfg, store, loader, publisher); err != nil {
				log.Printf("Scheduled publish error: %v", err)
			}
		}
	}()
}

// publishNewestDataset loads the newest CSV in the datasets directory,
// infers its boundary and publishes the resulting summary.
func publishNewestDataset(cfg Config, store *DatasetStore, loader *Loader, publisher *Publisher) error {
	name, err := store.Newest()
	if err != nil {
		return err
	}
	f, err := store.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	ts, err := loader.Load(name, f)
	if err != nil {
		return fmt.Errorf("loading %s: %w", name, err)
	}
	for _, w := range ts.Warnings {
		log.Printf("scheduled publish dataset=%s warning: %v", name, w)
	}

	sess := NewSession(ts, InferBoundary(ts, FallbackFor(name, time.Now().In(cfg.Location))))
	result, err := publisher.Publish(sess, sess.Metrics(cfg.MetricsOptions()))
	if err != nil {
		return err
	}
	log.Printf("Scheduled publish complete dataset=%s file=%s", name, result.FilePath)
	return nil
}
