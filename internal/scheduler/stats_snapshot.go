// Package scheduler runs periodic jobs on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule checks a standard five-field cron expression.
func ValidateCronSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// GetCronDescription returns a human-readable description of a cron schedule
func GetCronDescription(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "every hour"
	case "0 */6 * * *":
		return "every 6 hours"
	case "0 0 * * *":
		return "daily at midnight"
	case "0 3 * * *":
		return "daily at 03:00"
	default:
		return "custom schedule: " + schedule
	}
}

// SnapshotJob takes one stats snapshot. The task queue or the snapshotter
// itself can serve.
type SnapshotJob func(ctx context.Context) error

// StatsSnapshotScheduler periodically snapshots user stats into the side
// store.
type StatsSnapshotScheduler struct {
	schedule string
	job      SnapshotJob
	log      logrus.FieldLogger

	cron           *cron.Cron
	entryID        cron.EntryID
	mu             sync.RWMutex
	isRunning      bool
	isSnapshotting bool
}

func NewStatsSnapshotScheduler(schedule string, job SnapshotJob, log logrus.FieldLogger) *StatsSnapshotScheduler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StatsSnapshotScheduler{
		schedule: schedule,
		job:      job,
		log:      log.WithField("component", "scheduler"),
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start schedules the job. It stops by itself when ctx is cancelled.
func (s *StatsSnapshotScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.run(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule stats snapshot: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	s.log.WithFields(logrus.Fields{
		"schedule": s.schedule,
		"next_run": s.cron.Entry(entryID).Next,
	}).Infof("stats snapshot scheduled %s", GetCronDescription(s.schedule))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (s *StatsSnapshotScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)

	s.log.Info("stats snapshot scheduler stopped")
}

// RunNow triggers an immediate snapshot and waits for it.
func (s *StatsSnapshotScheduler) RunNow(ctx context.Context) {
	s.run(ctx)
}

func (s *StatsSnapshotScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRunTime returns when the next snapshot will occur
func (s *StatsSnapshotScheduler) GetNextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *StatsSnapshotScheduler) run(ctx context.Context) {
	s.mu.Lock()
	if s.isSnapshotting {
		s.mu.Unlock()
		s.log.Debug("stats snapshot skipped, previous run still active")
		return
	}
	s.isSnapshotting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSnapshotting = false
		s.mu.Unlock()
	}()

	if err := s.job(ctx); err != nil {
		s.log.WithError(err).Error("stats snapshot failed")
	}
}
