package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/entities"
)

// UserLister lists every user of the exercise database.
type UserLister interface {
	ListUsers() ([]entities.User, error)
}

// StatsComputer aggregates a user's attempts.
type StatsComputer interface {
	ComputeAggregateStats(userID uint) (*entities.AggregateStats, error)
}

// SnapshotStore is where stats snapshots are kept. It must not be the
// exercise database.
type SnapshotStore interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
}

const statsSnapshotPrefix = "stats_snapshot:"

// StatsSnapshot is the last aggregate computed for a user.
type StatsSnapshot struct {
	UserID  uint                     `json:"user_id"`
	TakenAt time.Time                `json:"taken_at"`
	Stats   *entities.AggregateStats `json:"stats"`
}

func StatsSnapshotKey(userID uint) string {
	return statsSnapshotPrefix + strconv.FormatUint(uint64(userID), 10)
}

// LoadStatsSnapshot returns the stored snapshot for userID, or nil when
// none was taken yet.
func LoadStatsSnapshot(store SnapshotStore, userID uint) (*StatsSnapshot, error) {
	raw, ok, err := store.Get(StatsSnapshotKey(userID))
	if err != nil || !ok {
		return nil, err
	}
	var snapshot StatsSnapshot
	if err := json.Unmarshal([]byte(raw), &snapshot); err != nil {
		return nil, fmt.Errorf("decode stats snapshot: %w", err)
	}
	return &snapshot, nil
}

// SnapshotStatsTask stores every user's aggregate stats in the side store.
type SnapshotStatsTask struct{}

func (t SnapshotStatsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "snapshot_stats",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// StatsSnapshotter writes the snapshots. It is shared by the queue
// processor and the CLI.
type StatsSnapshotter struct {
	users UserLister
	stats StatsComputer
	store SnapshotStore
	now   func() time.Time
	log   logrus.FieldLogger
}

func NewStatsSnapshotter(users UserLister, stats StatsComputer, store SnapshotStore, log logrus.FieldLogger) *StatsSnapshotter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &StatsSnapshotter{users: users, stats: stats, store: store, now: time.Now, log: log}
}

// Run snapshots every user and returns how many were written.
func (s *StatsSnapshotter) Run(ctx context.Context) (int, error) {
	users, err := s.users.ListUsers()
	if err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}

	takenAt := s.now().UTC()
	written := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		stats, err := s.stats.ComputeAggregateStats(u.ID)
		if err != nil {
			return written, fmt.Errorf("compute stats for user %d: %w", u.ID, err)
		}
		raw, err := json.Marshal(StatsSnapshot{UserID: u.ID, TakenAt: takenAt, Stats: stats})
		if err != nil {
			return written, err
		}
		if err := s.store.Set(StatsSnapshotKey(u.ID), string(raw)); err != nil {
			return written, fmt.Errorf("store stats snapshot for user %d: %w", u.ID, err)
		}
		written++
	}

	s.log.WithField("users", written).Info("stats snapshot written")
	return written, nil
}

func SnapshotStatsProcessor(snapshotter *StatsSnapshotter) backlite.QueueProcessor[SnapshotStatsTask] {
	return func(ctx context.Context, task SnapshotStatsTask) error {
		if snapshotter == nil {
			return fmt.Errorf("stats snapshotter not configured")
		}
		_, err := snapshotter.Run(ctx)
		return err
	}
}

func NewSnapshotStatsQueue(snapshotter *StatsSnapshotter) backlite.Queue {
	return backlite.NewQueue(SnapshotStatsProcessor(snapshotter))
}

// EnqueueSnapshot queues one snapshot run and returns its id.
func (c *Client) EnqueueSnapshot() (string, error) {
	ids, err := c.Add(SnapshotStatsTask{}).Save()
	if err != nil {
		return "", fmt.Errorf("enqueue stats snapshot: %w", err)
	}
	return ids[0], nil
}
