package migration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/database/chats"
	"github.com/lingoplay/core/internal/database/progress"
	"github.com/lingoplay/core/internal/database/settings"
	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/entities"
)

// Snapshot is the backup serialised into the side store before the
// database file is replaced.
type Snapshot struct {
	ID          string                            `json:"id"`
	CreatedAt   time.Time                         `json:"created_at"`
	FromVersion int                               `json:"from_version"`
	ToVersion   int                               `json:"to_version"`
	Users       []entities.User                   `json:"users"`
	Settings    []entities.UserSetting            `json:"settings"`
	Chats       []entities.ChatSession            `json:"chats"`
	Stats       map[uint]*entities.AggregateStats `json:"stats"`
}

// takeSnapshot reads everything that must survive the replacement.
func takeSnapshot(db *database.Database, fromVersion, toVersion int, at time.Time) (*Snapshot, error) {
	allUsers, err := users.NewRepository(db.DB).ListUsers()
	if err != nil {
		return nil, err
	}
	allSettings, err := settings.NewRepository(db.DB).ListAll()
	if err != nil {
		return nil, err
	}
	allChats, err := chats.NewRepository(db.DB).ListAllWithMessages()
	if err != nil {
		return nil, err
	}

	progressRepo := progress.NewRepository(db.DB)
	stats := make(map[uint]*entities.AggregateStats, len(allUsers))
	for _, u := range allUsers {
		s, err := progressRepo.ComputeAggregateStats(u.ID)
		if err != nil {
			return nil, err
		}
		stats[u.ID] = s
	}

	return &Snapshot{
		ID:          uuid.NewString(),
		CreatedAt:   at.UTC(),
		FromVersion: fromVersion,
		ToVersion:   toVersion,
		Users:       allUsers,
		Settings:    allSettings,
		Chats:       allChats,
		Stats:       stats,
	}, nil
}

func (s *Snapshot) encode() (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode migration backup: %w", err)
	}
	return string(raw), nil
}

func decodeSnapshot(raw string) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("failed to decode migration backup: %w", err)
	}
	return &s, nil
}

// legacyStatsFor merges the attempts aggregated at backup time with any
// legacy counters the user already carried from an earlier migration.
// It only reads the snapshot, so a retried restore writes the same values.
func (s *Snapshot) legacyStatsFor(userID uint) (*entities.AggregateStats, error) {
	values := make(map[string]string)
	for _, row := range s.Settings {
		if row.UserID == userID {
			values[row.Key] = row.Value
		}
	}

	merged, err := progress.DecodeLegacyStats(values)
	if err != nil {
		return nil, err
	}
	if merged == nil {
		merged = entities.NewAggregateStats()
	}
	merged.Merge(s.Stats[userID])
	return merged, nil
}

// apply writes the snapshot into a freshly installed database. Every write
// is an upsert, so applying the same snapshot twice is harmless.
func (s *Snapshot) apply(db *database.Database) error {
	if err := users.NewRepository(db.DB).Restore(s.Users); err != nil {
		return err
	}
	if err := settings.NewRepository(db.DB).Restore(s.Settings); err != nil {
		return err
	}
	if err := chats.NewRepository(db.DB).Restore(s.Chats); err != nil {
		return err
	}

	progressRepo := progress.NewRepository(db.DB)
	for _, u := range s.Users {
		legacy, err := s.legacyStatsFor(u.ID)
		if err != nil {
			return err
		}
		if err := progressRepo.SaveLegacyStats(u.ID, legacy, s.CreatedAt); err != nil {
			return err
		}
	}
	return nil
}
