// Package progress records exercise attempts and aggregates them.
//
// Attempts are append-only. Aggregates are recomputed on every call; after
// a database replacement the previous totals survive only as legacy_*
// user settings, exposed through LegacyStats.
//
// # Usage
//
//	repo := progress.NewRepository(db)
//	_, err := repo.RecordAttempt(userID, exerciseID, true)
//	stats, err := repo.ComputeAggregateStats(userID)
package progress

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/lingoplay/core/internal/database/settings"
	"github.com/lingoplay/core/internal/entities"
)

// Repository handles attempt recording and aggregation.
type Repository struct {
	db       *gorm.DB
	settings *settings.Repository
	now      func() time.Time
}

// NewRepository creates a new progress repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, settings: settings.NewRepository(db), now: time.Now}
}

// RecordAttempt appends one attempt. Repeated attempts on the same
// exercise are all kept.
func (r *Repository) RecordAttempt(userID, exerciseID uint, isCorrect bool) (*entities.UserExerciseAttempt, error) {
	attempt := &entities.UserExerciseAttempt{
		UserID:     userID,
		ExerciseID: exerciseID,
		IsCorrect:  isCorrect,
		Timestamp:  r.now(),
	}
	if err := r.db.Create(attempt).Error; err != nil {
		return nil, entities.Unavailable("record attempt", err)
	}
	return attempt, nil
}

type groupedCounts struct {
	Name     string
	Attempts int64
	Correct  int64
}

const countColumns = "COUNT(*) AS attempts, COALESCE(SUM(CASE WHEN user_exercise_attempts.is_correct THEN 1 ELSE 0 END), 0) AS correct"

// ComputeAggregateStats totals a user's attempts overall, per language and
// per topic. Attempts on exercises that no longer exist only count toward
// the totals.
func (r *Repository) ComputeAggregateStats(userID uint) (*entities.AggregateStats, error) {
	stats := entities.NewAggregateStats()

	var totals groupedCounts
	err := r.db.Model(&entities.UserExerciseAttempt{}).
		Select(countColumns).
		Where("user_id = ?", userID).
		Scan(&totals).Error
	if err != nil {
		return nil, entities.Unavailable("compute total stats", err)
	}
	stats.TotalAttempts = totals.Attempts
	stats.TotalCorrect = totals.Correct

	perLanguage, err := r.countsBy(userID, "languages", "languages.name", "JOIN languages ON languages.id = exercises_info.language_id")
	if err != nil {
		return nil, err
	}
	stats.PerLanguage = perLanguage

	perTopic, err := r.countsBy(userID, "topics", "topics.name", "JOIN topics ON topics.id = exercises_info.topic_id")
	if err != nil {
		return nil, err
	}
	stats.PerTopic = perTopic

	return stats, nil
}

func (r *Repository) countsBy(userID uint, label, column, join string) (map[string]entities.AttemptCounts, error) {
	var rows []groupedCounts
	err := r.db.Model(&entities.UserExerciseAttempt{}).
		Select(column+" AS name, "+countColumns).
		Joins("JOIN exercises_info ON exercises_info.id = user_exercise_attempts.exercise_id").
		Joins(join).
		Where("user_exercise_attempts.user_id = ?", userID).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, entities.Unavailable("compute stats per "+label, err)
	}

	counts := make(map[string]entities.AttemptCounts, len(rows))
	for _, row := range rows {
		counts[row.Name] = entities.AttemptCounts{Attempts: row.Attempts, Correct: row.Correct}
	}
	return counts, nil
}

// CountAttempts returns the number of attempt rows stored for a user.
func (r *Repository) CountAttempts(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&entities.UserExerciseAttempt{}).Where("user_id = ?", userID).Count(&count).Error
	return count, entities.Unavailable("count attempts", err)
}

// LegacyStats decodes the legacy_* settings left by a migration. It
// returns nil when the user was never migrated.
func (r *Repository) LegacyStats(userID uint) (*entities.AggregateStats, error) {
	values, err := r.settings.GetSettings(userID)
	if err != nil {
		return nil, err
	}
	return DecodeLegacyStats(values)
}

// DecodeLegacyStats builds stats from a user's key/value settings, or nil
// when no legacy key is present.
func DecodeLegacyStats(values map[string]string) (*entities.AggregateStats, error) {
	stats := entities.NewAggregateStats()
	found := false

	if raw, ok := values[entities.SettingKeyLegacyTotalAttempts]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", entities.SettingKeyLegacyTotalAttempts, raw, err)
		}
		stats.TotalAttempts = n
		found = true
	}
	if raw, ok := values[entities.SettingKeyLegacyTotalCorrect]; ok {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", entities.SettingKeyLegacyTotalCorrect, raw, err)
		}
		stats.TotalCorrect = n
		found = true
	}
	if raw, ok := values[entities.SettingKeyLegacyLanguageStats]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &stats.PerLanguage); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", entities.SettingKeyLegacyLanguageStats, err)
		}
		found = true
	}
	if raw, ok := values[entities.SettingKeyLegacyTopicStats]; ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &stats.PerTopic); err != nil {
			return nil, fmt.Errorf("invalid %s: %w", entities.SettingKeyLegacyTopicStats, err)
		}
		found = true
	}

	if !found {
		return nil, nil
	}
	return stats, nil
}

// SaveLegacyStats overwrites the user's legacy_* settings with stats and
// stamps last_migration_date with at.
func (r *Repository) SaveLegacyStats(userID uint, stats *entities.AggregateStats, at time.Time) error {
	stored := entities.NewAggregateStats()
	stored.Merge(stats)

	languages, err := json.Marshal(stored.PerLanguage)
	if err != nil {
		return fmt.Errorf("failed to encode legacy language stats: %w", err)
	}
	topics, err := json.Marshal(stored.PerTopic)
	if err != nil {
		return fmt.Errorf("failed to encode legacy topic stats: %w", err)
	}

	values := []struct{ key, value string }{
		{entities.SettingKeyLegacyTotalAttempts, strconv.FormatInt(stored.TotalAttempts, 10)},
		{entities.SettingKeyLegacyTotalCorrect, strconv.FormatInt(stored.TotalCorrect, 10)},
		{entities.SettingKeyLegacyLanguageStats, string(languages)},
		{entities.SettingKeyLegacyTopicStats, string(topics)},
		{entities.SettingKeyLastMigrationDate, at.UTC().Format(time.RFC3339)},
	}
	for _, v := range values {
		if err := r.settings.SaveSetting(userID, v.key, v.value); err != nil {
			return err
		}
	}
	return nil
}
