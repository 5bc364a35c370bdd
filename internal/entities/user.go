package entities

import "time"

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	LastActiveAt time.Time `gorm:"index" json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

// UserSetting is one key/value pair of a user's preferences.
type UserSetting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_setting_key;not null" json:"user_id"`
	Key       string    `gorm:"uniqueIndex:idx_user_setting_key;size:100;not null" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (UserSetting) TableName() string {
	return "user_settings"
}

// Known setting keys
const (
	SettingKeyLanguage   = "language"
	SettingKeyDifficulty = "difficulty"

	// Written by the migration adapter in place of dropped attempt rows
	SettingKeyLegacyTotalAttempts = "legacy_total_attempts"
	SettingKeyLegacyTotalCorrect  = "legacy_total_correct"
	SettingKeyLegacyLanguageStats = "legacy_language_stats"
	SettingKeyLegacyTopicStats    = "legacy_topic_stats"
	SettingKeyLastMigrationDate   = "last_migration_date"
)

const (
	DefaultLanguage   = "English"
	DefaultDifficulty = "Beginner"
)

type UserPreferences struct {
	Language   string `json:"language"`
	Difficulty string `json:"difficulty"`
}

// UserContext is the resolved active user with its well-known settings.
type UserContext struct {
	Username string          `json:"username"`
	UserID   uint            `json:"user_id"`
	Settings UserPreferences `json:"settings"`
}

// UserExerciseAttempt is append-only; rows are aggregated, never updated.
type UserExerciseAttempt struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"user_id"`
	ExerciseID uint      `gorm:"index;not null" json:"exercise_id"`
	IsCorrect  bool      `json:"is_correct"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
}

func (UserExerciseAttempt) TableName() string {
	return "user_exercise_attempts"
}
