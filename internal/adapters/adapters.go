// Package adapters defines the data contracts consumed by screens.
//
// Two implementations exist: local, which drives the SQLite repositories
// in-process, and ipc, which talks to the broker over HTTP. Consumers only
// see the interfaces below and do not know which one they were given.
package adapters

import (
	"context"
	"errors"

	"github.com/lingoplay/core/internal/entities"
)

// ExerciseDataAdapter serves exercises for the active user's language and
// difficulty. Loaders return nil without error when a topic has nothing
// to offer.
type ExerciseDataAdapter interface {
	LoadTopics(ctx context.Context, exerciseType entities.ExerciseType) ([]entities.Topic, error)
	LoadPairExercises(ctx context.Context, topicID uint) (*entities.PairExerciseData, error)
	LoadConversationExercises(ctx context.Context, topicID uint) (*entities.ConversationExerciseData, error)
	LoadTranslationExercises(ctx context.Context, topicID uint) (*entities.TranslationExerciseData, error)
	RecordAttempt(ctx context.Context, exerciseID uint, isCorrect bool) error
}

// UserSettingsDataAdapter manages the active user's preferences.
type UserSettingsDataAdapter interface {
	// LoadUserSettings creates the default user on an empty database.
	LoadUserSettings(ctx context.Context) (*entities.UserContext, error)
	SaveUserSettings(ctx context.Context, update SettingsUpdate) (*entities.UserContext, error)
	LoadReferenceData(ctx context.Context) (*ReferenceData, error)
}

// ProgressDataAdapter exposes the extra views the exercise screens use.
type ProgressDataAdapter interface {
	LoadExerciseTypes(ctx context.Context) ([]entities.ExerciseType, error)
	LoadTopicProgress(ctx context.Context, exerciseType entities.ExerciseType) ([]entities.TopicProgress, error)
	LoadFillInBlankExercises(ctx context.Context, topicID uint) (*entities.FillInBlankExerciseData, error)
	LoadMixedExercises(ctx context.Context, topicID uint, count int) ([]entities.ExerciseInfo, error)
	LoadStats(ctx context.Context) (*Stats, error)
}

// DataAdapter is everything a platform provides.
type DataAdapter interface {
	ExerciseDataAdapter
	UserSettingsDataAdapter
	ProgressDataAdapter
}

// SettingsUpdate is a partial update; nil fields are left unchanged.
type SettingsUpdate struct {
	Language   *string `json:"language,omitempty"`
	Difficulty *string `json:"difficulty,omitempty"`
}

var ErrEmptySetting = errors.New("setting value must not be empty")

// Validate rejects explicit empty values.
func (u SettingsUpdate) Validate() error {
	if u.Language != nil && *u.Language == "" {
		return ErrEmptySetting
	}
	if u.Difficulty != nil && *u.Difficulty == "" {
		return ErrEmptySetting
	}
	return nil
}

type ReferenceData struct {
	Languages    []entities.Language   `json:"languages"`
	Difficulties []entities.Difficulty `json:"difficulties"`
}

// Stats pairs live aggregates with counters carried over by migrations.
type Stats struct {
	UserID  uint                     `json:"user_id"`
	Current *entities.AggregateStats `json:"current"`
	Legacy  *entities.AggregateStats `json:"legacy"`
}

// DefaultMixedCount is used when a mixed request does not name a count.
const DefaultMixedCount = 10
