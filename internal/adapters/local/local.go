// Package local implements the data adapters on top of the in-process
// SQLite repositories.
package local

import (
	"context"

	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/database/exercises"
	"github.com/lingoplay/core/internal/database/progress"
	"github.com/lingoplay/core/internal/database/settings"
	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/entities"
)

// DefaultUserName names the user created on an empty database.
const DefaultUserName = "default"

type Adapter struct {
	db              *database.Database
	defaultUserName string
}

type Option func(*Adapter)

func WithDefaultUserName(name string) Option {
	return func(a *Adapter) {
		if name != "" {
			a.defaultUserName = name
		}
	}
}

// New wraps an open database. The adapter does not own the handle.
func New(db *database.Database, opts ...Option) *Adapter {
	a := &Adapter{db: db, defaultUserName: DefaultUserName}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type repos struct {
	db        *database.Database
	exercises *exercises.Repository
	settings  *settings.Repository
	users     *users.Repository
	progress  *progress.Repository
}

// repos binds fresh repositories to ctx.
func (a *Adapter) repos(ctx context.Context) (repos, error) {
	if err := ctx.Err(); err != nil {
		return repos{}, err
	}
	tx := a.db.DB.WithContext(ctx)
	return repos{
		db:        &database.Database{DB: tx},
		exercises: exercises.NewRepository(tx),
		settings:  settings.NewRepository(tx),
		users:     users.NewRepository(tx),
		progress:  progress.NewRepository(tx),
	}, nil
}

// activeUser resolves the most recently active user, creating the default
// user when the database has none.
func (a *Adapter) activeUser(r repos) (*entities.UserContext, error) {
	uc, err := r.settings.GetUserContext()
	if err != nil || uc != nil {
		return uc, err
	}

	user, err := r.users.GetOrCreateUser(a.defaultUserName)
	if err != nil {
		return nil, err
	}
	return r.settings.GetUserContextFor(user.ID)
}

func (a *Adapter) begin(ctx context.Context) (repos, *entities.UserContext, error) {
	r, err := a.repos(ctx)
	if err != nil {
		return repos{}, nil, err
	}
	uc, err := a.activeUser(r)
	if err != nil {
		return repos{}, nil, err
	}
	return r, uc, nil
}

func (a *Adapter) pick(r repos, uc *entities.UserContext, topicID uint, t entities.ExerciseType) (*entities.ExerciseInfo, error) {
	return r.exercises.GetRandomExerciseForTopic(topicID, uc.Settings.Language, uc.Settings.Difficulty, t, &uc.UserID)
}

func (a *Adapter) LoadTopics(ctx context.Context, exerciseType entities.ExerciseType) ([]entities.Topic, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	return r.exercises.ListTopics(uc.Settings.Language, uc.Settings.Difficulty, exerciseType)
}

func (a *Adapter) LoadPairExercises(ctx context.Context, topicID uint) (*entities.PairExerciseData, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	info, err := a.pick(r, uc, topicID, entities.ExerciseTypePairs)
	if err != nil || info == nil {
		return nil, err
	}
	return r.exercises.GetPairExerciseWithData(info.ID)
}

func (a *Adapter) LoadConversationExercises(ctx context.Context, topicID uint) (*entities.ConversationExerciseData, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	info, err := a.pick(r, uc, topicID, entities.ExerciseTypeConversation)
	if err != nil || info == nil {
		return nil, err
	}
	return r.exercises.GetConversationExerciseWithData(info.ID)
}

func (a *Adapter) LoadTranslationExercises(ctx context.Context, topicID uint) (*entities.TranslationExerciseData, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	info, err := a.pick(r, uc, topicID, entities.ExerciseTypeTranslation)
	if err != nil || info == nil {
		return nil, err
	}
	return r.exercises.GetTranslationExerciseWithData(info.ID)
}

func (a *Adapter) LoadFillInBlankExercises(ctx context.Context, topicID uint) (*entities.FillInBlankExerciseData, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	info, err := a.pick(r, uc, topicID, entities.ExerciseTypeTranslation)
	if err != nil || info == nil {
		return nil, err
	}
	return r.exercises.GetFillInBlankExerciseWithData(info.ID)
}

func (a *Adapter) LoadMixedExercises(ctx context.Context, topicID uint, count int) ([]entities.ExerciseInfo, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	return r.exercises.GetRandomMixedExercisesForTopic(topicID, count, uc.Settings.Language, uc.Settings.Difficulty, &uc.UserID)
}

func (a *Adapter) LoadExerciseTypes(ctx context.Context) ([]entities.ExerciseType, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	return r.exercises.ListExerciseTypes(uc.Settings.Language, uc.Settings.Difficulty)
}

func (a *Adapter) LoadTopicProgress(ctx context.Context, exerciseType entities.ExerciseType) ([]entities.TopicProgress, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	return r.exercises.ListTopicsWithProgress(uc.UserID, exerciseType, uc.Settings.Language, uc.Settings.Difficulty)
}

// RecordAttempt stores the outcome for the active user.
func (a *Adapter) RecordAttempt(ctx context.Context, exerciseID uint, isCorrect bool) error {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return err
	}
	_, err = r.progress.RecordAttempt(uc.UserID, exerciseID, isCorrect)
	return err
}

func (a *Adapter) LoadStats(ctx context.Context) (*adapters.Stats, error) {
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}
	current, err := r.progress.ComputeAggregateStats(uc.UserID)
	if err != nil {
		return nil, err
	}
	legacy, err := r.progress.LegacyStats(uc.UserID)
	if err != nil {
		return nil, err
	}
	return &adapters.Stats{UserID: uc.UserID, Current: current, Legacy: legacy}, nil
}

func (a *Adapter) LoadUserSettings(ctx context.Context) (*entities.UserContext, error) {
	_, uc, err := a.begin(ctx)
	return uc, err
}

// SaveUserSettings applies the non-nil fields and marks the user active.
func (a *Adapter) SaveUserSettings(ctx context.Context, update adapters.SettingsUpdate) (*entities.UserContext, error) {
	if err := update.Validate(); err != nil {
		return nil, err
	}
	r, uc, err := a.begin(ctx)
	if err != nil {
		return nil, err
	}

	if update.Language != nil {
		if err := r.settings.SaveSetting(uc.UserID, entities.SettingKeyLanguage, *update.Language); err != nil {
			return nil, err
		}
	}
	if update.Difficulty != nil {
		if err := r.settings.SaveSetting(uc.UserID, entities.SettingKeyDifficulty, *update.Difficulty); err != nil {
			return nil, err
		}
	}
	if err := r.users.Touch(uc.UserID); err != nil {
		return nil, err
	}

	return r.settings.GetUserContextFor(uc.UserID)
}

func (a *Adapter) LoadReferenceData(ctx context.Context) (*adapters.ReferenceData, error) {
	r, err := a.repos(ctx)
	if err != nil {
		return nil, err
	}
	languages, err := r.db.ListLanguages()
	if err != nil {
		return nil, err
	}
	difficulties, err := r.db.ListDifficulties()
	if err != nil {
		return nil, err
	}
	return &adapters.ReferenceData{Languages: languages, Difficulties: difficulties}, nil
}
