package entities

import (
	"fmt"
	"time"
)

type ExerciseType string

const (
	ExerciseTypePairs        ExerciseType = "pairs"
	ExerciseTypeConversation ExerciseType = "conversation"
	ExerciseTypeTranslation  ExerciseType = "translation"
	ExerciseTypeChatbot      ExerciseType = "chatbot" // metadata only, no payload table
)

// AllExerciseTypes lists every stored exercise type.
var AllExerciseTypes = []ExerciseType{
	ExerciseTypePairs,
	ExerciseTypeConversation,
	ExerciseTypeTranslation,
	ExerciseTypeChatbot,
}

func (t ExerciseType) Valid() bool {
	for _, known := range AllExerciseTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseExerciseType converts a raw string into an ExerciseType.
// The empty string is accepted and means "any type".
func ParseExerciseType(s string) (ExerciseType, error) {
	t := ExerciseType(s)
	if s == "" || t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown exercise type %q", s)
}

// ExerciseInfo is the metadata row shared by every exercise kind. The
// payload lives in exactly one of the per-type tables, selected by
// ExerciseType.
type ExerciseInfo struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"uniqueIndex;size:255;not null" json:"name"`
	TopicID      uint         `gorm:"index" json:"topic_id"`
	DifficultyID uint         `gorm:"index" json:"difficulty_id"`
	LanguageID   uint         `gorm:"index" json:"language_id"`
	ExerciseType ExerciseType `gorm:"index;size:20" json:"exercise_type"`
	Topic        Topic        `gorm:"foreignKey:TopicID" json:"-"`
	Difficulty   Difficulty   `gorm:"foreignKey:DifficultyID" json:"-"`
	Language     Language     `gorm:"foreignKey:LanguageID" json:"-"`
	CreatedAt    time.Time    `json:"-"`

	// ResolvedType is derived at read time from the payload tables and may
	// differ from a stale ExerciseType column.
	ResolvedType ExerciseType `gorm:"-" json:"resolved_type,omitempty"`
}

func (ExerciseInfo) TableName() string {
	return "exercises_info"
}

// PairExercise is one word/phrase pair of a matching round.
type PairExercise struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	ExerciseID       uint   `gorm:"index" json:"exercise_id"`
	Language1        string `gorm:"column:language_1;size:100" json:"language_1"`
	Language2        string `gorm:"column:language_2;size:100" json:"language_2"`
	Language1Content string `gorm:"column:language_1_content;type:text" json:"language_1_content"`
	Language2Content string `gorm:"column:language_2_content;type:text" json:"language_2_content"`
}

func (PairExercise) TableName() string {
	return "pair_exercises"
}

// ConversationTurn is one line of a multi-turn conversation exercise.
type ConversationTurn struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExerciseID uint   `gorm:"index" json:"exercise_id"`
	Order      int    `gorm:"column:conversation_order" json:"order"`
	Speaker    string `gorm:"size:100" json:"speaker"`
	Message    string `gorm:"type:text" json:"message"`
}

func (ConversationTurn) TableName() string {
	return "conversation_exercises"
}

type ConversationSummary struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	ExerciseID uint   `gorm:"uniqueIndex" json:"exercise_id"`
	Summary    string `gorm:"type:text" json:"summary"`
}

func (ConversationSummary) TableName() string {
	return "conversation_summaries"
}

// TranslationExercise is one sentence pair of a translation exercise.
type TranslationExercise struct {
	ID               uint   `gorm:"primaryKey" json:"id"`
	ExerciseID       uint   `gorm:"index" json:"exercise_id"`
	Language1        string `gorm:"column:language_1;size:100" json:"language_1"`
	Language2        string `gorm:"column:language_2;size:100" json:"language_2"`
	Language1Content string `gorm:"column:language_1_content;type:text" json:"language_1_content"`
	Language2Content string `gorm:"column:language_2_content;type:text" json:"language_2_content"`
}

func (TranslationExercise) TableName() string {
	return "translation_exercises"
}
