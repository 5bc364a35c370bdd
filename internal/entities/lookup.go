package entities

import "time"

// Language, Difficulty and Topic are append-only lookup rows keyed by a
// unique, case-sensitive name.
type Language struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:100;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

type Difficulty struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Level     string    `gorm:"uniqueIndex;size:50;not null" json:"level"`
	CreatedAt time.Time `json:"-"`
}

type Topic struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:200;not null" json:"name"`
	CreatedAt time.Time `json:"-"`
}

func (Language) TableName() string {
	return "languages"
}

func (Difficulty) TableName() string {
	return "difficulties"
}

func (Topic) TableName() string {
	return "topics"
}

// LookupKind identifies one of the lookup tables handled by get-or-create.
type LookupKind string

const (
	LookupLanguage   LookupKind = "language"
	LookupTopic      LookupKind = "topic"
	LookupDifficulty LookupKind = "difficulty"
)
