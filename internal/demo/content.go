// Package demo holds the sample exercise content used to build development
// bundles, and the read-only switch the broker uses in demo builds.
package demo

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/entities"
)

// Exercise describes one sample exercise and its payload rows.
type Exercise struct {
	Name       string
	Topic      string
	Language   string
	Difficulty string
	Type       entities.ExerciseType
	Pairs      [][2]string
	Turns      []entities.ConversationTurn
	Summary    string
	Sentences  [][2]string
}

// Content is the full sample set. Pairs and sentences are (source, target).
var Content = []Exercise{
	{
		Name:       "greetings-pairs",
		Topic:      "Greetings",
		Language:   entities.DefaultLanguage,
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypePairs,
		Pairs: [][2]string{
			{"Hola", "Hello"},
			{"Adiós", "Goodbye"},
			{"Gracias", "Thank you"},
			{"Por favor", "Please"},
		},
	},
	{
		Name:       "greetings-conversation",
		Topic:      "Greetings",
		Language:   entities.DefaultLanguage,
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypeConversation,
		Turns: []entities.ConversationTurn{
			{Order: 1, Speaker: "Anna", Message: "Good morning! How are you?"},
			{Order: 2, Speaker: "Ben", Message: "I'm fine, thanks. And you?"},
			{Order: 3, Speaker: "Anna", Message: "Very well, thank you."},
		},
		Summary: "Two friends greet each other in the morning.",
	},
	{
		Name:       "greetings-translation",
		Topic:      "Greetings",
		Language:   entities.DefaultLanguage,
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypeTranslation,
		Sentences: [][2]string{
			{"Buenos días", "Good morning"},
			{"¿Cómo estás?", "How are you doing"},
			{"Mucho gusto", "Nice to meet you"},
		},
	},
	{
		Name:       "food-pairs",
		Topic:      "Food",
		Language:   entities.DefaultLanguage,
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypePairs,
		Pairs: [][2]string{
			{"Pan", "Bread"},
			{"Agua", "Water"},
			{"Manzana", "Apple"},
		},
	},
	{
		Name:       "food-conversation",
		Topic:      "Food",
		Language:   entities.DefaultLanguage,
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypeConversation,
		Turns: []entities.ConversationTurn{
			{Order: 1, Speaker: "Waiter", Message: "What would you like to order?"},
			{Order: 2, Speaker: "Guest", Message: "A coffee and a sandwich, please."},
		},
		Summary: "A guest orders breakfast in a cafe.",
	},
	{
		Name:       "food-chatbot",
		Topic:      "Food",
		Language:   entities.DefaultLanguage,
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypeChatbot,
	},
	{
		Name:       "travel-translation",
		Topic:      "Travel",
		Language:   entities.DefaultLanguage,
		Difficulty: "Intermediate",
		Type:       entities.ExerciseTypeTranslation,
		Sentences: [][2]string{
			{"¿Dónde está la estación?", "Where is the station"},
			{"Necesito un billete", "I need a ticket"},
		},
	},
	{
		Name:       "saludos-pairs",
		Topic:      "Greetings",
		Language:   "Spanish",
		Difficulty: entities.DefaultDifficulty,
		Type:       entities.ExerciseTypePairs,
		Pairs: [][2]string{
			{"Hello", "Hola"},
			{"Goodbye", "Adiós"},
		},
	},
}

// Seed writes content into db and stamps the metadata version. Existing
// exercises with the same name are left alone.
func Seed(db *database.Database, content []Exercise, version int) error {
	for _, ex := range content {
		if err := seedExercise(db, ex); err != nil {
			return fmt.Errorf("seed %s: %w", ex.Name, err)
		}
	}
	return db.SetVersion(version)
}

func seedExercise(db *database.Database, ex Exercise) error {
	languageID, err := db.GetOrCreate(entities.LookupLanguage, ex.Language)
	if err != nil {
		return err
	}
	difficultyID, err := db.GetOrCreate(entities.LookupDifficulty, ex.Difficulty)
	if err != nil {
		return err
	}
	topicID, err := db.GetOrCreate(entities.LookupTopic, ex.Topic)
	if err != nil {
		return err
	}

	err = db.DB.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&entities.ExerciseInfo{}).Where("name = ?", ex.Name).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		info := entities.ExerciseInfo{
			Name:         ex.Name,
			TopicID:      topicID,
			LanguageID:   languageID,
			DifficultyID: difficultyID,
			ExerciseType: ex.Type,
		}
		if err := tx.Create(&info).Error; err != nil {
			return err
		}
		source := sourceLanguage(ex.Language)

		for _, p := range ex.Pairs {
			row := entities.PairExercise{
				ExerciseID:       info.ID,
				Language1:        source,
				Language2:        ex.Language,
				Language1Content: p[0],
				Language2Content: p[1],
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		for _, turn := range ex.Turns {
			turn.ExerciseID = info.ID
			if err := tx.Create(&turn).Error; err != nil {
				return err
			}
		}
		if ex.Summary != "" {
			if err := tx.Create(&entities.ConversationSummary{ExerciseID: info.ID, Summary: ex.Summary}).Error; err != nil {
				return err
			}
		}

		for _, s := range ex.Sentences {
			row := entities.TranslationExercise{
				ExerciseID:       info.ID,
				Language1:        source,
				Language2:        ex.Language,
				Language1Content: s[0],
				Language2Content: s[1],
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return entities.Unavailable("seed exercise", err)
}

// sourceLanguage is the language the learner translates from.
func sourceLanguage(target string) string {
	if target == "Spanish" {
		return entities.DefaultLanguage
	}
	return "Spanish"
}
