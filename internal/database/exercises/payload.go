package exercises

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/lingoplay/core/internal/entities"
)

// blankMarker replaces the hidden word of a fill-in-blank sentence.
const blankMarker = "____"

// maxBlankDistractors is the number of wrong options per fill-in-blank item.
const maxBlankDistractors = 3

// GetPairExerciseWithData returns the exercise with all of its pairs, or
// nil when the exercise does not exist.
func (r *Repository) GetPairExerciseWithData(exerciseID uint) (*entities.PairExerciseData, error) {
	info, err := r.getInfo(exerciseID)
	if err != nil || info == nil {
		return nil, err
	}

	pairs := []entities.PairExercise{}
	if err := r.db.Where("exercise_id = ?", exerciseID).Order("id ASC").Find(&pairs).Error; err != nil {
		return nil, entities.Unavailable("get pair exercise", err)
	}
	if len(pairs) > 0 {
		info.ResolvedType = entities.ExerciseTypePairs
	}

	return &entities.PairExerciseData{Exercise: *info, Pairs: pairs}, nil
}

// GetConversationExerciseWithData returns the ordered turns, the topic
// name, the correct summary and up to two wrong summaries sampled from
// other exercises in the same language.
func (r *Repository) GetConversationExerciseWithData(exerciseID uint) (*entities.ConversationExerciseData, error) {
	info, err := r.getInfo(exerciseID)
	if err != nil || info == nil {
		return nil, err
	}

	turns := []entities.ConversationTurn{}
	err = r.db.Where("exercise_id = ?", exerciseID).
		Order("conversation_order ASC, id ASC").
		Find(&turns).Error
	if err != nil {
		return nil, entities.Unavailable("get conversation turns", err)
	}
	if len(turns) > 0 {
		info.ResolvedType = entities.ExerciseTypeConversation
	}

	summary, err := r.summaryFor(exerciseID)
	if err != nil {
		return nil, err
	}

	wrong, err := r.WrongSummaries(exerciseID, info.LanguageID, summary)
	if err != nil {
		return nil, err
	}

	return &entities.ConversationExerciseData{
		Exercise:       *info,
		TopicName:      info.Topic.Name,
		Turns:          turns,
		Summary:        summary,
		WrongSummaries: wrong,
	}, nil
}

func (r *Repository) summaryFor(exerciseID uint) (string, error) {
	var summary entities.ConversationSummary
	err := r.db.Where("exercise_id = ?", exerciseID).First(&summary).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", entities.Unavailable("get conversation summary", err)
	}
	return summary.Summary, nil
}

// WrongSummaries samples at most two distinct summaries of other
// conversation exercises in the language. The correct summary is never
// among them, even when another exercise shares its text.
func (r *Repository) WrongSummaries(exerciseID, languageID uint, correct string) ([]string, error) {
	var candidates []string
	err := r.db.Table("conversation_summaries").
		Joins("JOIN exercises_info ON exercises_info.id = conversation_summaries.exercise_id").
		Where("conversation_summaries.exercise_id <> ? AND exercises_info.language_id = ?", exerciseID, languageID).
		Where("conversation_summaries.summary <> ? AND conversation_summaries.summary <> ''", correct).
		Pluck("conversation_summaries.summary", &candidates).Error
	if err != nil {
		return nil, entities.Unavailable("get wrong summaries", err)
	}

	return lo.Samples(lo.Uniq(candidates), wrongSummaryCount), nil
}

// GetTranslationExerciseWithData returns the exercise with its sentence
// pairs, or nil when the exercise does not exist.
func (r *Repository) GetTranslationExerciseWithData(exerciseID uint) (*entities.TranslationExerciseData, error) {
	info, err := r.getInfo(exerciseID)
	if err != nil || info == nil {
		return nil, err
	}

	sentences, err := r.translationSentences(exerciseID)
	if err != nil {
		return nil, err
	}
	if len(sentences) > 0 {
		info.ResolvedType = entities.ExerciseTypeTranslation
	}

	return &entities.TranslationExerciseData{Exercise: *info, Sentences: sentences}, nil
}

func (r *Repository) translationSentences(exerciseID uint) ([]entities.TranslationExercise, error) {
	sentences := []entities.TranslationExercise{}
	if err := r.db.Where("exercise_id = ?", exerciseID).Order("id ASC").Find(&sentences).Error; err != nil {
		return nil, entities.Unavailable("get translation sentences", err)
	}
	return sentences, nil
}

// GetFillInBlankExerciseWithData derives fill-in-blank items from a
// translation exercise. The longest word of each language_2 sentence is
// hidden; distractors come from the other sentences of the exercise.
func (r *Repository) GetFillInBlankExerciseWithData(exerciseID uint) (*entities.FillInBlankExerciseData, error) {
	data, err := r.GetTranslationExerciseWithData(exerciseID)
	if err != nil || data == nil {
		return nil, err
	}

	return &entities.FillInBlankExerciseData{
		Exercise: data.Exercise,
		Items:    BuildFillInBlankItems(data.Sentences),
	}, nil
}

// BuildFillInBlankItems turns translation sentences into fill-in-blank
// items. Sentences without any word are skipped.
func BuildFillInBlankItems(sentences []entities.TranslationExercise) []entities.FillInBlankItem {
	answers := lo.Map(sentences, func(s entities.TranslationExercise, _ int) string {
		return longestWord(s.Language2Content)
	})

	items := []entities.FillInBlankItem{}
	for i, s := range sentences {
		answer := answers[i]
		if answer == "" {
			continue
		}

		options := []string{answer}
		for j, other := range answers {
			if len(options) > maxBlankDistractors {
				break
			}
			if j == i || other == "" || lo.ContainsBy(options, func(o string) bool { return strings.EqualFold(o, other) }) {
				continue
			}
			options = append(options, other)
		}

		items = append(items, entities.FillInBlankItem{
			SentenceID:  s.ID,
			Sentence:    strings.Replace(s.Language2Content, answer, blankMarker, 1),
			Answer:      answer,
			Translation: s.Language1Content,
			Options:     lo.Shuffle(options),
		})
	}
	return items
}

// longestWord returns the longest run of letters or digits in sentence;
// the first one wins a tie.
func longestWord(sentence string) string {
	words := strings.FieldsFunc(sentence, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	best := ""
	for _, w := range words {
		w = strings.Trim(w, "'")
		if utf8.RuneCountInString(w) > utf8.RuneCountInString(best) {
			best = w
		}
	}
	return best
}
