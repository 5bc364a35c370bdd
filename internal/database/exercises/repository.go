// Package exercises provides read access to topics and exercises.
//
// Exercise metadata lives in exercises_info while the payload lives in one
// of the per-type tables. The exercise_type column can be stale, so every
// read verifies it against the payload tables through a single dispatch
// table (see payloadTables).
//
// # Usage
//
//	repo := exercises.NewRepository(db)
//	topics, err := repo.ListTopics("Spanish", "Beginner", entities.ExerciseTypePairs)
//	info, err := repo.GetRandomExerciseForTopic(topicID, "Spanish", "Beginner", entities.ExerciseTypePairs, &userID)
package exercises

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/lingoplay/core/internal/entities"
)

// wrongSummaryCount is how many distractor summaries a conversation
// comprehension check gets.
const wrongSummaryCount = 2

type payloadTable struct {
	Type  entities.ExerciseType
	Table string
}

// payloadTables maps each payload-backed exercise type to its table, in
// resolution order. Chatbot exercises have no payload table.
var payloadTables = []payloadTable{
	{entities.ExerciseTypePairs, "pair_exercises"},
	{entities.ExerciseTypeConversation, "conversation_exercises"},
	{entities.ExerciseTypeTranslation, "translation_exercises"},
}

func payloadTableFor(t entities.ExerciseType) (string, bool) {
	for _, p := range payloadTables {
		if p.Type == t {
			return p.Table, true
		}
	}
	return "", false
}

func existsPayload(table string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM %s p WHERE p.exercise_id = exercises_info.id)", table)
}

// whereVerified restricts q to exercises whose payload matches t. An empty
// t accepts any payload-backed exercise.
func whereVerified(q *gorm.DB, t entities.ExerciseType) *gorm.DB {
	if t == "" {
		clauses := lo.Map(payloadTables, func(p payloadTable, _ int) string {
			return existsPayload(p.Table)
		})
		return q.Where("(" + strings.Join(clauses, " OR ") + ")")
	}

	q = q.Where("exercises_info.exercise_type = ?", t)
	if table, ok := payloadTableFor(t); ok {
		q = q.Where(existsPayload(table))
	}
	return q
}

// Repository handles all exercise database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new exercises repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// joinLanguageDifficulty joins the lookup tables used by every filter.
func joinLanguageDifficulty(q *gorm.DB, language, difficulty string) *gorm.DB {
	return q.
		Joins("JOIN languages ON languages.id = exercises_info.language_id").
		Joins("JOIN difficulties ON difficulties.id = exercises_info.difficulty_id").
		Where("languages.name = ? AND difficulties.level = ?", language, difficulty)
}

// ListTopics returns the topics that have at least one verified exercise
// for the given language, difficulty and type.
func (r *Repository) ListTopics(language, difficulty string, exerciseType entities.ExerciseType) ([]entities.Topic, error) {
	topics := []entities.Topic{}

	q := r.db.Table("topics").
		Select("DISTINCT topics.id, topics.name").
		Joins("JOIN exercises_info ON exercises_info.topic_id = topics.id")
	q = joinLanguageDifficulty(q, language, difficulty)
	q = whereVerified(q, exerciseType)

	if err := q.Order("topics.name ASC").Scan(&topics).Error; err != nil {
		return nil, entities.Unavailable("list topics", err)
	}
	return topics, nil
}

// ListExerciseTypes returns the distinct stored exercise types available
// for a language and difficulty.
func (r *Repository) ListExerciseTypes(language, difficulty string) ([]entities.ExerciseType, error) {
	types := []entities.ExerciseType{}

	q := joinLanguageDifficulty(r.db.Model(&entities.ExerciseInfo{}), language, difficulty)
	err := q.Distinct().
		Order("exercises_info.exercise_type ASC").
		Pluck("exercises_info.exercise_type", &types).Error
	if err != nil {
		return nil, entities.Unavailable("list exercise types", err)
	}
	return types, nil
}

// ListTopicsWithProgress reports per-topic completion for a user. An
// exercise counts as completed once it has at least one correct attempt.
func (r *Repository) ListTopicsWithProgress(userID uint, exerciseType entities.ExerciseType, language, difficulty string) ([]entities.TopicProgress, error) {
	var rows []entities.TopicProgress

	q := r.db.Table("topics").
		Select(`topics.id AS topic_id, topics.name AS topic_name,
			COUNT(DISTINCT exercises_info.id) AS total_exercises,
			COUNT(DISTINCT CASE WHEN user_exercise_attempts.is_correct = 1 THEN exercises_info.id END) AS completed_exercises`).
		Joins("JOIN exercises_info ON exercises_info.topic_id = topics.id").
		Joins("LEFT JOIN user_exercise_attempts ON user_exercise_attempts.exercise_id = exercises_info.id AND user_exercise_attempts.user_id = ?", userID)
	q = joinLanguageDifficulty(q, language, difficulty)
	q = whereVerified(q, exerciseType)

	err := q.Group("topics.id, topics.name").Order("topics.name ASC").Scan(&rows).Error
	if err != nil {
		return nil, entities.Unavailable("list topics with progress", err)
	}

	for i := range rows {
		rows[i].Percentage = Percentage(rows[i].CompletedExercises, rows[i].TotalExercises)
	}
	if rows == nil {
		rows = []entities.TopicProgress{}
	}
	return rows, nil
}

// Percentage returns round(completed/total*100), or 0 when total is 0.
func Percentage(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func (r *Repository) topicCandidates(topicID uint, language, difficulty string) *gorm.DB {
	q := r.db.Model(&entities.ExerciseInfo{}).
		Select("exercises_info.*").
		Where("exercises_info.topic_id = ?", topicID)
	return joinLanguageDifficulty(q, language, difficulty).Order("exercises_info.id ASC")
}

// GetRandomExerciseForTopic picks one matching exercise at random. When
// userID is set, exercises the user has not attempted yet are preferred;
// once all have been attempted the pick is uniform over every candidate.
// It returns nil without error when nothing matches.
func (r *Repository) GetRandomExerciseForTopic(topicID uint, language, difficulty string, exerciseType entities.ExerciseType, userID *uint) (*entities.ExerciseInfo, error) {
	var candidates []entities.ExerciseInfo
	q := whereVerified(r.topicCandidates(topicID, language, difficulty), exerciseType)
	if err := q.Find(&candidates).Error; err != nil {
		return nil, entities.Unavailable("get random exercise", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	if exerciseType == "" {
		resolved, err := r.resolveTypes(candidates)
		if err != nil {
			return nil, err
		}
		if len(resolved) == 0 {
			return nil, nil
		}
		candidates = resolved
	} else {
		for i := range candidates {
			candidates[i].ResolvedType = exerciseType
		}
	}

	pool := candidates
	if userID != nil {
		untried, _, err := r.splitByAttempted(*userID, candidates)
		if err != nil {
			return nil, err
		}
		if len(untried) > 0 {
			pool = untried
		}
	}

	picked := lo.Sample(pool)
	return &picked, nil
}

// GetRandomMixedExercisesForTopic returns up to count exercises of any
// payload-backed type, each tagged with its resolved type. Untried
// exercises come first, both groups in random order.
func (r *Repository) GetRandomMixedExercisesForTopic(topicID uint, count int, language, difficulty string, userID *uint) ([]entities.ExerciseInfo, error) {
	if count <= 0 {
		return []entities.ExerciseInfo{}, nil
	}

	var candidates []entities.ExerciseInfo
	if err := r.topicCandidates(topicID, language, difficulty).Find(&candidates).Error; err != nil {
		return nil, entities.Unavailable("get random mixed exercises", err)
	}

	resolved, err := r.resolveTypes(candidates)
	if err != nil {
		return nil, err
	}

	ordered := lo.Shuffle(resolved)
	if userID != nil {
		untried, tried, err := r.splitByAttempted(*userID, resolved)
		if err != nil {
			return nil, err
		}
		ordered = append(lo.Shuffle(untried), lo.Shuffle(tried)...)
	}

	if len(ordered) > count {
		ordered = ordered[:count]
	}
	return ordered, nil
}

// splitByAttempted partitions infos into exercises the user never
// attempted and exercises with at least one attempt.
func (r *Repository) splitByAttempted(userID uint, infos []entities.ExerciseInfo) (untried, tried []entities.ExerciseInfo, err error) {
	ids := lo.Map(infos, func(e entities.ExerciseInfo, _ int) uint { return e.ID })

	var attempted []uint
	err = r.db.Model(&entities.UserExerciseAttempt{}).
		Where("user_id = ? AND exercise_id IN ?", userID, ids).
		Distinct().
		Pluck("exercise_id", &attempted).Error
	if err != nil {
		return nil, nil, entities.Unavailable("load attempted exercises", err)
	}

	seen := make(map[uint]struct{}, len(attempted))
	for _, id := range attempted {
		seen[id] = struct{}{}
	}
	for _, info := range infos {
		if _, ok := seen[info.ID]; ok {
			tried = append(tried, info)
		} else {
			untried = append(untried, info)
		}
	}
	return untried, tried, nil
}

// payloadIndex records which payload tables hold rows for which ids.
type payloadIndex map[entities.ExerciseType]map[uint]struct{}

func (r *Repository) loadPayloadIndex(ids []uint) (payloadIndex, error) {
	index := make(payloadIndex, len(payloadTables))
	if len(ids) == 0 {
		return index, nil
	}
	for _, p := range payloadTables {
		var found []uint
		err := r.db.Table(p.Table).
			Where("exercise_id IN ?", ids).
			Distinct().
			Pluck("exercise_id", &found).Error
		if err != nil {
			return nil, entities.Unavailable("resolve exercise types", err)
		}
		set := make(map[uint]struct{}, len(found))
		for _, id := range found {
			set[id] = struct{}{}
		}
		index[p.Type] = set
	}
	return index, nil
}

// resolve returns the verified type of an exercise: the stored type when
// its table has rows, otherwise the first table in dispatch order that
// does, otherwise "".
func (idx payloadIndex) resolve(id uint, stored entities.ExerciseType) entities.ExerciseType {
	if _, ok := idx[stored][id]; ok {
		return stored
	}
	for _, p := range payloadTables {
		if _, ok := idx[p.Type][id]; ok {
			return p.Type
		}
	}
	return ""
}

// resolveTypes tags infos with their resolved type and drops the ones
// without any payload.
func (r *Repository) resolveTypes(infos []entities.ExerciseInfo) ([]entities.ExerciseInfo, error) {
	ids := lo.Map(infos, func(e entities.ExerciseInfo, _ int) uint { return e.ID })
	index, err := r.loadPayloadIndex(ids)
	if err != nil {
		return nil, err
	}

	resolved := make([]entities.ExerciseInfo, 0, len(infos))
	for _, info := range infos {
		info.ResolvedType = index.resolve(info.ID, info.ExerciseType)
		if info.ResolvedType != "" {
			resolved = append(resolved, info)
		}
	}
	return resolved, nil
}

// ResolveExerciseType returns the verified type of one exercise. Chatbot
// exercises resolve to their stored type; exercises without payload
// resolve to "".
func (r *Repository) ResolveExerciseType(exerciseID uint) (entities.ExerciseType, error) {
	info, err := r.getInfo(exerciseID)
	if err != nil || info == nil {
		return "", err
	}
	if info.ExerciseType == entities.ExerciseTypeChatbot {
		return info.ExerciseType, nil
	}
	index, err := r.loadPayloadIndex([]uint{exerciseID})
	if err != nil {
		return "", err
	}
	return index.resolve(exerciseID, info.ExerciseType), nil
}

// GetExercise returns a single exercise by ID, or nil when it does not exist.
func (r *Repository) GetExercise(exerciseID uint) (*entities.ExerciseInfo, error) {
	return r.getInfo(exerciseID)
}

func (r *Repository) getInfo(exerciseID uint) (*entities.ExerciseInfo, error) {
	var info entities.ExerciseInfo
	err := r.db.Preload("Topic").First(&info, exerciseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, entities.Unavailable("get exercise", err)
	}
	return &info, nil
}
