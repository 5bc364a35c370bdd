package exercises

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lingoplay/core/internal/entities"
)

func setupTestDB(t *testing.T) (*gorm.DB, *Repository, func()) {
	dbPath := filepath.Join(t.TempDir(), "test_exercises.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&entities.Language{},
		&entities.Difficulty{},
		&entities.Topic{},
		&entities.ExerciseInfo{},
		&entities.PairExercise{},
		&entities.ConversationTurn{},
		&entities.ConversationSummary{},
		&entities.TranslationExercise{},
		&entities.User{},
		&entities.UserExerciseAttempt{},
	)
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}

	return db, repo, cleanup
}

type exerciseFixture struct {
	name       string
	topic      string
	language   string
	difficulty string
	stored     entities.ExerciseType
}

func createTestExercise(t *testing.T, db *gorm.DB, fixture exerciseFixture) *entities.ExerciseInfo {
	t.Helper()
	if fixture.language == "" {
		fixture.language = "Spanish"
	}
	if fixture.difficulty == "" {
		fixture.difficulty = "Beginner"
	}

	var language entities.Language
	require.NoError(t, db.Where(entities.Language{Name: fixture.language}).FirstOrCreate(&language).Error)
	var difficulty entities.Difficulty
	require.NoError(t, db.Where(entities.Difficulty{Level: fixture.difficulty}).FirstOrCreate(&difficulty).Error)
	var topic entities.Topic
	require.NoError(t, db.Where(entities.Topic{Name: fixture.topic}).FirstOrCreate(&topic).Error)

	info := &entities.ExerciseInfo{
		Name:         fixture.name,
		TopicID:      topic.ID,
		LanguageID:   language.ID,
		DifficultyID: difficulty.ID,
		ExerciseType: fixture.stored,
	}
	require.NoError(t, db.Create(info).Error)
	return info
}

func addPairs(t *testing.T, db *gorm.DB, exerciseID uint, pairs ...[2]string) {
	t.Helper()
	for _, p := range pairs {
		require.NoError(t, db.Create(&entities.PairExercise{
			ExerciseID:       exerciseID,
			Language1:        "English",
			Language2:        "Spanish",
			Language1Content: p[0],
			Language2Content: p[1],
		}).Error)
	}
}

func addTranslations(t *testing.T, db *gorm.DB, exerciseID uint, sentences ...[2]string) {
	t.Helper()
	for _, s := range sentences {
		require.NoError(t, db.Create(&entities.TranslationExercise{
			ExerciseID:       exerciseID,
			Language1:        "English",
			Language2:        "Spanish",
			Language1Content: s[0],
			Language2Content: s[1],
		}).Error)
	}
}

func addConversation(t *testing.T, db *gorm.DB, exerciseID uint, summary string, messages ...string) {
	t.Helper()
	for i, m := range messages {
		speaker := "Ana"
		if i%2 == 1 {
			speaker = "Luis"
		}
		require.NoError(t, db.Create(&entities.ConversationTurn{
			ExerciseID: exerciseID,
			Order:      len(messages) - i, // inserted in reverse to exercise ordering
			Speaker:    speaker,
			Message:    m,
		}).Error)
	}
	if summary != "" {
		require.NoError(t, db.Create(&entities.ConversationSummary{ExerciseID: exerciseID, Summary: summary}).Error)
	}
}

func recordAttempt(t *testing.T, db *gorm.DB, userID, exerciseID uint, correct bool) {
	t.Helper()
	require.NoError(t, db.Create(&entities.UserExerciseAttempt{
		UserID:     userID,
		ExerciseID: exerciseID,
		IsCorrect:  correct,
	}).Error)
}

func TestRepository_ListTopics_Empty(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	topics, err := repo.ListTopics("Klingon", "Expert", entities.ExerciseTypePairs)

	require.NoError(t, err)
	assert.NotNil(t, topics)
	assert.Empty(t, topics)
}

func TestRepository_ListTopics_FiltersAndVerifies(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	greetings := createTestExercise(t, db, exerciseFixture{name: "greet-1", topic: "Greetings", stored: entities.ExerciseTypePairs})
	addPairs(t, db, greetings.ID, [2]string{"hello", "hola"})

	food := createTestExercise(t, db, exerciseFixture{name: "food-1", topic: "Food", stored: entities.ExerciseTypePairs})
	addPairs(t, db, food.ID, [2]string{"bread", "pan"})

	// Tagged as pairs but no payload row anywhere
	createTestExercise(t, db, exerciseFixture{name: "orphan", topic: "Travel", stored: entities.ExerciseTypePairs})

	french := createTestExercise(t, db, exerciseFixture{name: "fr-1", topic: "Weather", language: "French", stored: entities.ExerciseTypePairs})
	addPairs(t, db, french.ID, [2]string{"rain", "pluie"})

	topics, err := repo.ListTopics("Spanish", "Beginner", entities.ExerciseTypePairs)
	require.NoError(t, err)

	names := make([]string, 0, len(topics))
	for _, topic := range topics {
		names = append(names, topic.Name)
	}
	assert.Equal(t, []string{"Food", "Greetings"}, names)

	topics, err = repo.ListTopics("Spanish", "Beginner", entities.ExerciseTypeTranslation)
	require.NoError(t, err)
	assert.Empty(t, topics)

	topics, err = repo.ListTopics("Spanish", "Beginner", "")
	require.NoError(t, err)
	assert.Len(t, topics, 2)
}

func TestRepository_ListExerciseTypes(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	createTestExercise(t, db, exerciseFixture{name: "a", topic: "Greetings", stored: entities.ExerciseTypePairs})
	createTestExercise(t, db, exerciseFixture{name: "b", topic: "Greetings", stored: entities.ExerciseTypePairs})
	createTestExercise(t, db, exerciseFixture{name: "c", topic: "Food", stored: entities.ExerciseTypeTranslation})
	createTestExercise(t, db, exerciseFixture{name: "d", topic: "Food", language: "French", stored: entities.ExerciseTypeConversation})

	types, err := repo.ListExerciseTypes("Spanish", "Beginner")

	require.NoError(t, err)
	assert.Equal(t, []entities.ExerciseType{entities.ExerciseTypePairs, entities.ExerciseTypeTranslation}, types)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		completed, total int64
		expected         int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{3, 3, 100},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Percentage(tt.completed, tt.total), "%d/%d", tt.completed, tt.total)
	}
}

func TestRepository_ListTopicsWithProgress(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	var ids []uint
	for _, name := range []string{"g1", "g2", "g3"} {
		info := createTestExercise(t, db, exerciseFixture{name: name, topic: "Greetings", stored: entities.ExerciseTypePairs})
		addPairs(t, db, info.ID, [2]string{"hello", "hola"})
		ids = append(ids, info.ID)
	}
	food := createTestExercise(t, db, exerciseFixture{name: "f1", topic: "Food", stored: entities.ExerciseTypePairs})
	addPairs(t, db, food.ID, [2]string{"bread", "pan"})

	const userID, otherUserID = 1, 2
	recordAttempt(t, db, userID, ids[0], true)
	recordAttempt(t, db, userID, ids[0], true) // repeated correct attempts count once
	recordAttempt(t, db, userID, ids[1], false)
	recordAttempt(t, db, otherUserID, ids[2], true)

	rows, err := repo.ListTopicsWithProgress(userID, entities.ExerciseTypePairs, "Spanish", "Beginner")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "Food", rows[0].TopicName)
	assert.Equal(t, int64(1), rows[0].TotalExercises)
	assert.Equal(t, int64(0), rows[0].CompletedExercises)
	assert.Equal(t, 0, rows[0].Percentage)

	assert.Equal(t, "Greetings", rows[1].TopicName)
	assert.Equal(t, int64(3), rows[1].TotalExercises)
	assert.Equal(t, int64(1), rows[1].CompletedExercises)
	assert.Equal(t, 33, rows[1].Percentage)
}

func TestRepository_ListTopicsWithProgress_Empty(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	rows, err := repo.ListTopicsWithProgress(1, entities.ExerciseTypeConversation, "Spanish", "Beginner")

	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRepository_GetRandomExerciseForTopic_NoCandidates(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	defer cleanup()

	userID := uint(1)
	info, err := repo.GetRandomExerciseForTopic(42, "Spanish", "Beginner", entities.ExerciseTypePairs, &userID)

	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestRepository_GetRandomExerciseForTopic_PrefersUntried(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	var infos []*entities.ExerciseInfo
	for _, name := range []string{"g1", "g2", "g3"} {
		info := createTestExercise(t, db, exerciseFixture{name: name, topic: "Greetings", stored: entities.ExerciseTypePairs})
		addPairs(t, db, info.ID, [2]string{"hello", "hola"})
		infos = append(infos, info)
	}

	userID := uint(7)
	recordAttempt(t, db, userID, infos[0].ID, true)
	recordAttempt(t, db, userID, infos[1].ID, false)

	for i := 0; i < 20; i++ {
		picked, err := repo.GetRandomExerciseForTopic(infos[0].TopicID, "Spanish", "Beginner", entities.ExerciseTypePairs, &userID)
		require.NoError(t, err)
		require.NotNil(t, picked)
		assert.Equal(t, infos[2].ID, picked.ID)
		assert.Equal(t, entities.ExerciseTypePairs, picked.ResolvedType)
	}
}

func TestRepository_GetRandomExerciseForTopic_FallsBackWhenAllTried(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	allowed := map[uint]bool{}
	var topicID uint
	userID := uint(7)
	for _, name := range []string{"g1", "g2"} {
		info := createTestExercise(t, db, exerciseFixture{name: name, topic: "Greetings", stored: entities.ExerciseTypePairs})
		addPairs(t, db, info.ID, [2]string{"hello", "hola"})
		recordAttempt(t, db, userID, info.ID, true)
		allowed[info.ID] = true
		topicID = info.TopicID
	}

	for i := 0; i < 10; i++ {
		picked, err := repo.GetRandomExerciseForTopic(topicID, "Spanish", "Beginner", entities.ExerciseTypePairs, &userID)
		require.NoError(t, err)
		require.NotNil(t, picked)
		assert.True(t, allowed[picked.ID])
	}
}

func TestRepository_GetRandomExerciseForTopic_WithoutUser(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	info := createTestExercise(t, db, exerciseFixture{name: "t1", topic: "Food", stored: entities.ExerciseTypeTranslation})
	addTranslations(t, db, info.ID, [2]string{"I eat bread", "Yo como pan"})

	picked, err := repo.GetRandomExerciseForTopic(info.TopicID, "Spanish", "Beginner", entities.ExerciseTypeTranslation, nil)

	require.NoError(t, err)
	require.NotNil(t, picked)
	assert.Equal(t, info.ID, picked.ID)
}

func TestRepository_GetRandomMixedExercisesForTopic(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	pairs := createTestExercise(t, db, exerciseFixture{name: "p1", topic: "Food", stored: entities.ExerciseTypePairs})
	addPairs(t, db, pairs.ID, [2]string{"bread", "pan"})

	// Stale tag: stored as pairs but the payload is a translation
	stale := createTestExercise(t, db, exerciseFixture{name: "stale", topic: "Food", stored: entities.ExerciseTypePairs})
	addTranslations(t, db, stale.ID, [2]string{"I eat bread", "Yo como pan"})

	conversation := createTestExercise(t, db, exerciseFixture{name: "c1", topic: "Food", stored: entities.ExerciseTypeConversation})
	addConversation(t, db, conversation.ID, "Two friends order food", "Hola", "Hola, que tal")

	// No payload at all, must never be returned
	createTestExercise(t, db, exerciseFixture{name: "empty", topic: "Food", stored: entities.ExerciseTypeTranslation})

	t.Run("resolves types and drops unresolvable rows", func(t *testing.T) {
		items, err := repo.GetRandomMixedExercisesForTopic(pairs.TopicID, 10, "Spanish", "Beginner", nil)
		require.NoError(t, err)
		require.Len(t, items, 3)

		byID := map[uint]entities.ExerciseType{}
		for _, item := range items {
			byID[item.ID] = item.ResolvedType
		}
		assert.Equal(t, entities.ExerciseTypePairs, byID[pairs.ID])
		assert.Equal(t, entities.ExerciseTypeTranslation, byID[stale.ID])
		assert.Equal(t, entities.ExerciseTypeConversation, byID[conversation.ID])
	})

	t.Run("respects count", func(t *testing.T) {
		items, err := repo.GetRandomMixedExercisesForTopic(pairs.TopicID, 2, "Spanish", "Beginner", nil)
		require.NoError(t, err)
		assert.Len(t, items, 2)
	})

	t.Run("zero count returns empty", func(t *testing.T) {
		items, err := repo.GetRandomMixedExercisesForTopic(pairs.TopicID, 0, "Spanish", "Beginner", nil)
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("untried exercises come first", func(t *testing.T) {
		userID := uint(3)
		recordAttempt(t, db, userID, pairs.ID, true)
		recordAttempt(t, db, userID, stale.ID, false)

		for i := 0; i < 10; i++ {
			items, err := repo.GetRandomMixedExercisesForTopic(pairs.TopicID, 1, "Spanish", "Beginner", &userID)
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, conversation.ID, items[0].ID)
		}
	})
}

func TestRepository_ResolveExerciseType(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	stale := createTestExercise(t, db, exerciseFixture{name: "stale", topic: "Food", stored: entities.ExerciseTypeConversation})
	addPairs(t, db, stale.ID, [2]string{"bread", "pan"})
	chatbot := createTestExercise(t, db, exerciseFixture{name: "bot", topic: "Food", stored: entities.ExerciseTypeChatbot})
	empty := createTestExercise(t, db, exerciseFixture{name: "empty", topic: "Food", stored: entities.ExerciseTypePairs})

	resolved, err := repo.ResolveExerciseType(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ExerciseTypePairs, resolved)

	resolved, err = repo.ResolveExerciseType(chatbot.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ExerciseTypeChatbot, resolved)

	resolved, err = repo.ResolveExerciseType(empty.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ExerciseType(""), resolved)

	resolved, err = repo.ResolveExerciseType(9999)
	require.NoError(t, err)
	assert.Equal(t, entities.ExerciseType(""), resolved)
}

func TestRepository_ClosedDatabaseIsUnavailable(t *testing.T) {
	_, repo, cleanup := setupTestDB(t)
	cleanup()

	_, err := repo.ListTopics("Spanish", "Beginner", entities.ExerciseTypePairs)

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrDatabaseUnavailable)
}

func TestRepository_MissingTableIsUnavailable(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	info := createTestExercise(t, db, exerciseFixture{name: "greet-1", topic: "Greetings", stored: entities.ExerciseTypePairs})
	require.NoError(t, db.Migrator().DropTable(&entities.PairExercise{}))

	_, err := repo.ListTopics("Spanish", "Beginner", entities.ExerciseTypePairs)
	assert.True(t, entities.IsUnavailable(err), "list topics: %v", err)

	_, err = repo.ListTopics("Spanish", "Beginner", "")
	assert.True(t, entities.IsUnavailable(err), "list topics of any type: %v", err)

	_, err = repo.GetPairExerciseWithData(info.ID)
	assert.True(t, entities.IsUnavailable(err), "get pair exercise: %v", err)
}

func TestRepository_MissingInfoTableIsUnavailable(t *testing.T) {
	db, repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, db.Migrator().DropTable(&entities.ExerciseInfo{}))

	_, err := repo.ListExerciseTypes("Spanish", "Beginner")
	assert.ErrorIs(t, err, entities.ErrDatabaseUnavailable)

	_, err = repo.GetRandomExerciseForTopic(1, "Spanish", "Beginner", entities.ExerciseTypePairs, nil)
	assert.ErrorIs(t, err, entities.ErrDatabaseUnavailable)
}
