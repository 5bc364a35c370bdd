package migration

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/database/chats"
	"github.com/lingoplay/core/internal/database/progress"
	"github.com/lingoplay/core/internal/database/settings"
	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/entities"
	"github.com/lingoplay/core/internal/sidestore"
)

var migratedAt = time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)

type testEnv struct {
	dir        string
	dbPath     string
	bundlePath string
	store      *sidestore.Store
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	store, err := sidestore.New(sidestore.Config{DatabasePath: filepath.Join(dir, "side.db")})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return &testEnv{
		dir:        dir,
		dbPath:     filepath.Join(dir, "app.db"),
		bundlePath: filepath.Join(dir, "bundle.db"),
		store:      store,
	}
}

func (e *testEnv) adapter(bundle Bundle) *Adapter {
	a := New(e.dbPath, bundle, e.store)
	a.now = func() time.Time { return migratedAt }
	return a
}

func openTestDB(t *testing.T, path string) *database.Database {
	t.Helper()
	db, err := database.NewDatabase(path, database.WithLogLevel(logger.Silent))
	require.NoError(t, err)
	return db
}

// seedExercises adds one topic with count pair exercises named with prefix.
func seedExercises(t *testing.T, db *database.Database, prefix, topic string, count int) []uint {
	t.Helper()
	languageID, err := db.GetOrCreate(entities.LookupLanguage, "French")
	require.NoError(t, err)
	difficultyID, err := db.GetOrCreate(entities.LookupDifficulty, "Beginner")
	require.NoError(t, err)
	topicID, err := db.GetOrCreate(entities.LookupTopic, topic)
	require.NoError(t, err)

	ids := make([]uint, 0, count)
	for i := 0; i < count; i++ {
		info := entities.ExerciseInfo{
			Name:         fmt.Sprintf("%s-%d", prefix, i),
			TopicID:      topicID,
			LanguageID:   languageID,
			DifficultyID: difficultyID,
			ExerciseType: entities.ExerciseTypePairs,
		}
		require.NoError(t, db.DB.Create(&info).Error)
		require.NoError(t, db.DB.Create(&entities.PairExercise{
			ExerciseID:       info.ID,
			Language1:        "English",
			Language2:        "French",
			Language1Content: "bread",
			Language2Content: "pain",
		}).Error)
		ids = append(ids, info.ID)
	}
	return ids
}

func buildBundle(t *testing.T, path string, version int) {
	t.Helper()
	db := openTestDB(t, path)
	defer db.Close()

	seedExercises(t, db, fmt.Sprintf("bundle-v%d", version), "Cooking", 2)
	require.NoError(t, db.SetVersion(version))
}

type aliceFixture struct {
	userID uint
}

// buildAliceDatabase creates a version 140 database where alice has
// French/Beginner settings, a three message chat and ten attempts, seven
// of them correct.
func buildAliceDatabase(t *testing.T, path string, extraSettings map[string]string) aliceFixture {
	t.Helper()
	db := openTestDB(t, path)
	defer db.Close()

	exerciseIDs := seedExercises(t, db, "old", "Food", 5)
	require.NoError(t, db.SetVersion(140))

	alice, err := users.NewRepository(db.DB).CreateUser("alice")
	require.NoError(t, err)

	settingsRepo := settings.NewRepository(db.DB)
	require.NoError(t, settingsRepo.SaveSetting(alice.ID, entities.SettingKeyLanguage, "French"))
	require.NoError(t, settingsRepo.SaveSetting(alice.ID, entities.SettingKeyDifficulty, "Beginner"))
	for k, v := range extraSettings {
		require.NoError(t, settingsRepo.SaveSetting(alice.ID, k, v))
	}

	chatRepo := chats.NewRepository(db.DB)
	session := &entities.ChatSession{UserID: alice.ID, Title: "Au cafe", Language: "French", Difficulty: "Beginner"}
	require.NoError(t, chatRepo.CreateSession(session))
	for _, m := range []struct {
		role    entities.ChatRole
		content string
	}{
		{entities.ChatRoleSystem, "You are a waiter"},
		{entities.ChatRoleUser, "Un cafe"},
		{entities.ChatRoleAssistant, "Tout de suite"},
	} {
		_, err := chatRepo.AddMessage(session.ID, m.role, m.content)
		require.NoError(t, err)
	}

	progressRepo := progress.NewRepository(db.DB)
	for i := 0; i < 10; i++ {
		_, err := progressRepo.RecordAttempt(alice.ID, exerciseIDs[i%len(exerciseIDs)], i < 7)
		require.NoError(t, err)
	}

	return aliceFixture{userID: alice.ID}
}

func assertAliceMigrated(t *testing.T, dbPath string, fx aliceFixture, wantAttempts, wantCorrect string) {
	t.Helper()
	db := openTestDB(t, dbPath)
	defer db.Close()

	version, err := db.Version()
	require.NoError(t, err)
	assert.Equal(t, 141, version)

	user, err := users.NewRepository(db.DB).GetUserByName("alice")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, fx.userID, user.ID)

	ctx, err := settings.NewRepository(db.DB).GetUserContextFor(fx.userID)
	require.NoError(t, err)
	require.NotNil(t, ctx)
	assert.Equal(t, "French", ctx.Settings.Language)
	assert.Equal(t, "Beginner", ctx.Settings.Difficulty)

	messages, err := chats.NewRepository(db.DB).CountMessages(fx.userID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), messages)

	values, err := settings.NewRepository(db.DB).GetSettings(fx.userID)
	require.NoError(t, err)
	assert.Equal(t, wantAttempts, values[entities.SettingKeyLegacyTotalAttempts])
	assert.Equal(t, wantCorrect, values[entities.SettingKeyLegacyTotalCorrect])
	assert.Equal(t, migratedAt.Format(time.RFC3339), values[entities.SettingKeyLastMigrationDate])

	attempts, err := progress.NewRepository(db.DB).CountAttempts(fx.userID)
	require.NoError(t, err)
	assert.Zero(t, attempts)

	// Content comes from the new bundle
	var oldExercises int64
	require.NoError(t, db.DB.Model(&entities.ExerciseInfo{}).Where("name LIKE ?", "old-%").Count(&oldExercises).Error)
	assert.Zero(t, oldExercises)
}

func assertCleanedUp(t *testing.T, store *sidestore.Store, version string) {
	t.Helper()
	value, ok, err := store.Get(KeyDatabaseVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, version, value)

	_, ok, err = store.Get(KeyInProgress)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = store.Get(KeyBackup)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRun_FirstInstall(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionInstalled, result.Action)
	assert.Equal(t, 141, result.ToVersion)
	assert.FileExists(t, env.dbPath)
	assertCleanedUp(t, env.store, "141")
}

func TestRun_MigratesAndPreservesUserData(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionMigrated, result.Action)
	assert.Equal(t, 140, result.FromVersion)
	assert.Equal(t, 141, result.ToVersion)
	assert.NotEmpty(t, result.SnapshotID)

	assertAliceMigrated(t, env.dbPath, fx, "10", "7")
	assertCleanedUp(t, env.store, "141")
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))
	adapter := env.adapter(FileBundle{Path: env.bundlePath})

	first, err := adapter.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionMigrated, first.Action)

	second, err := adapter.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionNone, second.Action)
	assert.Equal(t, 141, second.FromVersion)

	// Legacy counters are not folded in a second time
	assertAliceMigrated(t, env.dbPath, fx, "10", "7")
}

func TestRun_FallsBackToDatabaseVersion(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	buildAliceDatabase(t, env.dbPath, nil)
	adapter := env.adapter(FileBundle{Path: env.bundlePath})

	info, err := adapter.InstalledVersion()
	require.NoError(t, err)
	assert.Equal(t, VersionInfo{Version: 140, Source: SourceDatabase}, info)

	result, err := adapter.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionMigrated, result.Action)
	assert.Equal(t, 140, result.FromVersion)
}

func TestRun_SameVersionRecordsInstalledVersion(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 140)
	buildAliceDatabase(t, env.dbPath, nil)

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionNone, result.Action)
	value, ok, err := env.store.Get(KeyDatabaseVersion)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "140", value)
}

func TestRun_OlderBundleDoesNotDowngrade(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 139)
	buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionNone, result.Action)
	assert.Equal(t, 140, result.ToVersion)
}

func TestRun_LegacyCountersAccumulate(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, map[string]string{
		entities.SettingKeyLegacyTotalAttempts: "5",
		entities.SettingKeyLegacyTotalCorrect:  "2",
	})
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	_, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assertAliceMigrated(t, env.dbPath, fx, "15", "9")
}

func TestRun_RecoversAfterCrashDuringReplace(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	// Simulate a crash right after the old file was deleted
	crashed := env.adapter(FileBundle{Path: env.bundlePath})
	_, err := crashed.backup(context.Background(), 140, 141)
	require.NoError(t, err)
	require.NoError(t, removeDatabaseFiles(env.dbPath))

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionRecovered, result.Action)
	assert.Equal(t, 140, result.FromVersion)
	assertAliceMigrated(t, env.dbPath, fx, "10", "7")
	assertCleanedUp(t, env.store, "141")
}

func TestRun_RecoversAfterCrashDuringRestore(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	crashed := env.adapter(FileBundle{Path: env.bundlePath})
	snapshot, err := crashed.backup(context.Background(), 140, 141)
	require.NoError(t, err)
	require.NoError(t, crashed.replace())
	// Partial restore before the crash
	require.NoError(t, crashed.restore(snapshot))

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionRecovered, result.Action)
	assertAliceMigrated(t, env.dbPath, fx, "10", "7")
}

func TestRun_RecoversWhenOldFileStillPresent(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	// Crash after backup, before replace
	_, err := env.adapter(FileBundle{Path: env.bundlePath}).backup(context.Background(), 140, 141)
	require.NoError(t, err)

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionRecovered, result.Action)
	assertAliceMigrated(t, env.dbPath, fx, "10", "7")
}

type brokenBundle struct {
	FileBundle
}

func (brokenBundle) Install(string) error {
	return errors.New("disk full")
}

func TestRun_FailedReplaceKeepsBackup(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	_, err := env.adapter(brokenBundle{FileBundle{Path: env.bundlePath}}).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, entities.ErrMigrationFailed)

	inProgress, err := env.adapter(FileBundle{Path: env.bundlePath}).InProgress()
	require.NoError(t, err)
	assert.True(t, inProgress)
	_, ok, err := env.store.Get(KeyBackup)
	require.NoError(t, err)
	assert.True(t, ok)

	// Next launch with a working bundle finishes the job
	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionRecovered, result.Action)
	assertAliceMigrated(t, env.dbPath, fx, "10", "7")
}

func TestRun_FlagWithoutBackupIsCleared(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	require.NoError(t, env.store.Set(KeyInProgress, "true"))

	result, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionInstalled, result.Action)
	assertCleanedUp(t, env.store, "141")
}

func TestRun_CancelledContext(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.adapter(FileBundle{Path: env.bundlePath}).Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, env.dbPath)
}

func TestRun_MissingBundle(t *testing.T) {
	env := setupTestEnv(t)

	_, err := env.adapter(FileBundle{Path: filepath.Join(env.dir, "missing.db")}).Run(context.Background())

	assert.Error(t, err)
}

func TestRun_FlushedAttemptsAreFoldedIntoLegacyStats(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	fx := buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	flushed := 0
	adapter := env.adapter(FileBundle{Path: env.bundlePath})
	adapter.flush = func(ctx context.Context, db *database.Database) error {
		repo := progress.NewRepository(db.DB)
		if _, err := repo.RecordAttempt(fx.userID, 9999, true); err != nil {
			return err
		}
		if _, err := repo.RecordAttempt(fx.userID, 9999, false); err != nil {
			return err
		}
		flushed++
		return nil
	}

	result, err := adapter.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, ActionMigrated, result.Action)
	assert.Equal(t, 1, flushed)
	assertAliceMigrated(t, env.dbPath, fx, "12", "8")

	db := openTestDB(t, env.dbPath)
	defer db.Close()
	var stale int64
	require.NoError(t, db.DB.Model(&entities.UserExerciseAttempt{}).Where("exercise_id = ?", 9999).Count(&stale).Error)
	assert.Zero(t, stale)
}

func TestRun_FlushErrorAbortsBeforeBackup(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)
	buildAliceDatabase(t, env.dbPath, nil)
	require.NoError(t, env.store.Set(KeyDatabaseVersion, "140"))

	adapter := env.adapter(FileBundle{Path: env.bundlePath})
	adapter.flush = func(ctx context.Context, db *database.Database) error {
		return errors.New("queue locked")
	}

	_, err := adapter.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue locked")

	inProgress, err := adapter.InProgress()
	require.NoError(t, err)
	assert.False(t, inProgress)
	_, ok, err := env.store.Get(KeyBackup)
	require.NoError(t, err)
	assert.False(t, ok)

	db := openTestDB(t, env.dbPath)
	defer db.Close()
	version, err := db.Version()
	require.NoError(t, err)
	assert.Equal(t, 140, version)
}

func TestRun_FlushNotCalledOnFirstInstall(t *testing.T) {
	env := setupTestEnv(t)
	buildBundle(t, env.bundlePath, 141)

	adapter := env.adapter(FileBundle{Path: env.bundlePath})
	adapter.flush = func(ctx context.Context, db *database.Database) error {
		t.Fatal("flush called without an installed database")
		return nil
	}

	result, err := adapter.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ActionInstalled, result.Action)
}
