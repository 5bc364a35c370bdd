package database

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lingoplay/core/internal/entities"
)

// Lookup rows every installation needs for the default user settings.
var (
	defaultLanguages    = []string{entities.DefaultLanguage}
	defaultDifficulties = []string{entities.DefaultDifficulty, "Intermediate", "Advanced"}
)

type tabler interface {
	TableName() string
}

// schemaModels is every table owned by the exercise database.
var schemaModels = []any{
	&entities.Metadata{},
	&entities.Language{},
	&entities.Difficulty{},
	&entities.Topic{},
	&entities.ExerciseInfo{},
	&entities.PairExercise{},
	&entities.ConversationTurn{},
	&entities.ConversationSummary{},
	&entities.TranslationExercise{},
	&entities.User{},
	&entities.UserSetting{},
	&entities.UserExerciseAttempt{},
	&entities.ChatSession{},
	&entities.ChatMessage{},
}

type Database struct {
	DB *gorm.DB
}

type options struct {
	logLevel logger.LogLevel
	readOnly bool
	noSchema bool
}

// Option customises how NewDatabase opens the file.
type Option func(*options)

// WithLogLevel sets the gorm SQL log level. Default: logger.Warn.
func WithLogLevel(level logger.LogLevel) Option {
	return func(o *options) {
		o.logLevel = level
	}
}

// ReadOnly opens the file without write access and skips schema creation.
// Used to inspect a bundled database before installing it.
func ReadOnly() Option {
	return func(o *options) {
		o.readOnly = true
		o.noSchema = true
	}
}

// NewDatabase opens the SQLite file at dbPath and ensures the schema.
// Any failure is reported as entities.ErrDatabaseUnavailable.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	o := options{logLevel: logger.Warn}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := dbPath
	if o.readOnly {
		dsn = "file:" + dbPath + "?mode=ro"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(o.logLevel),
		// Orphaned or mis-typed payload rows from earlier content passes are
		// tolerated and detected at read time, so no FK constraints.
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, entities.Unavailable("open database", err)
	}

	database := &Database{DB: db}
	if o.noSchema {
		return database, nil
	}

	if err := database.EnsureSchema(); err != nil {
		database.Close()
		return nil, err
	}

	logrus.WithField("path", dbPath).Debug("database initialized")

	return database, nil
}

// EnsureSchema creates missing tables and seeds default lookup rows. It is
// safe to call on every startup.
func (d *Database) EnsureSchema() error {
	if err := d.DB.AutoMigrate(schemaModels...); err != nil {
		return entities.Unavailable("migrate schema", err)
	}
	if err := d.seedLookups(); err != nil {
		return err
	}
	return nil
}

// ValidateSchema reports which tables are missing, if any.
func (d *Database) ValidateSchema() error {
	var missing []string
	for _, model := range schemaModels {
		if !d.DB.Migrator().HasTable(model) {
			missing = append(missing, model.(tabler).TableName())
		}
	}
	if len(missing) > 0 {
		return entities.Unavailable("validate schema", fmt.Errorf("missing tables: %v", missing))
	}
	return nil
}

// Ping checks that the underlying connection is still usable.
func (d *Database) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return entities.Unavailable("ping", err)
	}
	return entities.Unavailable("ping", sqlDB.Ping())
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) seedLookups() error {
	for _, name := range defaultLanguages {
		if _, err := d.GetOrCreate(entities.LookupLanguage, name); err != nil {
			return err
		}
	}
	for _, level := range defaultDifficulties {
		if _, err := d.GetOrCreate(entities.LookupDifficulty, level); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreate returns the id of the lookup row called name, inserting it
// first when absent. Names are matched case-sensitively.
func (d *Database) GetOrCreate(kind entities.LookupKind, name string) (uint, error) {
	if name == "" {
		return 0, entities.ErrEmptyName
	}

	switch kind {
	case entities.LookupLanguage:
		var language entities.Language
		if err := d.DB.Where(entities.Language{Name: name}).FirstOrCreate(&language).Error; err != nil {
			return 0, entities.Unavailable("get or create language", err)
		}
		return language.ID, nil
	case entities.LookupTopic:
		var topic entities.Topic
		if err := d.DB.Where(entities.Topic{Name: name}).FirstOrCreate(&topic).Error; err != nil {
			return 0, entities.Unavailable("get or create topic", err)
		}
		return topic.ID, nil
	case entities.LookupDifficulty:
		var difficulty entities.Difficulty
		if err := d.DB.Where(entities.Difficulty{Level: name}).FirstOrCreate(&difficulty).Error; err != nil {
			return 0, entities.Unavailable("get or create difficulty", err)
		}
		return difficulty.ID, nil
	}

	return 0, fmt.Errorf("%w: %q", entities.ErrUnknownLookupKind, kind)
}

// GetMetadata returns the metadata value for key and whether it exists.
func (d *Database) GetMetadata(key string) (string, bool, error) {
	var row entities.Metadata
	err := d.DB.Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, entities.Unavailable("get metadata", err)
	}
	return row.Value, true, nil
}

func (d *Database) SetMetadata(key, value string) error {
	err := d.DB.Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&entities.Metadata{Key: key, Value: value}).Error
	return entities.Unavailable("set metadata", err)
}

// Version returns the integer stored under the metadata "version" key, or
// 0 when the key is absent.
func (d *Database) Version() (int, error) {
	raw, ok, err := d.GetMetadata(entities.MetadataKeyVersion)
	if err != nil || !ok {
		return 0, err
	}
	version, err := strconv.Atoi(raw)
	if err != nil {
		return 0, entities.Unavailable("parse version", fmt.Errorf("invalid version %q: %w", raw, err))
	}
	return version, nil
}

func (d *Database) SetVersion(version int) error {
	return d.SetMetadata(entities.MetadataKeyVersion, strconv.Itoa(version))
}

// ListLanguages returns every language ordered by name.
func (d *Database) ListLanguages() ([]entities.Language, error) {
	languages := []entities.Language{}
	if err := d.DB.Order("name ASC").Find(&languages).Error; err != nil {
		return nil, entities.Unavailable("list languages", err)
	}
	return languages, nil
}

// ListDifficulties returns every difficulty in insertion order, which is
// the order levels were seeded in.
func (d *Database) ListDifficulties() ([]entities.Difficulty, error) {
	difficulties := []entities.Difficulty{}
	if err := d.DB.Order("id ASC").Find(&difficulties).Error; err != nil {
		return nil, entities.Unavailable("list difficulties", err)
	}
	return difficulties, nil
}
