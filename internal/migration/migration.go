// Package migration installs the bundled exercise database and upgrades
// it when a newer bundle ships.
//
// An upgrade runs four phases in order: backup, replace, restore, cleanup.
// The backup is written to the side store, which lives in a different file
// from the database being replaced. A flag in the side store marks an
// upgrade in progress; when it is found at startup the backup phase is
// skipped and the upgrade resumes from the stored snapshot.
//
// Per-exercise attempt history does not survive an upgrade. It is folded
// into legacy_* user settings instead.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"

	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/entities"
	"github.com/lingoplay/core/internal/sidestore"
)

// Side store keys
const (
	KeyDatabaseVersion = "database_version"
	KeyBackup          = "database_migration_backup"
	KeyInProgress      = "migration_in_progress"
)

// Action is what Run ended up doing.
type Action string

const (
	ActionNone      Action = "none"
	ActionInstalled Action = "installed"
	ActionMigrated  Action = "migrated"
	ActionRecovered Action = "recovered"
)

type Result struct {
	Action      Action `json:"action"`
	FromVersion int    `json:"from_version"`
	ToVersion   int    `json:"to_version"`
	SnapshotID  string `json:"snapshot_id,omitempty"`
}

// Version sources reported by InstalledVersion
const (
	SourceSideStore = "sidestore"
	SourceDatabase  = "database"
	SourceNone      = "none"
)

type VersionInfo struct {
	Version int    `json:"version"`
	Source  string `json:"source"`
}

// Store is the subset of the side store the adapter needs.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
}

var _ Store = (*sidestore.Store)(nil)

// FlushFunc writes pending work into the installed database before it is
// backed up.
type FlushFunc func(ctx context.Context, db *database.Database) error

type Adapter struct {
	dbPath   string
	bundle   Bundle
	store    Store
	log      logrus.FieldLogger
	logLevel logger.LogLevel
	now      func() time.Time
	flush    FlushFunc
}

type Option func(*Adapter)

func WithLogger(log logrus.FieldLogger) Option {
	return func(a *Adapter) {
		a.log = log
	}
}

// WithSQLLogLevel sets the gorm log level of the handles opened per phase.
func WithSQLLogLevel(level logger.LogLevel) Option {
	return func(a *Adapter) {
		a.logLevel = level
	}
}

// WithFlush runs fn against the old database at the start of the backup
// phase. Attempts written by fn are folded into the legacy stats like any
// other. An error aborts the upgrade before anything is changed.
func WithFlush(fn FlushFunc) Option {
	return func(a *Adapter) {
		a.flush = fn
	}
}

func New(dbPath string, bundle Bundle, store Store, opts ...Option) *Adapter {
	a := &Adapter{
		dbPath:   dbPath,
		bundle:   bundle,
		store:    store,
		log:      logrus.StandardLogger(),
		logLevel: logger.Silent,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *Adapter) open() (*database.Database, error) {
	return database.NewDatabase(a.dbPath, database.WithLogLevel(a.logLevel))
}

// InstalledVersion reports the version of the installed database. The
// side store wins; the metadata table of the file is the fallback.
func (a *Adapter) InstalledVersion() (VersionInfo, error) {
	raw, ok, err := a.store.Get(KeyDatabaseVersion)
	if err != nil {
		return VersionInfo{}, err
	}
	if ok {
		v, err := strconv.Atoi(raw)
		if err == nil {
			return VersionInfo{Version: v, Source: SourceSideStore}, nil
		}
		a.log.WithField("value", raw).Warn("ignoring invalid installed database version")
	}

	if !fileExists(a.dbPath) {
		return VersionInfo{Source: SourceNone}, nil
	}

	v, err := a.fileVersion()
	if err != nil {
		return VersionInfo{}, err
	}
	return VersionInfo{Version: v, Source: SourceDatabase}, nil
}

func (a *Adapter) fileVersion() (int, error) {
	db, err := database.NewDatabase(a.dbPath, database.ReadOnly())
	if err != nil {
		return 0, err
	}
	defer db.Close()

	// Files older than the metadata table carry no version
	if !db.DB.Migrator().HasTable(&entities.Metadata{}) {
		return 0, nil
	}
	return db.Version()
}

// InProgress reports whether an interrupted upgrade is pending.
func (a *Adapter) InProgress() (bool, error) {
	_, ok, err := a.store.Get(KeyInProgress)
	return ok, err
}

// Run brings the installed database up to the bundle. It must run before
// the application opens its own handle. Running it again right after a
// successful run does nothing.
func (a *Adapter) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bundleVersion, err := a.bundle.Version()
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle version: %w", err)
	}

	inProgress, err := a.InProgress()
	if err != nil {
		return nil, err
	}
	if inProgress {
		result, err := a.recover(ctx, bundleVersion)
		if !errors.Is(err, errNoBackup) {
			return result, err
		}
		a.log.Warn("migration flag set without a backup, clearing it")
		if err := a.store.Delete(KeyInProgress); err != nil {
			return nil, err
		}
	}

	if !fileExists(a.dbPath) {
		return a.install(bundleVersion)
	}

	installed, err := a.InstalledVersion()
	if err != nil {
		return nil, err
	}

	if bundleVersion <= installed.Version {
		if installed.Source != SourceSideStore {
			if err := a.store.Set(KeyDatabaseVersion, strconv.Itoa(installed.Version)); err != nil {
				return nil, err
			}
		}
		return &Result{Action: ActionNone, FromVersion: installed.Version, ToVersion: installed.Version}, nil
	}

	return a.migrate(ctx, installed.Version, bundleVersion)
}

// install handles the first run: there is no database to preserve.
func (a *Adapter) install(bundleVersion int) (*Result, error) {
	a.log.WithField("version", bundleVersion).Info("installing bundled database")

	if err := a.bundle.Install(a.dbPath); err != nil {
		return nil, fmt.Errorf("failed to install bundled database: %w", err)
	}
	if err := a.store.Set(KeyDatabaseVersion, strconv.Itoa(bundleVersion)); err != nil {
		return nil, err
	}
	return &Result{Action: ActionInstalled, ToVersion: bundleVersion}, nil
}

func (a *Adapter) migrate(ctx context.Context, from, to int) (*Result, error) {
	log := a.log.WithFields(logrus.Fields{"from": from, "to": to})
	log.Info("migrating database")

	snapshot, err := a.backup(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to back up user data: %w", err)
	}
	log = log.WithField("snapshot", snapshot.ID)

	if err := a.finish(ctx, snapshot, to, true); err != nil {
		log.WithError(err).Error("migration failed, backup kept")
		return nil, err
	}

	log.Info("migration complete")
	return &Result{Action: ActionMigrated, FromVersion: from, ToVersion: to, SnapshotID: snapshot.ID}, nil
}

var errNoBackup = errors.New("no migration backup")

func (a *Adapter) recover(ctx context.Context, bundleVersion int) (*Result, error) {
	raw, ok, err := a.store.Get(KeyBackup)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errNoBackup
	}
	snapshot, err := decodeSnapshot(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrMigrationFailed, err)
	}

	log := a.log.WithFields(logrus.Fields{"snapshot": snapshot.ID, "to": bundleVersion})
	log.Warn("resuming interrupted migration")

	replace := true
	if fileExists(a.dbPath) {
		v, err := a.fileVersion()
		replace = err != nil || v != bundleVersion
	}

	if err := a.finish(ctx, snapshot, bundleVersion, replace); err != nil {
		log.WithError(err).Error("migration recovery failed, backup kept")
		return nil, err
	}

	log.Info("migration recovered")
	return &Result{
		Action:      ActionRecovered,
		FromVersion: snapshot.FromVersion,
		ToVersion:   bundleVersion,
		SnapshotID:  snapshot.ID,
	}, nil
}

// finish runs replace (optionally), restore and cleanup. Any failure is
// reported as ErrMigrationFailed and leaves the backup in place.
func (a *Adapter) finish(ctx context.Context, snapshot *Snapshot, to int, replace bool) error {
	if replace {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", entities.ErrMigrationFailed, err)
		}
		if err := a.replace(); err != nil {
			return fmt.Errorf("%w: replace: %w", entities.ErrMigrationFailed, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", entities.ErrMigrationFailed, err)
	}
	if err := a.restore(snapshot); err != nil {
		return fmt.Errorf("%w: restore: %w", entities.ErrMigrationFailed, err)
	}

	if err := a.cleanup(to); err != nil {
		return fmt.Errorf("%w: cleanup: %w", entities.ErrMigrationFailed, err)
	}
	return nil
}

// backup is phase 1. The snapshot is stored before the flag is raised, so
// a set flag always has a backup behind it.
func (a *Adapter) backup(ctx context.Context, from, to int) (*Snapshot, error) {
	db, err := a.open()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	if a.flush != nil {
		if err := a.flush(ctx, db); err != nil {
			return nil, fmt.Errorf("flush pending writes: %w", err)
		}
	}

	snapshot, err := takeSnapshot(db, from, to, a.now())
	if err != nil {
		return nil, err
	}
	raw, err := snapshot.encode()
	if err != nil {
		return nil, err
	}

	if err := a.store.Set(KeyBackup, raw); err != nil {
		return nil, err
	}
	if err := a.store.Set(KeyInProgress, "true"); err != nil {
		return nil, err
	}

	a.log.WithFields(logrus.Fields{
		"snapshot": snapshot.ID,
		"users":    len(snapshot.Users),
		"settings": len(snapshot.Settings),
		"chats":    len(snapshot.Chats),
	}).Info("user data backed up")
	return snapshot, nil
}

// replace is phase 2.
func (a *Adapter) replace() error {
	if err := removeDatabaseFiles(a.dbPath); err != nil {
		return err
	}
	return a.bundle.Install(a.dbPath)
}

// restore is phase 3.
func (a *Adapter) restore(snapshot *Snapshot) error {
	db, err := a.open()
	if err != nil {
		return err
	}
	defer db.Close()

	return snapshot.apply(db)
}

// cleanup is phase 4. The version is recorded before the flag is cleared
// so an interruption here only repeats an idempotent restore.
func (a *Adapter) cleanup(to int) error {
	if err := a.store.Set(KeyDatabaseVersion, strconv.Itoa(to)); err != nil {
		return err
	}
	if err := a.store.Delete(KeyInProgress); err != nil {
		return err
	}
	return a.store.Delete(KeyBackup)
}
