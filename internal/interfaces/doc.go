// Package interfaces documents the core abstractions used throughout the application.
//
// # Interface Categories
//
// ## Data Adapters
//
//   - ExerciseDataAdapter: Topics, exercise payloads and attempts (internal/adapters/adapters.go)
//   - UserSettingsDataAdapter: Active user preferences and reference data (internal/adapters/adapters.go)
//   - ProgressDataAdapter: Exercise types, topic progress, fill-in-blank, mixed sessions, stats (internal/adapters/adapters.go)
//   - DataAdapter: All of the above. Implemented by local.Adapter (in-process SQLite)
//     and ipc.Client (HTTP client of the broker)
//
// ## Broker Dependencies
//
//   - ExerciseReader, AttemptRecorder: Adapter views used by controllers (internal/http)
//   - AttemptEnqueuer: Queues attempts instead of writing them inline (internal/http/attempts.go)
//   - DatabaseChecker, MigrationStatus: Health probes (internal/http/health.go)
//
// ## Storage
//
//   - migration.Bundle: The shipped exercise database (internal/migration/bundle.go)
//   - migration.Store: The side store holding versions and backups (internal/migration/migration.go)
//   - tasks.SnapshotStore: Where stats snapshots are written (internal/tasks/snapshot_stats.go)
//
// # Adding a New Exercise Kind
//
//  1. Add the payload entity in internal/entities/ and register it in
//     schemaModels (internal/database/database.go)
//
//  2. Teach the exercises repository to resolve it:
//
//     func payloadTableFor(t entities.ExerciseType) (string, bool)
//
//  3. Add a loader to ProgressDataAdapter or ExerciseDataAdapter and
//     implement it in both local and ipc
//
//  4. Register the route in internal/http/router.go
//
// # Adding a New Database Domain
//
//  1. Create sub-package: internal/database/<domain>/
//
//  2. Define repository:
//
//     type Repository struct { db *gorm.DB }
//
//     func NewRepository(db *gorm.DB) *Repository
//
//  3. Add a compile-time check in checks.go:
//
//     var _ SomeStore = (*Repository)(nil)
//
// # Compile-Time Interface Checks
//
// All implementations should include compile-time checks to ensure they satisfy
// their interfaces. This catches missing methods at compile time rather than runtime:
//
//	var _ SomeInterface = (*MyImplementation)(nil)
//
// See checks.go for examples.
package interfaces
