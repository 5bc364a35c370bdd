package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/adapters/ipc"
	"github.com/lingoplay/core/internal/adapters/local"
	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/database/progress"
	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/http"
	"github.com/lingoplay/core/internal/migration"
	"github.com/lingoplay/core/internal/sidestore"
	"github.com/lingoplay/core/internal/tasks"
)

// =============================================================================
// Data Adapters
// =============================================================================

// DataAdapter implementations
var _ adapters.DataAdapter = (*local.Adapter)(nil)
var _ adapters.DataAdapter = (*ipc.Client)(nil)

// Broker controllers accept the narrower views
var _ http.AttemptRecorder = (*local.Adapter)(nil)
var _ http.ExerciseReader = (*local.Adapter)(nil)

// =============================================================================
// Broker Dependencies
// =============================================================================

var _ http.DatabaseChecker = (*database.Database)(nil)
var _ http.MigrationStatus = (*migration.Adapter)(nil)
var _ http.AttemptEnqueuer = (*tasks.Client)(nil)

// =============================================================================
// Background Work
// =============================================================================

var _ tasks.AttemptRecorder = (*progress.Repository)(nil)
var _ tasks.StatsComputer = (*progress.Repository)(nil)
var _ tasks.UserLister = (*users.Repository)(nil)
var _ tasks.SnapshotStore = (*sidestore.Store)(nil)
var _ migration.Store = (*sidestore.Store)(nil)
var _ migration.Bundle = migration.FileBundle{}
