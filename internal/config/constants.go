package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the installed exercise database
	DefaultDatabasePath = "./data/exercises.db"

	// DefaultBundleDatabasePath is the read-only database shipped with the app
	DefaultBundleDatabasePath = "./assets/exercises.db"
)

// DefaultSnapshotSchedule runs the stats snapshot daily at 03:00.
const DefaultSnapshotSchedule = "0 3 * * *"
