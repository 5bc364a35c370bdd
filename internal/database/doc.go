// Package database provides the local exercise database access layer.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Connection setup, schema, get-or-create lookups, metadata
//	├── exercises/       # Topics, exercise selection and per-type payloads
//	├── settings/        # Per-user key/value settings and the active user context
//	├── users/           # User management
//	├── progress/        # Attempt recording and aggregate statistics
//	└── chats/           # Chatbot sessions and messages
//
// # Lifecycle
//
// A process opens one Database at startup and closes it on shutdown. The
// handle is passed explicitly to every repository; there is no package
// level instance:
//
//	db, err := database.NewDatabase("./lingoplay.db")
//	defer db.Close()
//
//	exercisesRepo := exercises.NewRepository(db.DB)
//	settingsRepo := settings.NewRepository(db.DB)
//
// The migration adapter is the only component that opens its own handles,
// and it runs before the process-wide handle is opened.
//
// # Errors
//
// Driver failures are returned as entities.ErrDatabaseUnavailable (see
// entities.DatabaseError). Empty results are never errors: list operations
// return empty slices and single-row lookups return nil.
package database
