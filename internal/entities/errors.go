package entities

import (
	"errors"
	"fmt"
)

var (
	// ErrDatabaseUnavailable marks a missing or corrupt schema, a driver
	// that failed to open, or a constraint violation. Callers show a
	// retry/reinstall prompt for it.
	ErrDatabaseUnavailable = errors.New("database unavailable")

	// ErrMigrationFailed marks a failure in the replace, restore or cleanup
	// phase. The side-store backup is left intact.
	ErrMigrationFailed = errors.New("migration failed")

	ErrUnknownLookupKind = errors.New("unknown lookup kind")
	ErrEmptyName         = errors.New("name must not be empty")
)

// DatabaseError wraps a driver-level error raised by a repository call.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrDatabaseUnavailable, e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

func (e *DatabaseError) Is(target error) bool {
	return target == ErrDatabaseUnavailable
}

// Unavailable wraps err as a DatabaseError. It returns nil for a nil err.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return err
	}
	return &DatabaseError{Op: op, Err: err}
}

// IsUnavailable reports whether err is a database-unavailable failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDatabaseUnavailable)
}
