package migration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/lingoplay/core/internal/database"
)

// Bundle is the read-only exercise database shipped with the app.
type Bundle interface {
	// Version returns the integer stored in the bundle's metadata table.
	Version() (int, error)
	// Install copies the bundle to dst.
	Install(dst string) error
}

// FileBundle is a bundle stored as a SQLite file on disk.
type FileBundle struct {
	Path string
}

func (b FileBundle) Version() (int, error) {
	if _, err := os.Stat(b.Path); err != nil {
		return 0, fmt.Errorf("bundle not found at %s: %w", b.Path, err)
	}
	db, err := database.NewDatabase(b.Path, database.ReadOnly())
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return db.Version()
}

// Install copies the bundle through a temporary file so dst only ever
// appears complete.
func (b FileBundle) Install(dst string) error {
	src, err := os.Open(b.Path)
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	tmp := dst + ".installing"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to copy bundle: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync bundle copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move bundle into place: %w", err)
	}
	return nil
}

// removeDatabaseFiles deletes a SQLite file and its WAL companions.
func removeDatabaseFiles(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
