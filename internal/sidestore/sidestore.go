// Package sidestore provides a namespaced key/value store kept in its own
// SQLite file, separate from the exercise database.
package sidestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/lingoplay/core/internal/entities"
)

const (
	// DefaultNamespace is used when Config.Namespace is empty
	DefaultNamespace = "lingoplay"

	// DefaultFileName is the default name of the side store file
	DefaultFileName = "sidestore.db"
)

// Store is a namespaced key/value store
type Store struct {
	db        *gorm.DB
	namespace string
	now       func() time.Time
}

// Config holds configuration for the side store
type Config struct {
	// DatabasePath is the path to the SQLite file. It must not be the
	// exercise database itself.
	DatabasePath string

	// Namespace prefixes every key. Defaults to DefaultNamespace.
	Namespace string
}

// New opens (or creates) the side store file.
func New(cfg Config) (*Store, error) {
	if cfg.DatabasePath == "" {
		return nil, errors.New("side store path is required")
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create side store directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(cfg.DatabasePath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open side store: %w", err)
	}

	if err := db.AutoMigrate(&entities.SideEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate side store schema: %w", err)
	}

	return &Store{db: db, namespace: namespace, now: time.Now}, nil
}

// Namespace returns the namespace the store reads and writes.
func (s *Store) Namespace() string {
	return s.namespace
}

// Get returns the value under key and whether it exists
func (s *Store) Get(key string) (string, bool, error) {
	var entry entities.SideEntry
	err := s.db.Where("namespace = ? AND key = ?", s.namespace, key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

// Set creates or replaces the value under key
func (s *Store) Set(key, value string) error {
	entry := entities.SideEntry{
		Namespace: s.namespace,
		Key:       key,
		Value:     value,
		UpdatedAt: s.now(),
	}
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	err := s.db.Where("namespace = ? AND key = ?", s.namespace, key).
		Delete(&entities.SideEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Keys lists the keys of the namespace in lexical order
func (s *Store) Keys() ([]string, error) {
	keys := []string{}
	err := s.db.Model(&entities.SideEntry{}).
		Where("namespace = ?", s.namespace).
		Order("key ASC").
		Pluck("key", &keys).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
