// Command generate_bundle creates a bundled exercise database with the demo
// content, for development and tests of the migration path.
// Usage: go run ./cmd/generate_bundle [-db path/to/exercises.db] [-version N]
package main

import (
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/demo"
	"github.com/lingoplay/core/internal/logging"
)

func main() {
	dbPath := flag.String("db", config.DefaultBundleDatabasePath, "path to the bundle database file")
	version := flag.Int("version", 1, "version written to the bundle metadata")
	verbose := flag.Bool("verbose", false, "log every seeded exercise")
	flag.Parse()

	level := "info"
	if *verbose {
		level = "debug"
	}
	log, err := logging.New(level, logging.FormatText)
	if err != nil {
		panic(err)
	}

	log.WithField("path", *dbPath).Infof("generating bundle version %d", *version)

	// Start fresh so removed content does not linger
	for _, p := range []string{*dbPath, *dbPath + "-wal", *dbPath + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Fatalf("failed to remove %s: %v", p, err)
		}
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()

	for _, ex := range demo.Content {
		log.WithFields(logrus.Fields{
			"topic":    ex.Topic,
			"language": ex.Language,
			"type":     ex.Type,
		}).Debugf("seeding %s", ex.Name)
	}

	if err := demo.Seed(db, demo.Content, *version); err != nil {
		log.Fatalf("failed to seed bundle: %v", err)
	}

	log.WithField("exercises", len(demo.Content)).Info("bundle generated")
}
