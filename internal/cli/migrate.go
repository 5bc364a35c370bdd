package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/entrypoint"
	"github.com/lingoplay/core/internal/migration"
)

// MigrateCommand installs or upgrades the exercise database from the bundle
// without starting the broker.
type MigrateCommand struct {
	Config  *config.Config
	Verbose bool
	Out     io.Writer
}

func NewMigrateCommand(cfg *config.Config) *MigrateCommand {
	return &MigrateCommand{Config: cfg}
}

func (cmd *MigrateCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	pathFlags(fs, cmd.Config)
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s migrate [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Install the bundled exercise database, or upgrade the installed one\n")
		fmt.Fprintf(os.Stderr, "when the bundle is newer. User data is carried over.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	return fs.Parse(args)
}

func (cmd *MigrateCommand) Run(ctx context.Context) error {
	out := stdout(cmd.Out)

	if _, err := os.Stat(cmd.Config.Database.BundlePath); err != nil {
		return fmt.Errorf("bundle not found: %s", cmd.Config.Database.BundlePath)
	}

	store, adapter, err := entrypoint.OpenStore(cmd.Config, verboseLogger(os.Stderr, cmd.Verbose))
	if err != nil {
		return err
	}
	defer store.Close()

	result, err := adapter.Run(ctx)
	if err != nil {
		return err
	}

	switch result.Action {
	case migration.ActionNone:
		fmt.Fprintf(out, "Database is up to date (version %d)\n", result.ToVersion)
	case migration.ActionInstalled:
		fmt.Fprintf(out, "Installed bundled database (version %d)\n", result.ToVersion)
	default:
		fmt.Fprintf(out, "Database %s from version %d to %d\n", result.Action, result.FromVersion, result.ToVersion)
		if result.SnapshotID != "" {
			fmt.Fprintf(out, "Snapshot: %s\n", result.SnapshotID)
		}
	}
	return nil
}
