package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/database/progress"
	"github.com/lingoplay/core/internal/database/users"
	"github.com/lingoplay/core/internal/sidestore"
	"github.com/lingoplay/core/internal/tasks"
)

// SnapshotCommand writes a stats snapshot for every user right away,
// outside the scheduler.
type SnapshotCommand struct {
	Config  *config.Config
	Verbose bool
	Out     io.Writer
}

func NewSnapshotCommand(cfg *config.Config) *SnapshotCommand {
	return &SnapshotCommand{Config: cfg}
}

func (cmd *SnapshotCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("snapshot-stats", flag.ContinueOnError)
	pathFlags(fs, cmd.Config)
	fs.BoolVar(&cmd.Verbose, "verbose", false, "Enable verbose logging")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s snapshot-stats [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Store every user's aggregate stats in the side store.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	return fs.Parse(args)
}

func (cmd *SnapshotCommand) Run(ctx context.Context) error {
	out := stdout(cmd.Out)

	db, err := database.NewDatabase(cmd.Config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	store, err := sidestore.New(sidestore.Config{
		DatabasePath: cmd.Config.SideStore.Path,
		Namespace:    cmd.Config.SideStore.Namespace,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	snapshotter := tasks.NewStatsSnapshotter(
		users.NewRepository(db.DB),
		progress.NewRepository(db.DB),
		store,
		verboseLogger(os.Stderr, cmd.Verbose),
	)
	written, err := snapshotter.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Stored %d snapshot(s)\n", written)
	return nil
}
