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

// StatusCommand reports installed and bundled versions and whether an
// upgrade was interrupted.
type StatusCommand struct {
	Config *config.Config
	Out    io.Writer
}

func NewStatusCommand(cfg *config.Config) *StatusCommand {
	return &StatusCommand{Config: cfg}
}

func (cmd *StatusCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	pathFlags(fs, cmd.Config)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s status [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Show database versions and migration state.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}
	return fs.Parse(args)
}

func (cmd *StatusCommand) Run(ctx context.Context) error {
	out := stdout(cmd.Out)

	store, adapter, err := entrypoint.OpenStore(cmd.Config, verboseLogger(os.Stderr, false))
	if err != nil {
		return err
	}
	defer store.Close()

	installed, err := adapter.InstalledVersion()
	if err != nil {
		return err
	}
	if installed.Source == migration.SourceNone {
		fmt.Fprintf(out, "Installed: none\n")
	} else {
		fmt.Fprintf(out, "Installed: version %d (from %s)\n", installed.Version, installed.Source)
	}

	bundle := migration.FileBundle{Path: cmd.Config.Database.BundlePath}
	if v, err := bundle.Version(); err != nil {
		fmt.Fprintf(out, "Bundle:    unavailable (%v)\n", err)
	} else {
		fmt.Fprintf(out, "Bundle:    version %d\n", v)
		if v > installed.Version {
			fmt.Fprintf(out, "Upgrade:   pending\n")
		}
	}

	pending, err := adapter.InProgress()
	if err != nil {
		return err
	}
	if pending {
		fmt.Fprintf(out, "Migration: interrupted, will resume on next start\n")
	}
	return nil
}
