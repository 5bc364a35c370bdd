package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lingoplay/core/internal/cli"
	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/entrypoint"
	"github.com/lingoplay/core/internal/logging"
)

// Version information - set at build time via ldflags
var (
	Version = "dev"
	Commit  = "unknown"
)

type command interface {
	ParseFlags(args []string) error
	Run(ctx context.Context) error
}

func main() {
	cfg := config.NewConfig()

	// If no arguments or "serve" command, run the broker
	if len(os.Args) < 2 || os.Args[1] == "serve" {
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := entrypoint.Run(cfg, log, Version); err != nil {
			log.WithError(err).Fatal("broker stopped")
		}
		return
	}

	name := os.Args[1]
	args := os.Args[2:]

	var cmd command
	switch name {
	case "migrate":
		cmd = cli.NewMigrateCommand(cfg)
	case "status":
		cmd = cli.NewStatusCommand(cfg)
	case "stats":
		cmd = cli.NewStatsCommand(cfg)
	case "snapshot-stats":
		cmd = cli.NewSnapshotCommand(cfg)
	case "version":
		fmt.Printf("lingoplay %s (%s)\n", Version, Commit)
		return
	case "-h", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage()
		os.Exit(1)
	}

	if err := cmd.ParseFlags(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [options]\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  serve           Start the localhost broker (default if no command given)\n")
	fmt.Fprintf(os.Stderr, "  migrate         Install or upgrade the exercise database from the bundle\n")
	fmt.Fprintf(os.Stderr, "  status          Show database versions and migration state\n")
	fmt.Fprintf(os.Stderr, "  stats           Print the active user's statistics\n")
	fmt.Fprintf(os.Stderr, "  snapshot-stats  Store every user's stats in the side store\n")
	fmt.Fprintf(os.Stderr, "  version         Print the build version\n")
	fmt.Fprintf(os.Stderr, "\nUse '%s <command> -h' for help on a specific command.\n", os.Args[0])
}
