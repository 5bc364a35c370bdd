package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/lingoplay/core/internal/adapters"
	"github.com/lingoplay/core/internal/adapters/ipc"
	"github.com/lingoplay/core/internal/adapters/local"
	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/database"
	"github.com/lingoplay/core/internal/entities"
	"github.com/lingoplay/core/internal/logging"
	"github.com/lingoplay/core/internal/sidestore"
	"github.com/lingoplay/core/internal/tasks"
)

// StatsCommand prints the active user's progress, read either from the
// database file or from a running broker.
type StatsCommand struct {
	Config       *config.Config
	BrokerURL    string
	LastSnapshot bool
	Out          io.Writer
}

func NewStatsCommand(cfg *config.Config) *StatsCommand {
	return &StatsCommand{Config: cfg, BrokerURL: cfg.Broker.URL}
}

func (cmd *StatsCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	pathFlags(fs, cmd.Config)
	fs.StringVar(&cmd.BrokerURL, "broker", cmd.BrokerURL, "Read through the broker at this URL instead of opening the database")
	fs.BoolVar(&cmd.LastSnapshot, "last-snapshot", false, "Also print the last stored stats snapshot")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s stats [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print attempt statistics and per-topic progress for the active user.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s stats -db ./data/exercises.db\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stats -broker http://127.0.0.1:8188\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}
	if cmd.LastSnapshot && cmd.BrokerURL != "" {
		return fmt.Errorf("-last-snapshot reads the side store and cannot be combined with -broker")
	}
	return nil
}

func (cmd *StatsCommand) Run(ctx context.Context) error {
	out := stdout(cmd.Out)

	adapter, closeFn, err := cmd.adapter()
	if err != nil {
		return err
	}
	defer closeFn()

	uc, err := adapter.LoadUserSettings(ctx)
	if err != nil {
		return err
	}
	stats, err := adapter.LoadStats(ctx)
	if err != nil {
		return err
	}
	progress, err := adapter.LoadTopicProgress(ctx, "")
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "User: %s (%s, %s)\n", uc.Username, uc.Settings.Language, uc.Settings.Difficulty)
	printAggregate(out, "Current", stats.Current)
	if stats.Legacy != nil {
		printAggregate(out, "Before last migration", stats.Legacy)
	}

	if len(progress) > 0 {
		fmt.Fprintf(out, "\nTopics:\n")
		for _, p := range progress {
			fmt.Fprintf(out, "  %-20s %d/%d (%d%%)\n", p.TopicName, p.CompletedExercises, p.TotalExercises, p.Percentage)
		}
	}

	if cmd.LastSnapshot {
		return cmd.printSnapshot(out, uc.UserID)
	}
	return nil
}

func (cmd *StatsCommand) adapter() (adapters.DataAdapter, func(), error) {
	if cmd.BrokerURL != "" {
		return ipc.New(cmd.BrokerURL), func() {}, nil
	}
	db, err := database.NewDatabase(cmd.Config.Database.Path, database.WithLogLevel(logging.SQLLevel(cmd.Config.Database.LogSQL)))
	if err != nil {
		return nil, nil, err
	}
	return local.New(db, local.WithDefaultUserName(cmd.Config.User.DefaultName)), func() { db.Close() }, nil
}

func (cmd *StatsCommand) printSnapshot(out io.Writer, userID uint) error {
	store, err := sidestore.New(sidestore.Config{
		DatabasePath: cmd.Config.SideStore.Path,
		Namespace:    cmd.Config.SideStore.Namespace,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	snapshot, err := tasks.LoadStatsSnapshot(store, userID)
	if err != nil {
		return err
	}
	if snapshot == nil {
		fmt.Fprintf(out, "\nNo snapshot stored yet\n")
		return nil
	}
	fmt.Fprintln(out)
	printAggregate(out, "Snapshot of "+snapshot.TakenAt.Format("2006-01-02 15:04"), snapshot.Stats)
	return nil
}

func printAggregate(out io.Writer, title string, s *entities.AggregateStats) {
	if s == nil {
		return
	}
	fmt.Fprintf(out, "%s: %d attempts, %d correct\n", title, s.TotalAttempts, s.TotalCorrect)

	languages := make([]string, 0, len(s.PerLanguage))
	for name := range s.PerLanguage {
		languages = append(languages, name)
	}
	sort.Strings(languages)
	for _, name := range languages {
		c := s.PerLanguage[name]
		fmt.Fprintf(out, "  %-20s %d/%d\n", name, c.Correct, c.Attempts)
	}
}
