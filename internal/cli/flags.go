package cli

import (
	"flag"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/lingoplay/core/internal/config"
	"github.com/lingoplay/core/internal/logging"
)

// pathFlags binds the database location flags shared by every command.
// Defaults come from the environment configuration.
func pathFlags(fs *flag.FlagSet, cfg *config.Config) {
	fs.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "Path to the installed exercise database")
	fs.StringVar(&cfg.Database.BundlePath, "bundle", cfg.Database.BundlePath, "Path to the bundled exercise database")
	fs.StringVar(&cfg.SideStore.Path, "sidestore", cfg.SideStore.Path, "Path to the side store kept outside the exercise database")
}

func verboseLogger(out io.Writer, verbose bool) logrus.FieldLogger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	log, err := logging.NewWithOutput(out, level, logging.FormatText)
	if err != nil {
		return logrus.StandardLogger()
	}
	return log
}

func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
