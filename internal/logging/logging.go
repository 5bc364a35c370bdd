// Package logging builds the application logger.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm/logger"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logrus logger writing to stderr at the given level.
// format is "text" or "json"; an empty format means text.
func New(level, format string) (*logrus.Logger, error) {
	return NewWithOutput(os.Stderr, level, format)
}

func NewWithOutput(out io.Writer, level, format string) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(out)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	log.SetLevel(lvl)

	switch format {
	case "", FormatText:
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case FormatJSON:
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}

// SQLLevel maps the DATABASE_LOG_SQL switch to a gorm log level.
func SQLLevel(enabled bool) logger.LogLevel {
	if enabled {
		return logger.Info
	}
	return logger.Silent
}
