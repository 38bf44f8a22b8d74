// Package logging provides the structured logging infrastructure shared by
// the bdp server and CLI. It is built on logrus and routes error-level
// records to stderr while everything else goes to stdout, so container
// log collectors and shell pipelines can treat the two streams differently.
package logging

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr or stdout based on
// their level, without parsing the line beyond a literal substring match.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	if bytes.Contains(p, []byte("level=error")) || bytes.Contains(p, []byte(`"level":"error"`)) {
		return os.Stderr.Write(p)
	}
	return os.Stdout.Write(p)
}

// Logger is the process-wide logger. Server and CLI entrypoints call
// Configure once during startup; packages elsewhere just use Logger.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
	Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// Config controls format and verbosity of the global logger.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // "json" or "text"
}

// Configure applies Config to the global Logger. Called once at startup by
// cmd/bdp-server and cmd/bdp.
func Configure(cfg Config) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	Logger.SetLevel(level)

	if cfg.Format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
