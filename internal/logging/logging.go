// Package logging builds the structured logger every other package accepts
// as a logrus.FieldLogger, standing in for the teacher's DefaultLogger
// factory (pkg/mcast/definition/default_logger.go) with the pack's
// logrus-based idiom instead of a raw stdlib *log.Logger wrapper.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Config controls the logger New builds.
type Config struct {
	Level  string        // one of logrus's level names; defaults to "info"
	JSON   bool          // structured JSON output instead of text, for log shipping
	Fields logrus.Fields // not applied by New; apply with WithFields
}

// New builds a *logrus.Logger per cfg, falling back to info level on an
// unparseable Level rather than failing peer startup over a typo.
func New(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.JSON {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}

// WithFields returns log as a FieldLogger pre-populated with fields,
// matching the per-component field the event substrate attaches
// (event.NewSession does the same for "session").
func WithFields(log logrus.FieldLogger, fields logrus.Fields) logrus.FieldLogger {
	return log.WithFields(fields)
}
