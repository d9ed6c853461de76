// Package logging is the logging surface used across rowexport. Library code
// depends on the small Logger interface; the CLI installs a logrus-backed
// implementation.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

type (
	// Logger is a subset of logrus.FieldLogger.
	Logger interface {
		WithField(key string, value any) Logger
		WithFields(fields map[string]any) Logger
		WithError(err error) Logger
		Debug(args ...any)
		Info(args ...any)
		Warn(args ...any)
		Error(args ...any)
	}

	// Discard implements a Logger that does nothing.
	Discard struct{}

	// Logrus adapts a logrus.FieldLogger (a *logrus.Logger or *logrus.Entry).
	Logrus struct{ logrus.FieldLogger }
)

var (
	_ Logger = Discard{}
	_ Logger = Logrus{}
)

func (Discard) WithField(string, any) Logger     { return Discard{} }
func (Discard) WithFields(map[string]any) Logger { return Discard{} }
func (Discard) WithError(error) Logger           { return Discard{} }
func (Discard) Debug(...any)                     {}
func (Discard) Info(...any)                      {}
func (Discard) Warn(...any)                      {}
func (Discard) Error(...any)                     {}

func (x Logrus) WithField(key string, value any) Logger {
	return Logrus{FieldLogger: x.FieldLogger.WithField(key, value)}
}

func (x Logrus) WithFields(fields map[string]any) Logger {
	return Logrus{FieldLogger: x.FieldLogger.WithFields(fields)}
}

func (x Logrus) WithError(err error) Logger {
	return Logrus{FieldLogger: x.FieldLogger.WithError(err)}
}

// Config selects the level, format and destination of a logrus logger.
type Config struct {
	// Level is a logrus level name ("debug", "info", ...). Empty means info.
	Level string

	// Format is "text", "json" or "auto". Auto picks text when Output is a
	// terminal and JSON otherwise.
	Format string

	// Output defaults to os.Stderr.
	Output io.Writer
}

// New builds a logrus logger from cfg and wraps it as a Logger.
func New(cfg Config) (Logrus, error) {
	l := logrus.New()
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	l.SetOutput(out)

	lvl := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return Logrus{}, fmt.Errorf("logging: %w", err)
		}
		lvl = parsed
	}
	l.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "", "auto":
		if isTerminal(out) {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		} else {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
	case "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return Logrus{}, fmt.Errorf("logging: unknown format %q", cfg.Format)
	}
	return Logrus{FieldLogger: l}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
