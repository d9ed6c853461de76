// Package cli implements the rowexport command line.
package cli

import (
	"fmt"
	"io"
	"os"

	"rowexport/internal/config"
	"rowexport/internal/logging"
	"rowexport/internal/metrics"
	"rowexport/internal/metrics/datadog"
	"rowexport/internal/metrics/prompush"
	"rowexport/internal/storage"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const longHelp = `rowexport copies rows from CSV or Parquet input into database tables
described by a job file (JSON or YAML).

Exit Codes:
  0  - Success
  1  - General error (export failed)
  2  - CLI usage error (invalid arguments or flags)
  10 - Invalid job file or configuration
  11 - Storage connection failed
  12 - Dataset validation failed`

// globals are the persistent flags shared by every command.
type globals struct {
	verbose        bool
	logFormat      string
	envFile        string
	metricsBackend string
	pushgatewayURL string
	statsdAddr     string

	log logging.Logger
}

// Execute runs the command line with os.Args and returns the error that
// decides the exit code.
func Execute() error {
	return newRootCmd(os.Stdout, os.Stderr).Execute()
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	g := &globals{log: logging.Discard{}}

	root := &cobra.Command{
		Use:           "rowexport",
		Short:         "Export dataset rows into database tables",
		Long:          longHelp,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if err := metrics.Flush(); err != nil {
				g.log.WithError(err).Warn("metrics: flush failed")
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&g.logFormat, "log-format", "auto", "log format: auto, text or json")
	pf.StringVar(&g.envFile, "env-file", "", "load environment variables from this .env file (default: ./.env when present)")
	pf.StringVar(&g.metricsBackend, "metrics-backend", "", "metrics backend: none, pushgateway or datadog (env METRICS_BACKEND)")
	pf.StringVar(&g.pushgatewayURL, "pushgateway-url", "", "Pushgateway base URL (env PUSHGATEWAY_URL)")
	pf.StringVar(&g.statsdAddr, "statsd-addr", "", "DogStatsD address (env DD_DOGSTATSD_ADDR)")

	root.AddCommand(newExportCmd(g), newValidateCmd(g), newProbeCmd(g), newVersionCmd())
	return root
}

// setup loads the env file, builds the logger and installs the metrics
// backend. It runs before every command.
func (g *globals) setup(cmd *cobra.Command) error {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil {
			return usageError{fmt.Errorf("env file: %w", err)}
		}
	} else {
		_ = godotenv.Load()
	}

	level := "info"
	if g.verbose {
		level = "debug"
	}
	l, err := logging.New(logging.Config{Level: level, Format: g.logFormat, Output: cmd.ErrOrStderr()})
	if err != nil {
		return usageError{err}
	}
	g.log = l

	if kinds := storage.ListKinds(); len(kinds) > 0 {
		config.KnownStorageKinds = kinds
	}
	g.setupMetrics()
	return nil
}

// setupMetrics picks the backend: flag, then env, then none. A backend that
// fails to initialise is logged and metrics stay disabled.
func (g *globals) setupMetrics() {
	name := firstNonEmpty(g.metricsBackend, os.Getenv("METRICS_BACKEND"))
	switch name {
	case "", "none":
		g.log.Debug("metrics: disabled")
	case "pushgateway":
		url := firstNonEmpty(g.pushgatewayURL, os.Getenv("PUSHGATEWAY_URL"), "http://localhost:9091")
		b, err := prompush.NewBackend("rowexport", url)
		if err != nil {
			g.log.WithError(err).Warn("metrics: pushgateway backend unavailable; using nop")
			return
		}
		metrics.SetBackend(b)
		g.log.WithField("url", url).Debug("metrics: pushgateway")
	case "datadog":
		addr := firstNonEmpty(g.statsdAddr, os.Getenv("DD_DOGSTATSD_ADDR"), "127.0.0.1:8125")
		b, err := datadog.NewBackend(datadog.Config{Addr: addr, Namespace: "rowexport."})
		if err != nil {
			g.log.WithError(err).Warn("metrics: datadog backend unavailable; using nop")
			return
		}
		metrics.SetBackend(b)
		g.log.WithField("addr", addr).Debug("metrics: datadog")
	default:
		g.log.WithField("backend", name).Warn("metrics: unknown backend; metrics disabled")
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
