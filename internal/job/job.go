// Package job runs export jobs end to end: load the dataset from the
// configured source, open the store, and hand both to the exporter.
package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rowexport/internal/config"
	"rowexport/internal/logging"
	"rowexport/internal/metrics"
	"rowexport/internal/storage"
	"rowexport/pkg/dataset"
	"rowexport/pkg/export"
	"rowexport/pkg/model"

	"github.com/google/uuid"
)

var (
	// ErrInvalidJob marks failures caused by the job file itself.
	ErrInvalidJob = errors.New("invalid job")

	// ErrConnect marks failures to open the configured store.
	ErrConnect = errors.New("storage connection failed")
)

// Test seams.
var (
	newRepositoryFn = storage.New
	openSourceFn    = openSource
)

// Result describes one run.
type Result struct {
	RunID   string
	Job     string
	Skipped int
	Summary export.Summary
	Elapsed time.Duration
}

// Run executes j: load, connect, optionally create the table, export.
// Store connection failures wrap ErrConnect; job file problems wrap
// ErrInvalidJob; dataset validation failures are *export.ValidationError.
func Run(ctx context.Context, j config.Job, log logging.Logger) (Result, error) {
	res := Result{RunID: uuid.NewString(), Job: j.Job}
	start := time.Now()
	if log == nil {
		log = logging.Discard{}
	}
	log = log.WithFields(map[string]any{"job": j.Job, "run_id": res.RunID})

	m, opts, err := prepare(j)
	if err != nil {
		return res, err
	}

	var ds *dataset.Dataset
	err = metrics.Step(j.Job, "load", func() error {
		var err error
		ds, res.Skipped, err = Load(ctx, j, log)
		return err
	})
	if err != nil {
		return res, err
	}
	log.WithFields(map[string]any{
		"source":  j.SourceName(),
		"rows":    ds.Len(),
		"skipped": res.Skipped,
	}).Info("job: dataset loaded")

	var repo storage.Repository
	err = metrics.Step(j.Job, "connect", func() error {
		var err error
		repo, err = newRepositoryFn(ctx, storage.Config{Kind: j.Storage.Kind, DSN: j.Storage.DSN, Logger: log})
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrConnect, j.Storage.Kind, err)
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	defer repo.Close()

	if j.Storage.EnsureTable {
		if opts.DryRun {
			log.Info("job: dry run, not creating table")
		} else if err := metrics.Step(j.Job, "ensure_table", func() error {
			return storage.EnsureTable(ctx, j.Storage.Kind, repo, m)
		}); err != nil {
			return res, fmt.Errorf("ensure table %s: %w", m.Table, err)
		}
	}

	err = metrics.Step(j.Job, "export", func() error {
		var err error
		res.Summary, err = export.New(repo, export.WithLogger(log)).Run(ctx, ds, m, opts)
		return err
	})
	res.Elapsed = time.Since(start)
	return res, err
}

// CheckResult describes a validation-only run.
type CheckResult struct {
	Job     string
	Rows    int
	Skipped int
}

// Check loads j's dataset and validates it against the model without
// touching the store.
func Check(ctx context.Context, j config.Job, log logging.Logger) (CheckResult, error) {
	res := CheckResult{Job: j.Job}
	if log == nil {
		log = logging.Discard{}
	}
	m, _, err := prepare(j)
	if err != nil {
		return res, err
	}

	var ds *dataset.Dataset
	if err := metrics.Step(j.Job, "load", func() error {
		var err error
		ds, res.Skipped, err = Load(ctx, j, log)
		return err
	}); err != nil {
		return res, err
	}
	res.Rows = ds.Len()

	return res, metrics.Step(j.Job, "validate", func() error {
		return export.Validate(ds, m)
	})
}

// prepare lints j and builds the model and exporter options.
func prepare(j config.Job) (*model.Model, export.Options, error) {
	for _, iss := range config.ValidateJob(j) {
		if iss.Severity == config.SeverityError {
			return nil, export.Options{}, fmt.Errorf("%w: %w", ErrInvalidJob, iss)
		}
	}
	m, err := j.BuildModel()
	if err != nil {
		return nil, export.Options{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	opts, err := j.ExportOptions()
	if err != nil {
		return nil, export.Options{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	return m, opts, nil
}
