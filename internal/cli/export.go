package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rowexport/internal/config"
	"rowexport/internal/datasource/file"
	"rowexport/internal/job"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type exportFlags struct {
	parallel int
	dryRun   bool
	mode     string
	bulkSize int
	timeZone string
	jobsFrom string
}

func newExportCmd(g *globals) *cobra.Command {
	var f exportFlags
	cmd := &cobra.Command{
		Use:   "export [job-file...]",
		Short: "Run export jobs",
		Long: `Run one or more export jobs. Jobs run concurrently up to --parallel;
each job's export itself is sequential. Flags override the matching job
file settings for every job.`,
		Args: usageArgs(func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && f.jobsFrom == "" {
				return fmt.Errorf("at least one job file or --jobs-from is required")
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, g, f, args)
		},
	}
	fl := cmd.Flags()
	fl.IntVarP(&f.parallel, "parallel", "p", 1, "number of jobs to run at once")
	fl.BoolVar(&f.dryRun, "dry-run", false, "build records without persisting them")
	fl.StringVar(&f.mode, "mode", "", "override export mode: create, update or force-save")
	fl.IntVar(&f.bulkSize, "bulk-size", 0, "override records per bulk insert")
	fl.StringVar(&f.timeZone, "tz", "", "override the IANA time zone datetime fields are converted to")
	fl.StringVar(&f.jobsFrom, "jobs-from", "", "read job file paths from this list file, one per line")
	return cmd
}

func runExport(cmd *cobra.Command, g *globals, f exportFlags, args []string) error {
	if f.parallel < 1 {
		return usageError{fmt.Errorf("--parallel must be at least 1, got %d", f.parallel)}
	}
	paths := args
	if f.jobsFrom != "" {
		listed, err := file.ReadList(f.jobsFrom)
		if err != nil {
			return usageError{fmt.Errorf("--jobs-from: %w", err)}
		}
		paths = append(paths, listed...)
	}

	jobs := make([]config.Job, 0, len(paths))
	for _, p := range paths {
		j, err := config.Load(p)
		if err != nil {
			return fmt.Errorf("%w: %w", job.ErrInvalidJob, err)
		}
		applyOverrides(cmd, &j, f)
		jobs = append(jobs, j)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := cmd.OutOrStdout()
	var mu sync.Mutex

	var eg errgroup.Group
	eg.SetLimit(f.parallel)
	for _, j := range jobs {
		eg.Go(func() error {
			res, err := job.Run(ctx, j, g.log)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				fmt.Fprintf(out, "%s: FAILED: %v\n", j.Job, err)
				return fmt.Errorf("job %s: %w", j.Job, err)
			}
			s := res.Summary
			fmt.Fprintf(out, "%s: rows=%d created=%d updated=%d batches=%d skipped=%d elapsed=%s\n",
				j.Job, s.Rows, s.Created, s.Updated, s.Batches, res.Skipped, res.Elapsed.Truncate(time.Millisecond))
			return nil
		})
	}
	return eg.Wait()
}

// applyOverrides copies explicitly set flags onto the job.
func applyOverrides(cmd *cobra.Command, j *config.Job, f exportFlags) {
	fl := cmd.Flags()
	if fl.Changed("dry-run") {
		j.Export.DryRun = f.dryRun
	}
	if fl.Changed("mode") {
		j.Export.Mode = f.mode
	}
	if fl.Changed("bulk-size") {
		j.Export.BulkSize = f.bulkSize
	}
	if fl.Changed("tz") {
		j.Export.TimeZone = f.timeZone
	}
}
