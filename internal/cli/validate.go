package cli

import (
	"context"
	"fmt"

	"rowexport/internal/config"
	"rowexport/internal/job"

	"github.com/spf13/cobra"
)

func newValidateCmd(g *globals) *cobra.Command {
	var configOnly bool
	cmd := &cobra.Command{
		Use:   "validate job-file...",
		Short: "Lint job files and check their datasets against the model",
		Args:  usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			out := cmd.OutOrStdout()
			for _, p := range args {
				j, err := config.Load(p)
				if err != nil {
					return fmt.Errorf("%w: %w", job.ErrInvalidJob, err)
				}
				issues := config.ValidateJob(j)
				for _, iss := range issues {
					fmt.Fprintf(out, "%s: %s: %s: %s\n", p, iss.Severity, iss.Path, iss.Message)
				}
				if config.HasErrors(issues) {
					return fmt.Errorf("%w: %s has configuration errors", job.ErrInvalidJob, p)
				}
				if configOnly {
					fmt.Fprintf(out, "%s: configuration is valid\n", p)
					continue
				}
				res, err := job.Check(ctx, j, g.log)
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				fmt.Fprintf(out, "%s: dataset is valid (rows=%d skipped=%d)\n", p, res.Rows, res.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&configOnly, "config-only", false, "only lint the job files; do not read the datasets")
	return cmd
}
