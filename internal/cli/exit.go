package cli

import (
	"errors"
	"strings"

	"rowexport/internal/job"
	"rowexport/pkg/export"

	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitSuccess    = 0
	ExitFailure    = 1
	ExitUsage      = 2
	ExitConfig     = 10
	ExitConnection = 11
	ExitValidation = 12
)

// usageError marks bad arguments or flags.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// usageArgs tags positional-argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// ExitCode maps an error returned by Execute to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ue usageError
	var ve *export.ValidationError
	switch {
	case errors.As(err, &ue):
		return ExitUsage
	case errors.Is(err, job.ErrInvalidJob):
		return ExitConfig
	case errors.Is(err, job.ErrConnect):
		return ExitConnection
	case errors.As(err, &ve):
		return ExitValidation
	case strings.HasPrefix(err.Error(), "unknown command"):
		return ExitUsage
	}
	return ExitFailure
}
