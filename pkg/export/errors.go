package export

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingColumn is returned when a required field is neither a column
	// nor an index level.
	ErrMissingColumn = errors.New("missing column")

	// ErrDateStoredAsText is returned when a date or datetime field holds
	// strings.
	ErrDateStoredAsText = errors.New("date stored as text")

	// ErrUnexpectedNull is returned when a non-nullable field without a default
	// has missing values.
	ErrUnexpectedNull = errors.New("unexpected null")
)

// ValidationError reports the field that failed a dataset check. It unwraps
// to one of ErrMissingColumn, ErrDateStoredAsText or ErrUnexpectedNull.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	switch e.Err {
	case ErrMissingColumn:
		return "missing column: " + e.Field
	case ErrDateStoredAsText:
		return fmt.Sprintf("date column %s is strings", e.Field)
	case ErrUnexpectedNull:
		return fmt.Sprintf("%s column contains nulls", e.Field)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }
