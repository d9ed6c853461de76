// Package parser holds what the dataset loaders share: the Parser interface,
// missing-value tokens, date parsing and type inference for text columns.
// Loaders live in subpackages (csv, parquet).
package parser

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"rowexport/pkg/dataset"
)

// Parser turns raw bytes into a dataset. skipped counts input rows dropped
// as malformed.
type Parser interface {
	Parse(r io.Reader) (ds *dataset.Dataset, skipped int, err error)
}

// DefaultNA lists the cell values read as missing when Options.NA is empty.
var DefaultNA = []string{"", "NA", "N/A", "n/a", "NaN", "nan", "-NaN", "null", "NULL", "None", "#N/A", "<NA>"}

// Options are the loader settings shared by every format.
type Options struct {
	// NA replaces DefaultNA when non-empty.
	NA []string

	// ParseDates names the columns whose text values are parsed as dates or
	// timestamps.
	ParseDates []string

	// DateLayouts replaces the built-in layouts tried by ParseDates.
	DateLayouts []string

	// Index names the columns moved into the dataset index, in order.
	Index []string

	// KeepText disables type inference; every value stays a string.
	KeepText bool
}

// IsNA reports whether the raw cell s is a missing-value token.
func (o Options) IsNA(s string) bool {
	na := o.NA
	if len(na) == 0 {
		na = DefaultNA
	}
	return slices.Contains(na, strings.TrimSpace(s))
}

// Finish applies ParseDates and Index to a freshly loaded dataset.
func (o Options) Finish(ds *dataset.Dataset) (*dataset.Dataset, error) {
	for _, name := range o.ParseDates {
		if !ds.HasColumn(name) {
			return nil, fmt.Errorf("parser: parse_dates: %w: %q", dataset.ErrNoColumn, name)
		}
		if err := ds.MapColumn(name, o.parseDateValue); err != nil {
			return nil, fmt.Errorf("parser: parse_dates %q: %w", name, err)
		}
	}
	if len(o.Index) == 0 {
		return ds, nil
	}
	out, err := ds.SetIndex(o.Index...)
	if err != nil {
		return nil, fmt.Errorf("parser: index: %w", err)
	}
	return out, nil
}

// parseDateValue converts a string cell into time.Time. Cells that do not
// parse are kept as they are, so a partly malformed column stays text.
func (o Options) parseDateValue(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if t, ok := ParseTime(s, o.DateLayouts); ok {
		return t, nil
	}
	return v, nil
}

// dateLayouts are common date formats (without time component).
var dateLayouts = []string{
	"2006-01-02",  // ISO
	"02.01.2006",  // DMY dot
	"01.02.2006",  // MDY dot
	"02/01/2006",  // DMY slash
	"01/02/2006",  // MDY slash
	"2 Jan 2006",  // DMY textual day
	"02-Jan-2006", // DMY dash textual month
	"2006/01/02",  // ISO slashy
	"20060102",    // basic ISO
}

// timestampLayouts are common timestamp formats (with time component).
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"02/01/2006 15:04:05", // DMY
	"01/02/2006 15:04:05", // MDY
	"2006-01-02T15:04:05Z0700",
	"2006-01-02 15:04:05 -0700",
}

// ParseTime parses s with layouts, or with the built-in timestamp then date
// layouts when layouts is empty.
func ParseTime(s string, layouts []string) (time.Time, bool) {
	st := strings.TrimSpace(s)
	if st == "" {
		return time.Time{}, false
	}
	if len(layouts) == 0 {
		layouts = append(slices.Clone(timestampLayouts), dateLayouts...)
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, st); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
