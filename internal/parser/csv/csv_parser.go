// Package csv loads CSV input into a dataset. Rows are read with
// encoding/csv, header names are normalised, and each column is typed by
// inference over all of its values.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"rowexport/internal/logging"
	"rowexport/internal/parser"
	"rowexport/pkg/dataset"
)

// Options configures the CSV parser behavior. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// NoHeader treats the first row as data; columns are named col_0, col_1, ...
	NoHeader bool

	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// HeaderMap maps source header names to canonical keys (e.g., localization
	// to snake_case). Mapped names are used verbatim.
	HeaderMap map[string]string

	// NormalizeHeaders rewrites unmapped headers into ASCII snake_case.
	NormalizeHeaders bool

	// SkipBadRows drops rows with the wrong number of fields instead of
	// failing the parse.
	SkipBadRows bool

	// Common carries the NA tokens, parse_dates and index settings.
	Common parser.Options

	Logger logging.Logger
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

var _ parser.Parser = (*Parser)(nil)

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.Logger == nil {
		opt.Logger = logging.Discard{}
	}
	return &Parser{opt: opt}
}

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// skipLogLimit caps the per-row skip lines written to the log.
const skipLogLimit = 400

// Parse consumes CSV records from r and returns the dataset along with the
// number of rows that were skipped due to field-count mismatches.
func (p *Parser) Parse(r io.Reader) (*dataset.Dataset, int, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	// Width is enforced below so bad rows can be skipped instead of fatal.
	cr.FieldsPerRecord = -1

	var headers []string
	if !p.opt.NoHeader {
		h, err := cr.Read()
		if err == io.EOF {
			return &dataset.Dataset{}, 0, nil
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read csv header: %w", err)
		}
		headers = normalizeHeaders(h, p.opt)
		if err := checkUnique(headers); err != nil {
			return nil, 0, err
		}
	}

	var (
		cols    [][]string
		skipped int
	)
	if headers != nil {
		cols = make([][]string, len(headers))
	}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, skipped, fmt.Errorf("read csv line %d: %w", line, err)
		}
		if headers == nil {
			headers = make([]string, len(row))
			for i := range headers {
				headers[i] = fmt.Sprintf("col_%d", i)
			}
			cols = make([][]string, len(headers))
		}
		if len(row) != len(headers) {
			err := fmt.Errorf("incorrect number of fields (expected %d, got %d)", len(headers), len(row))
			if !p.opt.SkipBadRows {
				return nil, skipped, fmt.Errorf("csv line %d: %w", line, err)
			}
			if skipped < skipLogLimit {
				p.opt.Logger.Warn(fmt.Sprintf("csv: skipping row %d: %v", line, err))
			}
			skipped++
			continue
		}
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			cols[i] = append(cols[i], val)
		}
	}

	values := make([][]any, len(headers))
	for i, raw := range cols {
		if raw == nil {
			raw = []string{}
		}
		values[i] = p.opt.Common.Column(raw)
	}
	ds, err := dataset.FromColumns(headers, values)
	if err != nil {
		return nil, skipped, fmt.Errorf("csv: %w", err)
	}
	ds, err = p.opt.Common.Finish(ds)
	if err != nil {
		return nil, skipped, err
	}
	return ds, skipped, nil
}

// normalizeHeaders produces canonical header keys using HeaderMap (when
// provided) and, when enabled, ASCII snake_case normalisation. It also
// strips a UTF-8 BOM from the first cell if present.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if m, ok := opt.HeaderMap[c]; ok {
			res[i] = m
			continue
		}
		if opt.NormalizeHeaders {
			c = parser.NormalizeName(c)
		}
		res[i] = c
	}
	return res
}

func checkUnique(headers []string) error {
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		if j, ok := seen[h]; ok {
			return fmt.Errorf("csv: duplicate column %q (positions %d and %d)", h, j, i)
		}
		seen[h] = i
	}
	return nil
}
