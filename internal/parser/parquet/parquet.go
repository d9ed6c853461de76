// Package parquet loads flat Parquet files into a dataset. The whole input
// is buffered in memory and read column by column with xitongsys/parquet-go;
// null cells become dataset.NA.
package parquet

import (
	"fmt"
	"io"
	"time"

	"rowexport/internal/parser"
	"rowexport/pkg/dataset"

	"github.com/xitongsys/parquet-go-source/buffer"
	pq "github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
)

// Options configures the Parquet loader.
type Options struct {
	// Parallel is the reader's decode parallelism. Zero means 1.
	Parallel int64

	// Common carries the parse_dates and index settings. NA tokens and type
	// inference do not apply; Parquet columns are typed.
	Common parser.Options
}

// Parser reads Parquet input.
type Parser struct{ opt Options }

var _ parser.Parser = (*Parser)(nil)

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser {
	if opt.Parallel <= 0 {
		opt.Parallel = 1
	}
	return &Parser{opt: opt}
}

// Parse reads every leaf column of r. Nested or repeated columns are
// rejected. The skipped count is always zero.
func (p *Parser) Parse(r io.Reader) (*dataset.Dataset, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, fmt.Errorf("parquet: read: %w", err)
	}
	pf, err := buffer.NewBufferFile(data)
	if err != nil {
		return nil, 0, fmt.Errorf("parquet: buffer: %w", err)
	}
	pr, err := reader.NewParquetColumnReader(pf, p.opt.Parallel)
	if err != nil {
		return nil, 0, fmt.Errorf("parquet: open: %w", err)
	}
	defer pr.ReadStop()

	rows := pr.GetNumRows()
	sh := pr.SchemaHandler

	names := make([]string, 0, len(sh.ValueColumns))
	cols := make([][]any, 0, len(sh.ValueColumns))
	for _, path := range sh.ValueColumns {
		idx := sh.MapIndex[path]
		el := sh.SchemaElements[idx]
		name := sh.GetExName(int(idx))

		vals, _, _, err := pr.ReadColumnByPath(path, rows)
		if err != nil {
			return nil, 0, fmt.Errorf("parquet: column %s: %w", name, err)
		}
		if int64(len(vals)) != rows {
			return nil, 0, fmt.Errorf("parquet: column %s has %d values for %d rows; nested and repeated columns are not supported", name, len(vals), rows)
		}
		col := make([]any, len(vals))
		for i, v := range vals {
			col[i] = convert(v, el)
		}
		names = append(names, name)
		cols = append(cols, col)
	}

	ds, err := dataset.FromColumns(names, cols)
	if err != nil {
		return nil, 0, fmt.Errorf("parquet: %w", err)
	}
	ds, err = p.opt.Common.Finish(ds)
	if err != nil {
		return nil, 0, err
	}
	return ds, 0, nil
}

// convert maps a physical Parquet value onto the dataset's value types,
// honouring DATE and TIMESTAMP annotations.
func convert(v any, el *pq.SchemaElement) any {
	switch x := v.(type) {
	case nil:
		return dataset.NA
	case int32:
		if isDate(el) {
			return time.Unix(int64(x)*86400, 0).UTC()
		}
		return int64(x)
	case int64:
		if unit, ok := timestampUnit(el); ok {
			switch unit {
			case "ms":
				return time.UnixMilli(x).UTC()
			case "us":
				return time.UnixMicro(x).UTC()
			default:
				return time.Unix(0, x).UTC()
			}
		}
		return x
	case float32:
		return float64(x)
	}
	return v
}

func isDate(el *pq.SchemaElement) bool {
	if el.IsSetConvertedType() && el.GetConvertedType() == pq.ConvertedType_DATE {
		return true
	}
	lt := el.GetLogicalType()
	return lt != nil && lt.IsSetDATE()
}

func timestampUnit(el *pq.SchemaElement) (string, bool) {
	if el.IsSetConvertedType() {
		switch el.GetConvertedType() {
		case pq.ConvertedType_TIMESTAMP_MILLIS:
			return "ms", true
		case pq.ConvertedType_TIMESTAMP_MICROS:
			return "us", true
		}
	}
	lt := el.GetLogicalType()
	if lt == nil || !lt.IsSetTIMESTAMP() {
		return "", false
	}
	unit := lt.GetTIMESTAMP().GetUnit()
	switch {
	case unit.IsSetMILLIS():
		return "ms", true
	case unit.IsSetMICROS():
		return "us", true
	}
	return "ns", true
}
