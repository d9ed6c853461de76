package config

import (
	"fmt"
	"math"
	"path"
	"strconv"
	"strings"
	"time"

	"rowexport/internal/parser"
	"rowexport/pkg/export"
	"rowexport/pkg/model"
)

// Format kinds.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

// SourceName returns the path, URL or s3:// address the job reads.
func (j Job) SourceName() string {
	switch j.Source.Kind {
	case "file":
		return j.Source.File.Path
	case "http":
		return j.Source.HTTP.URL
	case "s3":
		return "s3://" + j.Source.S3.Bucket + "/" + j.Source.S3.Key
	}
	return ""
}

// FormatKind returns Format.Kind, or the kind implied by the source name's
// extension (a trailing .gz is ignored). It returns "" when neither says.
func (j Job) FormatKind() string {
	if k := strings.ToLower(strings.TrimSpace(j.Format.Kind)); k != "" {
		return k
	}
	name := strings.ToLower(j.SourceName())
	if i := strings.IndexAny(name, "?#"); i >= 0 && j.Source.Kind == "http" {
		name = name[:i]
	}
	name = strings.TrimSuffix(name, ".gz")
	switch path.Ext(name) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV
	case ".parquet", ".pq":
		return FormatParquet
	}
	return ""
}

// ParserOptions maps the format section onto the shared loader options.
func (j Job) ParserOptions() parser.Options {
	return parser.Options{
		NA:          j.Format.NA,
		ParseDates:  j.Format.ParseDates,
		DateLayouts: j.Format.DateLayouts,
		Index:       j.Index,
		KeepText:    j.Format.KeepText,
	}
}

// BuildModel converts the model section into a validated model.Model.
// Defaults are coerced to their field's type.
func (j Job) BuildModel() (*model.Model, error) {
	m := &model.Model{
		Table:          j.Model.Table,
		UniqueTogether: j.Model.UniqueTogether,
	}
	for i, f := range j.Model.Fields {
		ft, err := model.ParseFieldType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("config: model.fields[%d]: %w", i, err)
		}
		def, err := coerceDefault(ft, f.Default)
		if err != nil {
			return nil, fmt.Errorf("config: model.fields[%d].default: %w", i, err)
		}
		m.Fields = append(m.Fields, model.Field{
			Name:       f.Name,
			Type:       ft,
			Null:       f.Null,
			Default:    def,
			PrimaryKey: f.PrimaryKey,
			MaxLength:  f.MaxLength,
		})
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return m, nil
}

// ExportOptions converts the export section. Label is the job name.
func (j Job) ExportOptions() (export.Options, error) {
	mode, err := export.ParseMode(j.Export.Mode)
	if err != nil {
		return export.Options{}, fmt.Errorf("config: export.mode: %w", err)
	}
	return export.Options{
		Mode:     mode,
		BulkSize: j.Export.BulkSize,
		TimeZone: j.Export.TimeZone,
		DryRun:   j.Export.DryRun,
		Validate: j.Export.Validate,
		Label:    j.Job,
	}, nil
}

// coerceDefault converts a decoded JSON/YAML scalar to the Go type the
// stores expect for t.
func coerceDefault(t model.FieldType, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch t {
	case model.Integer:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("%v is not an integer", n)
			}
			return int64(n), nil
		case string:
			return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		}
	case model.Float:
		switch n := v.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		case string:
			return strconv.ParseFloat(strings.TrimSpace(n), 64)
		}
	case model.Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(b))
		}
	case model.Date, model.DateTime:
		switch tv := v.(type) {
		case time.Time:
			return tv, nil
		case string:
			if ts, ok := parser.ParseTime(tv, nil); ok {
				return ts, nil
			}
			return nil, fmt.Errorf("%q is not a date", tv)
		}
	case model.Text:
		switch s := v.(type) {
		case string:
			return s, nil
		case bool, int, int64, float64:
			return fmt.Sprint(s), nil
		}
	}
	return nil, fmt.Errorf("%v (%T) does not fit a %s field", v, v, t)
}
