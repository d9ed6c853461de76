// Package probe drafts a job file from a dataset. It loads the source the
// way an export would, infers one model field per column and renders the job
// as YAML meant to be hand-edited and then passed to export.
package probe

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"rowexport/internal/config"
	"rowexport/internal/job"
	"rowexport/internal/logging"
	"rowexport/internal/parser"
	"rowexport/pkg/dataset"
	"rowexport/pkg/model"

	"gopkg.in/yaml.v3"
)

// Options control field inference.
type Options struct {
	// Table names the model table. Defaults to the normalized job name.
	Table string

	// SampleRows bounds the rows inspected per column; 0 inspects all.
	SampleRows int

	// SizeText sets max_length on text fields to the longest sampled value.
	SizeText bool
}

// loadFn is overridable in tests.
var loadFn = job.Load

// Draft loads j's dataset and returns a copy of j whose model is inferred
// from the data. Source, format, index and storage are kept as given.
func Draft(ctx context.Context, j config.Job, opts Options, log logging.Logger) (config.Job, error) {
	if log == nil {
		log = logging.Discard{}
	}
	ds, skipped, err := loadFn(ctx, j, log)
	if err != nil {
		return j, err
	}

	table := opts.Table
	if table == "" {
		table = parser.NormalizeName(j.Job)
	}
	j.Model = config.Model{Table: table, Fields: Infer(ds, opts, log)}

	log.WithFields(map[string]any{
		"source":  j.SourceName(),
		"rows":    ds.Len(),
		"skipped": skipped,
		"fields":  len(j.Model.Fields),
	}).Info("probe: model drafted")
	return j, nil
}

// Infer returns one field per index level and column of ds, in that order.
// A column named like the identity field is skipped. A single index level
// whose sampled values are present and distinct becomes the primary key.
func Infer(ds *dataset.Dataset, opts Options, log logging.Logger) []config.Field {
	if log == nil {
		log = logging.Discard{}
	}
	var fields []config.Field

	levels := ds.IndexNames()
	for _, name := range levels {
		vals, err := ds.IndexLevelValues(name)
		if err != nil {
			continue
		}
		vals = sample(vals, opts.SampleRows)
		f := inferField(name, vals, opts)
		if len(levels) == 1 && !f.Null && distinct(vals) {
			f.PrimaryKey = true
		}
		fields = append(fields, f)
	}

	for _, name := range ds.Columns() {
		if name == model.IdentityField {
			log.WithField("column", name).Warn("probe: column name is reserved for the identity field; skipped")
			continue
		}
		if ds.HasIndexLevel(name) {
			continue
		}
		vals, _ := ds.Column(name)
		fields = append(fields, inferField(name, sample(vals, opts.SampleRows), opts))
	}
	return fields
}

const (
	kindBool = 1 << iota
	kindInt
	kindFloat
	kindTime
	kindText
)

func inferField(name string, vals []any, opts Options) config.Field {
	f := config.Field{Name: name}
	seen := 0
	dateOnly := true
	longest := 0
	for _, v := range vals {
		if dataset.IsMissing(v) {
			f.Null = true
			continue
		}
		switch x := v.(type) {
		case bool:
			seen |= kindBool
		case int, int8, int16, int32, int64, uint8, uint16, uint32:
			seen |= kindInt
		case float32, float64:
			seen |= kindFloat
		case time.Time:
			seen |= kindTime
			if !midnight(x) {
				dateOnly = false
			}
		default:
			seen |= kindText
			if n := len([]rune(fmt.Sprint(x))); n > longest {
				longest = n
			}
		}
	}

	switch seen {
	case kindBool:
		f.Type = model.Boolean.String()
	case kindInt:
		f.Type = model.Integer.String()
	case kindFloat, kindInt | kindFloat:
		f.Type = model.Float.String()
	case kindTime:
		if dateOnly {
			f.Type = model.Date.String()
		} else {
			f.Type = model.DateTime.String()
		}
	default:
		f.Type = model.Text.String()
		if opts.SizeText && seen == kindText && longest > 0 {
			f.MaxLength = longest
		}
	}
	return f
}

func midnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

func sample(vals []any, n int) []any {
	if n > 0 && len(vals) > n {
		return vals[:n]
	}
	return vals
}

// distinct keys values by their dynamic type and printed form so that
// uncomparable values never reach the map.
func distinct(vals []any) bool {
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		k := fmt.Sprintf("%T:%v", v, v)
		if _, dup := seen[k]; dup {
			return false
		}
		seen[k] = struct{}{}
	}
	return true
}

// Render encodes j as a YAML job file.
func Render(j config.Job) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(j); err != nil {
		return nil, fmt.Errorf("probe: render: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("probe: render: %w", err)
	}
	return buf.Bytes(), nil
}
