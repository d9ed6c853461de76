// Package export copies the rows of a dataset into records of a model and
// persists them through a Store, either in bulk batches or one record at a
// time.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rowexport/internal/logging"
	"rowexport/internal/metrics"
	"rowexport/internal/storage"
	"rowexport/pkg/dataset"
	"rowexport/pkg/model"
)

// ErrNotTimestamp is returned when a datetime field holds a value that cannot
// be converted to another time zone.
var ErrNotTimestamp = errors.New("export: value is not a timestamp")

// ErrZonedTimestamp is returned when a time zone is configured and a datetime
// field holds a timestamp that already carries a non-UTC offset.
var ErrZonedTimestamp = errors.New("export: timestamp already has a zone")

// ErrNilDataset is returned by Export, Run and Validate when ds is nil.
var ErrNilDataset = errors.New("export: nil dataset")

// Exporter writes datasets to a Store. An Exporter holds no per-call state and
// may be shared between goroutines when its Store allows it.
type Exporter struct {
	store Store
	log   logging.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger sets the logger used for batch progress and run summaries.
func WithLogger(l logging.Logger) Option {
	return func(e *Exporter) {
		if l != nil {
			e.log = l
		}
	}
}

// New returns an Exporter writing to store.
func New(store Store, opts ...Option) *Exporter {
	e := &Exporter{store: store, log: logging.Discard{}}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Summary describes one export call.
type Summary struct {
	// Records holds the built records when Options.ReturnRecords is set.
	Records []*model.Record

	Rows         int64
	Created      int64
	Updated      int64
	BulkInserted int64
	Batches      int64
	Elapsed      time.Duration
}

// Export writes every row of ds to the store as a record of m and returns the
// records when opts.ReturnRecords is set.
//
// ds itself is never modified. Store errors abort the export and are returned
// wrapped; records written before the failure stay written.
func (e *Exporter) Export(ctx context.Context, ds *dataset.Dataset, m *model.Model, opts Options) ([]*model.Record, error) {
	sum, err := e.Run(ctx, ds, m, opts)
	if err != nil {
		return nil, err
	}
	return sum.Records, nil
}

// Run is Export returning the full Summary.
func (e *Exporter) Run(ctx context.Context, ds *dataset.Dataset, m *model.Model, opts Options) (Summary, error) {
	if ds == nil {
		return Summary{}, ErrNilDataset
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return Summary{}, err
	}
	if opts.Validate {
		if err := Validate(ds, m); err != nil {
			return Summary{}, err
		}
	}
	label := opts.Label
	if label == "" {
		label = m.Table
	}
	log := e.log.WithFields(map[string]any{
		"job":   label,
		"table": m.Table,
		"mode":  opts.Mode.String(),
	})

	r := &run{
		store: e.store,
		model: m,
		opts:  opts,
		log:   log,
		start: time.Now(),
	}
	err = r.exec(ctx, ds.Copy())
	sum := r.summary()

	metrics.RecordRows(label, metrics.RowsProcessed, sum.Rows)
	metrics.RecordRows(label, metrics.RowsCreated, sum.Created)
	metrics.RecordRows(label, metrics.RowsUpdated, sum.Updated)
	metrics.RecordRows(label, metrics.RowsBulkInserted, sum.BulkInserted)
	metrics.RecordBatches(label, sum.Batches)

	fields := map[string]any{
		"rows":          sum.Rows,
		"created":       sum.Created,
		"updated":       sum.Updated,
		"bulk_inserted": sum.BulkInserted,
		"batches":       sum.Batches,
		"dry_run":       opts.DryRun,
		"elapsed":       sum.Elapsed.Truncate(time.Millisecond).String(),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("export: aborted")
		return sum, err
	}
	log.WithFields(fields).Info("export: done")
	return sum, nil
}

type run struct {
	store Store
	model *model.Model
	opts  Options
	log   logging.Logger
	start time.Time

	fields  []model.Field
	records []*model.Record
	batcher *storage.Batcher[*model.Record]

	rows    int64
	created int64
	updated int64
}

func (r *run) exec(ctx context.Context, ds *dataset.Dataset) error {
	if r.opts.ReturnRecords {
		r.records = make([]*model.Record, 0, ds.Len())
	}
	if ds.Len() == 0 {
		return nil
	}

	fields, err := prepare(ds, r.model, r.opts)
	if err != nil {
		return err
	}
	r.fields = fields

	var key []string
	if r.opts.Mode == UpdateExisting {
		key = r.model.UniqueKey()
		for _, name := range key {
			if !ds.HasColumn(name) {
				return fmt.Errorf("export: unique key field %q is not in the dataset", name)
			}
		}
	}

	if r.opts.Mode == CreateAll && !r.opts.DryRun {
		b, err := storage.NewBatcher[*model.Record](r.opts.BulkSize, r.bulkCreate, r.log)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		r.batcher = b
	}

	for _, row := range ds.Rows() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.writeRow(ctx, row, key); err != nil {
			return err
		}
	}

	if r.batcher != nil {
		if err := r.batcher.Flush(ctx); err != nil {
			return fmt.Errorf("export: bulk create %s: %w", r.model.Table, err)
		}
	}
	return nil
}

func (r *run) writeRow(ctx context.Context, row dataset.Row, key []string) error {
	rec, existing, err := r.recordFor(ctx, row, key)
	if err != nil {
		return err
	}
	for _, f := range r.fields {
		v := row.Value(f.Name)
		if dataset.IsMissing(v) {
			v = nil
		}
		rec.Set(f.Name, v)
	}
	r.rows++

	switch {
	case r.opts.DryRun:
	case r.opts.Mode == CreateAll:
		if err := r.batcher.Add(ctx, rec); err != nil {
			return fmt.Errorf("export: bulk create %s: %w", r.model.Table, err)
		}
	default:
		if err := r.store.Save(ctx, rec); err != nil {
			return fmt.Errorf("export: save %s row %d: %w", r.model.Table, row.Position(), err)
		}
		if existing {
			r.updated++
		} else {
			r.created++
		}
	}

	if r.opts.ReturnRecords {
		r.records = append(r.records, rec)
	}
	return nil
}

// recordFor returns the record a row is written to and whether it already
// existed in the store.
func (r *run) recordFor(ctx context.Context, row dataset.Row, key []string) (*model.Record, bool, error) {
	if r.opts.Mode != UpdateExisting {
		return r.model.NewRecord(), false, nil
	}
	filter := make(map[string]any, len(key))
	for _, name := range key {
		v := row.Value(name)
		if dataset.IsMissing(v) {
			v = nil
		}
		filter[name] = v
	}
	rec, err := r.store.Get(ctx, r.model, filter)
	switch {
	case err == nil:
		return rec, true, nil
	case errors.Is(err, model.ErrNotFound):
		return r.model.NewRecord(), false, nil
	default:
		return nil, false, fmt.Errorf("export: lookup %s row %d: %w", r.model.Table, row.Position(), err)
	}
}

func (r *run) bulkCreate(ctx context.Context, recs []*model.Record) (int64, error) {
	return r.store.BulkCreate(ctx, r.model, recs)
}

func (r *run) summary() Summary {
	s := Summary{
		Records: r.records,
		Rows:    r.rows,
		Created: r.created,
		Updated: r.updated,
		Elapsed: time.Since(r.start),
	}
	if r.batcher != nil {
		s.BulkInserted = r.batcher.Total()
		s.Batches = r.batcher.Batches()
		s.Created += s.BulkInserted
	}
	return s
}

// prepare resolves the fields of m present in ds, copies index-sourced fields
// into columns, converts time zones and fills missing values. ds must be the
// exporter's private copy.
func prepare(ds *dataset.Dataset, m *model.Model, opts Options) ([]model.Field, error) {
	var loc *time.Location
	if opts.TimeZone != "" {
		l, err := time.LoadLocation(opts.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("export: time zone %q: %w", opts.TimeZone, err)
		}
		loc = l
	}

	var fields []model.Field
	for _, f := range m.Fields {
		if f.Name == m.IdentityName() || !present(ds, f.Name) {
			continue
		}
		fields = append(fields, f)

		// An index level of the same name takes precedence over a column.
		if ds.HasIndexLevel(f.Name) {
			vals, err := ds.IndexLevelValues(f.Name)
			if err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
			if err := ds.SetColumn(f.Name, vals); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		}

		if loc != nil && f.Type == model.DateTime {
			if err := ds.MapColumn(f.Name, toZone(loc)); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		}

		switch {
		case f.Null:
		case f.HasDefault():
			if _, err := ds.FillMissing(f.Name, f.Default); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		case f.Type == model.Text:
			if _, err := ds.FillMissing(f.Name, ""); err != nil {
				return nil, fmt.Errorf("export: %w", err)
			}
		}
	}
	return fields, nil
}

// toZone reads a timestamp's wall clock as UTC, moves it to loc and returns
// the resulting wall clock without zone information (held in time.UTC).
// Timestamps with a non-zero offset are rejected rather than shifted.
func toZone(loc *time.Location) func(any) (any, error) {
	return func(v any) (any, error) {
		if dataset.IsMissing(v) {
			return v, nil
		}
		var t time.Time
		switch x := v.(type) {
		case time.Time:
			t = x
		case *time.Time:
			t = *x
		default:
			return nil, fmt.Errorf("%w: %T", ErrNotTimestamp, v)
		}
		if _, off := t.Zone(); off != 0 {
			return nil, fmt.Errorf("%w: %s", ErrZonedTimestamp, t.Format(time.RFC3339))
		}
		utc := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		l := utc.In(loc)
		return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC), nil
	}
}
