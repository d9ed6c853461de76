package export

import (
	"context"

	"rowexport/pkg/model"
)

// Store is the persistence surface the exporter writes through.
//
// Get returns model.ErrNotFound when filter matches nothing and
// model.ErrMultipleRecords when it matches more than one record. Save inserts
// or updates a single record and assigns its primary key. BulkCreate inserts
// recs in one batched operation and reports how many rows were written.
type Store interface {
	Get(ctx context.Context, m *model.Model, filter map[string]any) (*model.Record, error)
	Save(ctx context.Context, rec *model.Record) error
	BulkCreate(ctx context.Context, m *model.Model, recs []*model.Record) (int64, error)
}
