package mssql

import (
	"context"

	"rowexport/internal/storage"
	"rowexport/internal/storage/sqlstore"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

var _ storage.Repository = (*wrappedRepo)(nil)

func init() {
	storage.Register("mssql", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{DSN: cfg.DSN, Logger: cfg.Log()})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Store: r, closeFn: closeFn}, nil
	})
	storage.RegisterDDL("mssql", Dialect.EnsureTable)
}

// wrappedRepo runs the close function returned by NewRepository.
type wrappedRepo struct {
	*sqlstore.Store
	closeFn func()
}

func (w *wrappedRepo) Close() { w.closeFn() }
