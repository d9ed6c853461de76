// Package storage holds the backend-agnostic persistence contract, the
// backend factory, the DDL bootstrap registry and the batching helper used
// for bulk inserts.
//
// Backends live in subpackages and register themselves from init; import
// rowexport/internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rowexport/internal/logging"
	"rowexport/pkg/model"
)

// Repository persists model records. It satisfies export.Store.
type Repository interface {
	// Get returns the single record matching filter (field name -> value; a
	// nil value matches NULL). It returns model.ErrNotFound or
	// model.ErrMultipleRecords when the match is not unique.
	Get(ctx context.Context, m *model.Model, filter map[string]any) (*model.Record, error)

	// Save inserts a new record or updates an existing one, assigning the
	// identity value on insert.
	Save(ctx context.Context, rec *model.Record) error

	// BulkCreate inserts recs in one batched operation.
	BulkCreate(ctx context.Context, m *model.Model, recs []*model.Record) (int64, error)

	// Exec runs a raw statement, typically DDL.
	Exec(ctx context.Context, sql string) error

	Close()
}

// Config selects and configures a backend.
type Config struct {
	// Kind is the registered backend name, e.g. "postgres" or "sqlite".
	Kind string

	// DSN is the backend connection string.
	DSN string

	// Logger receives backend diagnostics. Nil discards them.
	Logger logging.Logger
}

// Log returns cfg.Logger or a discarding logger.
func (c Config) Log() logging.Logger {
	if c.Logger == nil {
		return logging.Discard{}
	}
	return c.Logger
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered backend names, sorted.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
