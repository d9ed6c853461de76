package storage

import (
	"context"
	"fmt"
	"sync"

	"rowexport/pkg/model"
)

// DDLBootstrapper renders the backend's CREATE TABLE statement for m and
// applies it through repo.Exec. It must be idempotent.
type DDLBootstrapper func(ctx context.Context, repo Repository, m *model.Model) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for a storage kind.
// Backends call it from init.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable creates the table of m on repo, using the bootstrapper
// registered for kind.
func EnsureTable(ctx context.Context, kind string, repo Repository, m *model.Model) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, m)
}
