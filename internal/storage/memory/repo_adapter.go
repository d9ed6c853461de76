package memory

import (
	"context"
	"fmt"

	"rowexport/internal/storage"
	"rowexport/pkg/model"
)

// init registers the "memory" backend. The DSN is ignored; every
// storage.New call returns a fresh, empty repository.
func init() {
	storage.Register("memory", func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		return New(cfg.Log()), nil
	})
	storage.RegisterDDL("memory", func(ctx context.Context, repo storage.Repository, m *model.Model) error {
		r, ok := repo.(*Repository)
		if !ok {
			return fmt.Errorf("memory: EnsureTable on %T", repo)
		}
		return r.EnsureTable(ctx, m)
	})
}
