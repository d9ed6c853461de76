// Package datasource defines where a job's input bytes come from. Concrete
// sources live in subpackages: file, httpds and objectstore.
package datasource

import (
	"context"
	"io"
)

// Source opens a fresh stream over the input. Callers close it.
type Source interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}
