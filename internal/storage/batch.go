package storage

import (
	"context"
	"fmt"
	"time"

	"rowexport/internal/logging"
)

// FlushFunc writes one batch and returns the number of rows the backend
// reports as written.
type FlushFunc[T any] func(ctx context.Context, batch []T) (int64, error)

// Batcher groups values into batches of a fixed size and hands each full
// batch to a FlushFunc. It is not safe for concurrent use.
//
// On every successful flush a progress line is logged with running totals and
// the rows/sec rate since the previous flush.
type Batcher[T any] struct {
	size  int
	flush FlushFunc[T]
	log   logging.Logger

	batch     []T
	total     int64
	batches   int64
	lastTotal int64
	start     time.Time
	lastFlush time.Time
}

// NewBatcher returns a Batcher that flushes every size values. A nil logger
// discards progress lines.
func NewBatcher[T any](size int, flush FlushFunc[T], log logging.Logger) (*Batcher[T], error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if flush == nil {
		return nil, fmt.Errorf("flush func must not be nil")
	}
	if log == nil {
		log = logging.Discard{}
	}
	now := time.Now()
	return &Batcher[T]{
		size:      size,
		flush:     flush,
		log:       log,
		batch:     make([]T, 0, size),
		start:     now,
		lastFlush: now,
	}, nil
}

// Add appends v and flushes when the batch is full.
func (b *Batcher[T]) Add(ctx context.Context, v T) error {
	b.batch = append(b.batch, v)
	if len(b.batch) >= b.size {
		return b.Flush(ctx)
	}
	return nil
}

// Flush writes the pending batch. An empty batch is never written.
func (b *Batcher[T]) Flush(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := b.flush(ctx, b.batch)
	b.total += n

	// The flush func may keep the slice; start a fresh one.
	b.batch = make([]T, 0, b.size)

	if err != nil {
		b.log.WithError(err).Error(fmt.Sprintf("loader: flush failed after=%d total=%d", n, b.total))
		return err
	}

	b.batches++
	now := time.Now()
	sinceLast := now.Sub(b.lastFlush)
	rps := float64(0)
	if sinceLast > 0 {
		rps = float64(b.total-b.lastTotal) / sinceLast.Seconds()
	}
	b.log.Debug(fmt.Sprintf(
		"batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
		b.batches,
		rps,
		n,
		b.total,
		now.Sub(b.start).Truncate(time.Millisecond),
		sinceLast.Truncate(time.Millisecond),
	))
	b.lastFlush = now
	b.lastTotal = b.total
	return nil
}

// Pending returns the number of values waiting for the next flush.
func (b *Batcher[T]) Pending() int { return len(b.batch) }

// Total returns the rows reported written so far.
func (b *Batcher[T]) Total() int64 { return b.total }

// Batches returns the number of successful flushes.
func (b *Batcher[T]) Batches() int64 { return b.batches }
