package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	name   string
	value  float64
	labels Labels
}

type recorder struct {
	mu       sync.Mutex
	counters []call
	hists    []call
	flushes  int
	flushErr error
}

func (r *recorder) IncCounter(name string, delta float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters = append(r.counters, call{name, delta, labels})
}

func (r *recorder) ObserveHistogram(name string, value float64, labels Labels) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hists = append(r.hists, call{name, value, labels})
}

func (r *recorder) Flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return r.flushErr
}

// install swaps in a recorder for the duration of the test.
func install(t *testing.T) *recorder {
	t.Helper()
	r := &recorder{}
	prev := SetBackend(r)
	t.Cleanup(func() { SetBackend(prev) })
	return r
}

func TestRecordStep(t *testing.T) {
	r := install(t)

	RecordStep("people", "load", nil, 2*time.Second)
	RecordStep("people", "export", errors.New("boom"), 1500*time.Millisecond)

	require.Len(t, r.counters, 2)
	require.Len(t, r.hists, 2)
	assert.Equal(t, call{StepTotal, 1, Labels{"job": "people", "step": "load", "status": "success"}}, r.counters[0])
	assert.Equal(t, call{StepDuration, 2, Labels{"job": "people", "step": "load", "status": "success"}}, r.hists[0])
	assert.Equal(t, "failure", r.counters[1].labels["status"])
	assert.InDelta(t, 1.5, r.hists[1].value, 1e-9)
}

func TestStep(t *testing.T) {
	r := install(t)

	boom := errors.New("boom")
	ran := false
	err := Step("people", "connect", func() error { ran = true; return boom })

	assert.True(t, ran)
	assert.Same(t, boom, err)
	require.Len(t, r.counters, 1)
	assert.Equal(t, Labels{"job": "people", "step": "connect", "status": "failure"}, r.counters[0].labels)
	require.NoError(t, Step("people", "export", func() error { return nil }))
	assert.Equal(t, "success", r.counters[1].labels["status"])
}

func TestRecordRowsAndBatches(t *testing.T) {
	r := install(t)

	RecordRows("pairs", RowsProcessed, 3)
	RecordRows("pairs", RowsCreated, 0)
	RecordRows("pairs", RowsUpdated, -1)
	RecordRows("pairs", RowsBulkInserted, 5)
	RecordBatches("pairs", 2)
	RecordBatches("pairs", 0)

	assert.Equal(t, []call{
		{RecordsTotal, 3, Labels{"job": "pairs", "kind": "processed"}},
		{RecordsTotal, 5, Labels{"job": "pairs", "kind": "bulk_inserted"}},
		{BatchesTotal, 2, Labels{"job": "pairs"}},
	}, r.counters)
	assert.Empty(t, r.hists)
}

func TestSetBackendAndFlush(t *testing.T) {
	r := install(t)
	r.flushErr = errors.New("push failed")

	assert.EqualError(t, Flush(), "push failed")
	assert.Equal(t, 1, r.flushes)

	prev := SetBackend(nil)
	assert.Same(t, r, prev)
	assert.NoError(t, Flush())
	RecordRows("pairs", RowsCreated, 1)
	assert.Empty(t, r.counters)
}

func TestConcurrentRecording(t *testing.T) {
	r := install(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			RecordRows("pairs", RowsCreated, 1)
		}()
	}
	wg.Wait()
	assert.Len(t, r.counters, 8)
}
