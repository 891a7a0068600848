// Package worker implements the nested simultaneous_probes pool: a small
// channel-based semaphore bounding how many ladder sub-probes (the per-chunk
// complexity probes) run at once underneath
// the outer Worker Pool, independent of its own concurrency budget.
package worker

import "sync"

// Semaphore provides a counting semaphore for controlling concurrency.
// It is used to limit the number of probes in flight to prevent memory
// exhaustion.
type Semaphore struct {
	permits chan struct{}
}

// NewSemaphore creates a new semaphore with the given number of permits.
func NewSemaphore(count int) *Semaphore {
	if count <= 0 {
		count = 1
	}
	s := &Semaphore{
		permits: make(chan struct{}, count),
	}
	// Pre-fill the permits
	for i := 0; i < count; i++ {
		s.permits <- struct{}{}
	}
	return s
}

// Acquire blocks until a permit is available.
func (s *Semaphore) Acquire() {
	<-s.permits
}

// Release returns a permit to the semaphore.
func (s *Semaphore) Release() {
	select {
	case s.permits <- struct{}{}:
	default:
		// Semaphore is full, this shouldn't happen in normal use
	}
}

// Chan returns the underlying permit channel for use with select.
// This allows context-aware acquisition of permits.
func (s *Semaphore) Chan() <-chan struct{} {
	return s.permits
}

// ProbeResult is the outcome of one simultaneous_probes sub-task, such as
// one chunk's complexity score.
// Index ties it back to the sample/chunk that requested it.
type ProbeResult struct {
	Index int
	Value float64
	Error error
}

// Progress reports how many ladder probes have completed against a known
// total, for the Reporter to render alongside per-chunk progress.
type Progress struct {
	ProbesComplete int
	ProbesTotal    int
}

// Percent returns the completion percentage.
func (p Progress) Percent() float64 {
	if p.ProbesTotal == 0 {
		return 0
	}
	return float64(p.ProbesComplete) / float64(p.ProbesTotal) * 100
}

// RunBounded runs one probe per entry in probes with at most permits
// running concurrently, returning results in input order. The ladder uses
// this to fan out its per-chunk complexity probes without borrowing capacity
// from the outer Worker Pool, which is busy running whole chunks.
func RunBounded(permits int, probes []func() (float64, error)) []ProbeResult {
	sem := NewSemaphore(permits)
	results := make([]ProbeResult, len(probes))

	var wg sync.WaitGroup
	for i, probe := range probes {
		sem.Acquire()
		wg.Add(1)
		go func(i int, probe func() (float64, error)) {
			defer wg.Done()
			defer sem.Release()
			value, err := probe()
			results[i] = ProbeResult{Index: i, Value: value, Error: err}
		}(i, probe)
	}
	wg.Wait()

	return results
}
