package passes

import (
	"sync"

	"mesonmir/internal/mir"
)

// ThreadedLowering implements §4.6's threaded_lowering / §5's worker pool:
// a fingerprinted cache fed by a fixed pool of goroutines. Semantic passes
// call Dispatch to kick off an I/O-bound probe (compiler detection,
// find_program, dependency discovery) and Get on every later pipeline
// iteration to see whether it has completed. Workers never touch shared
// persistent state — each job closes only over its own read-only inputs
// and returns a pure *mir.Instruction the caller installs into the cache
// from a single goroutine (Drain), matching "each worker receives
// read-only inputs and produces a pure result value that the main thread
// installs" (§5).
type ThreadedLowering struct {
	mu      sync.Mutex
	cache   map[string]*mir.Instruction
	pending map[string]bool

	jobs    chan job
	results chan result

	wg sync.WaitGroup
}

type job struct {
	fingerprint string
	run         func() (*mir.Instruction, error)
}

type result struct {
	fingerprint string
	instr       *mir.Instruction
	err         error
}

// NewThreadedLowering starts a pool of `workers` goroutines draining the
// job queue. The pool runs for the lifetime of one pipeline invocation;
// callers stop it with Close once the pipeline reaches its fixed point.
func NewThreadedLowering(workers int) *ThreadedLowering {
	if workers < 1 {
		workers = 1
	}

	t := &ThreadedLowering{
		cache:   map[string]*mir.Instruction{},
		pending: map[string]bool{},
		jobs:    make(chan job, 64),
		results: make(chan result, 64),
	}

	for i := 0; i < workers; i++ {
		t.wg.Add(1)
		go t.worker()
	}

	return t
}

func (t *ThreadedLowering) worker() {
	defer t.wg.Done()
	for j := range t.jobs {
		instr, err := j.run()
		t.results <- result{fingerprint: j.fingerprint, instr: instr, err: err}
	}
}

// Get returns the cached result for fingerprint, if any probe dispatched
// under that key has completed and been drained.
func (t *ThreadedLowering) Get(fingerprint string) (*mir.Instruction, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	instr, ok := t.cache[fingerprint]
	return instr, ok
}

// Dispatch schedules run to execute on the worker pool under fingerprint,
// unless a probe with that fingerprint is already cached or in flight
// (idempotent dispatch — a later pipeline iteration that sees the same
// unresolved call simply re-checks Get instead of piling up duplicate
// jobs).
func (t *ThreadedLowering) Dispatch(fingerprint string, run func() (*mir.Instruction, error)) {
	t.mu.Lock()
	if _, cached := t.cache[fingerprint]; cached || t.pending[fingerprint] {
		t.mu.Unlock()
		return
	}
	t.pending[fingerprint] = true
	t.mu.Unlock()

	t.jobs <- job{fingerprint: fingerprint, run: run}
}

// Drain installs every probe result that has completed since the last
// Drain into the cache. The pipeline driver calls this after each
// Pipeline.Run that leaves a probe pending (§5: results are "installed" by
// the main thread, never by a worker), then runs the pipeline again so the
// installed results get substituted.
func (t *ThreadedLowering) Drain() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		select {
		case r := <-t.results:
			delete(t.pending, r.fingerprint)
			if r.err != nil {
				return r.err
			}
			t.cache[r.fingerprint] = r.instr
		default:
			return nil
		}
	}
}

// Pending reports whether any dispatched probe is still queued or running.
// The pipeline driver uses this alongside Pipeline.Run's own no-progress
// signal to decide whether another outer round is needed purely to drain a
// probe that was still in flight when the instruction-rewrite passes last
// stabilized.
func (t *ThreadedLowering) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

// Close stops accepting new jobs and waits for in-flight workers to
// finish. In-flight results are discarded once the pool is closed,
// matching §5's cancellation semantics ("in-flight worker probes run to
// completion and their results are discarded").
func (t *ThreadedLowering) Close() {
	close(t.jobs)
	t.wg.Wait()
}
