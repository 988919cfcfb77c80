package zoom

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrStopped is returned when work is dispatched to a stopped pool.
var ErrStopped = errors.New("zoom pool stopped")

// Job describes the decimation of one line to len(Out) pixels.
type Job struct {
	Data   []float32 // Raw FFT line
	Offset int       // First raw bin of the window
	Width  int       // Number of raw bins in the window
	Out    []float32 // Destination display line
}

// Span is a half-open range of output pixels [From, To).
type Span struct {
	From int
	To   int
}

// Len returns the number of pixels in the span.
func (s Span) Len() int {
	return s.To - s.From
}

// Partition splits [0, total) into parts disjoint, contiguous spans that cover
// the range exactly once. Earlier spans receive the remainder, so span lengths
// differ by at most one. Spans may be empty when parts > total.
func Partition(total, parts int) []Span {
	if parts <= 0 {
		return nil
	}
	total = max(total, 0)

	spans := make([]Span, parts)
	base, rem := total/parts, total%parts

	from := 0
	for i := range spans {
		n := base
		if i < rem {
			n++
		}
		spans[i] = Span{From: from, To: from + n}
		from += n
	}
	return spans
}

type task struct {
	job  *Job
	span Span
	done *sync.WaitGroup
}

type worker struct {
	idx   int
	tasks chan task
}

// WithLogger sets the logger for the pool
func WithLogger(logger *slog.Logger) func(*Pool) {
	return func(p *Pool) {
		p.logger = logger.With(slog.String("component", "zoom"))
	}
}

// Pool is a fixed-size set of decimation workers. Dispatch fans one line out to
// every worker, each owning a disjoint slice of the output width, and fans in
// on a completion barrier. Resizing tears the pool down and rebuilds it under
// the same lock that serializes dispatches, so no worker ever mixes dimensions
// from before and after a change.
type Pool struct {
	mu      sync.Mutex
	workers []*worker
	stop    chan struct{}
	running sync.WaitGroup

	stopped atomic.Bool

	logger *slog.Logger
}

// NewPool starts a pool with the given number of workers (at least one).
func NewPool(workers int, options ...func(*Pool)) *Pool {
	p := &Pool{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // nil logger
	}
	for _, option := range options {
		option(p)
	}

	p.start(max(workers, 1))
	return p
}

func (p *Pool) start(n int) {
	p.stop = make(chan struct{})
	p.workers = make([]*worker, n)

	for i := range p.workers {
		w := &worker{idx: i, tasks: make(chan task, 1)}
		p.workers[i] = w

		p.running.Add(1)
		go p.loop(w, p.stop)
	}

	p.logger.Debug("zoom workers started", slog.Int("workers", n))
}

func (p *Pool) teardown() {
	close(p.stop)
	p.running.Wait()
	p.workers = nil
}

func (p *Pool) loop(w *worker, stop <-chan struct{}) {
	defer p.running.Done()

	for {
		select {
		case <-stop:
			return

		case t := <-w.tasks:
			j := t.job
			DecimateRange(j.Data, j.Offset, j.Width, len(j.Out), t.span.From, t.span.To, j.Out)
			t.done.Done()
		}
	}
}

// Dispatch decimates one line using every worker and returns once all of them
// have completed their span.
func (p *Pool) Dispatch(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped.Load() {
		return ErrStopped
	}
	if len(job.Out) == 0 || len(job.Data) == 0 {
		return nil
	}

	var done sync.WaitGroup
	for i, span := range Partition(len(job.Out), len(p.workers)) {
		if span.Len() == 0 {
			continue
		}
		done.Add(1)
		p.workers[i].tasks <- task{job: job, span: span, done: &done}
	}
	done.Wait()

	return nil
}

// Resize rebuilds the pool with n workers.
func (p *Pool) Resize(n int) error {
	n = max(n, 1)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped.Load() {
		return ErrStopped
	}
	if n == len(p.workers) {
		return nil
	}

	p.teardown()
	p.start(n)

	return nil
}

// Workers returns the current number of workers.
func (p *Pool) Workers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Stop terminates every worker and waits for them to exit. It is safe to call
// more than once.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.stopped.CompareAndSwap(false, true) {
		return
	}
	p.teardown()

	p.logger.Debug("zoom workers stopped")
}
