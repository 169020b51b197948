// Package worker runs job attempts concurrently under an admission ceiling.
// Every admitted attempt gets its own goroutine and a hard deadline; results
// accumulate in a completion log the caller drains without blocking.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/anstrom/recon/internal/boundary"
	"github.com/anstrom/recon/internal/job"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
)

const (
	defaultBufferSize = 1024
	maxBufferSize     = 1 << 16

	// flushPollInterval is how often FlushAll checks for running jobs.
	flushPollInterval = 5 * time.Millisecond
)

// Completion pairs the outcome of one attempt with the state it ran on.
type Completion[S, R any] struct {
	Outcome job.Outcome[R]
	State   S
	Elapsed time.Duration
}

type settings struct {
	recorder   metrics.Recorder
	logger     *logging.Logger
	limiter    *rate.Limiter
	bufferSize int
}

// Option configures a Worker.
type Option func(*settings)

// WithRecorder reports spawn and completion events to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger. The default is the package default logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit caps spawns to rps per second with the given burst. Spawn
// never waits for tokens; states it cannot admit stay queued.
func WithRateLimit(rps, burst int) Option {
	return func(s *settings) {
		if rps <= 0 {
			return
		}
		if burst <= 0 {
			burst = rps
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithBufferSize sets the initial capacity of the completion log.
func WithBufferSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// Worker spawns attempts of a single job up to its boundary.
type Worker[S, R any] struct {
	job      job.Job[S, R]
	boundary boundary.Boundary
	ttl      time.Duration

	// admitted counts attempts spawned but not yet returned by Next.
	admitted atomic.Int64
	// running counts attempts whose goroutine has not yet logged a completion.
	running atomic.Int64

	mu      sync.Mutex
	done    []Completion[S, R]
	bufSize int

	limiter  *rate.Limiter
	recorder metrics.Recorder
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a worker that runs j with a per-attempt deadline of ttl.
// A ttl of zero or less disables the deadline.
func New[S, R any](j job.Job[S, R], b boundary.Boundary, ttl time.Duration, opts ...Option) *Worker[S, R] {
	s := settings{
		recorder: metrics.Nop{},
		logger:   logging.Default(),
	}
	if b.IsLimited() {
		s.bufferSize = min(b.Limit(), maxBufferSize)
	} else {
		s.bufferSize = defaultBufferSize
	}
	for _, opt := range opts {
		opt(&s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Worker[S, R]{
		job:      j,
		boundary: b,
		ttl:      ttl,
		done:     make([]Completion[S, R], 0, s.bufferSize),
		bufSize:  s.bufferSize,
		limiter:  s.limiter,
		recorder: s.recorder,
		logger:   s.logger.WithComponent("worker"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Boundary returns the admission ceiling.
func (w *Worker[S, R]) Boundary() boundary.Boundary {
	return w.boundary
}

// JobCount returns the number of attempts admitted but not yet drained.
func (w *Worker[S, R]) JobCount() int {
	return int(w.admitted.Load())
}

// Running returns the number of attempts still executing.
func (w *Worker[S, R]) Running() int {
	return int(w.running.Load())
}

// CalcNewSpawns returns how many of pending may be admitted now.
func (w *Worker[S, R]) CalcNewSpawns(pending int) int {
	return w.boundary.Allows(w.JobCount(), pending)
}

// Spawn admits as many states from the front of queue as the boundary and
// rate limit allow, removes them from queue, and returns the count. It does
// not wait for any attempt to finish.
func (w *Worker[S, R]) Spawn(queue *[]S) int {
	n := w.CalcNewSpawns(len(*queue))
	if n > 0 && w.limiter != nil {
		n = w.reserve(n)
	}
	if n == 0 {
		return 0
	}

	for _, state := range (*queue)[:n] {
		w.launch(state)
	}

	remaining := copy(*queue, (*queue)[n:])
	clear((*queue)[remaining:])
	*queue = (*queue)[:remaining]

	w.recorder.SetInFlight(w.JobCount())
	w.logger.Debug("Spawned jobs", "count", n, "queued", remaining, "in_flight", w.JobCount())
	return n
}

// reserve takes up to n tokens without waiting.
func (w *Worker[S, R]) reserve(n int) int {
	for i := 0; i < n; i++ {
		if !w.limiter.Allow() {
			return i
		}
	}
	return n
}

func (w *Worker[S, R]) launch(state S) {
	w.admitted.Add(1)
	w.running.Add(1)
	w.wg.Add(1)
	w.recorder.JobSpawned()

	go func() {
		defer w.wg.Done()
		defer w.running.Add(-1)

		start := time.Now()
		outcome := w.run(state)
		w.push(Completion[S, R]{Outcome: outcome, State: state, Elapsed: time.Since(start)})
	}()
}

type attemptResult[R any] struct {
	outcome job.Outcome[R]
	err     error
}

// run executes one attempt under the deadline. Expiry cancels the attempt's
// context, so dials and reads that honor it release their sockets.
func (w *Worker[S, R]) run(state S) job.Outcome[R] {
	ctx, cancel := w.attemptContext()
	defer cancel()

	ch := make(chan attemptResult[R], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.Warn("Job panicked", "panic", r)
				ch <- attemptResult[R]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		out, err := w.job.Execute(ctx, state)
		ch <- attemptResult[R]{outcome: out, err: err}
	}()

	select {
	case res := <-ch:
		// A job that noticed the expired deadline first still timed out.
		if ctx.Err() != nil {
			return w.expired()
		}
		if res.err != nil {
			return job.TaskFailure[R](res.err)
		}
		return res.outcome
	case <-ctx.Done():
		return w.expired()
	}
}

func (w *Worker[S, R]) expired() job.Outcome[R] {
	if err := w.ctx.Err(); err != nil {
		return job.Fail[R](job.ErrorClass{Kind: job.ErrIOKind, IO: job.IOCanceled, Cause: err})
	}
	return job.TimedOut[R]()
}

func (w *Worker[S, R]) attemptContext() (context.Context, context.CancelFunc) {
	if w.ttl <= 0 {
		return context.WithCancel(w.ctx)
	}
	return context.WithTimeout(w.ctx, w.ttl)
}

func (w *Worker[S, R]) push(c Completion[S, R]) {
	w.mu.Lock()
	w.done = append(w.done, c)
	w.mu.Unlock()
}

// Next takes every completion logged since the previous call. It returns
// false when there are none. It never blocks on running attempts.
func (w *Worker[S, R]) Next() ([]Completion[S, R], bool) {
	w.mu.Lock()
	if len(w.done) == 0 {
		w.mu.Unlock()
		return nil, false
	}
	out := w.done
	w.done = make([]Completion[S, R], 0, w.bufSize)
	w.mu.Unlock()

	w.admitted.Add(-int64(len(out)))
	for i := range out {
		w.recorder.JobCompleted(out[i].Outcome.Label(), out[i].Elapsed)
	}
	w.recorder.SetInFlight(w.JobCount())
	return out, true
}

// FlushAll waits until no attempt is running, then drains the log. If ctx
// ends first, whatever has completed so far is returned with ctx's error.
func (w *Worker[S, R]) FlushAll(ctx context.Context) ([]Completion[S, R], error) {
	ticker := time.NewTicker(flushPollInterval)
	defer ticker.Stop()

	for w.running.Load() > 0 {
		select {
		case <-ctx.Done():
			return w.drain(), ctx.Err()
		case <-ticker.C:
		}
	}
	return w.drain(), nil
}

func (w *Worker[S, R]) drain() []Completion[S, R] {
	var all []Completion[S, R]
	for {
		batch, ok := w.Next()
		if !ok {
			return all
		}
		all = append(all, batch...)
	}
}

// Close cancels every running attempt and waits for their goroutines to log
// a completion. Completions stay available to Next.
func (w *Worker[S, R]) Close() {
	w.cancel()
	w.wg.Wait()
}
