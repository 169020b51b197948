// Package pool drives the scheduling loop: it feeds a worker from a target
// queue, drains completions, parks resource-exhausted attempts in a stash and
// re-admits retryable failures ahead of new work.
package pool

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/anstrom/recon/internal/boundary"
	"github.com/anstrom/recon/internal/job"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
	"github.com/anstrom/recon/internal/stash"
	"github.com/anstrom/recon/internal/worker"
)

const (
	DefaultStashDelay = 5 * time.Second
	DefaultChunkSize  = 4000
	DefaultMaxRetries = 3
)

// Feeder lazily produces states.
type Feeder[S any] interface {
	// GenerateChunk appends up to amount states to buf and returns how many
	// were appended.
	GenerateChunk(buf *[]S, amount int) int
	// IsDone reports whether the feeder is exhausted.
	IsDone() bool
}

// Config holds pool settings.
type Config struct {
	// TTL is the per-attempt deadline.
	TTL time.Duration
	// StashDelay is the constant backoff for resource-exhausted attempts.
	StashDelay time.Duration
	// ChunkSize bounds how many states FireFromFeeder admits per call.
	ChunkSize int
	// MaxRetries bounds immediate re-admissions of one state after
	// unclassified failures.
	MaxRetries int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		TTL:        5 * time.Second,
		StashDelay: DefaultStashDelay,
		ChunkSize:  DefaultChunkSize,
		MaxRetries: DefaultMaxRetries,
	}
}

// attempt tracks how often a state was re-admitted immediately.
type attempt[S any] struct {
	state   S
	retries int
}

// attemptJob runs the wrapped job on the attempt's state.
type attemptJob[S, R any] struct {
	inner job.Job[S, R]
}

func (j attemptJob[S, R]) Execute(ctx context.Context, a attempt[S]) (job.Outcome[R], error) {
	return j.inner.Execute(ctx, a.state)
}

type settings struct {
	backoff       backoff.BackOff
	recorder      metrics.Recorder
	logger        *logging.Logger
	workerOptions []worker.Option
	stashOptions  []stash.Option
}

// Option configures a Pool.
type Option func(*settings)

// WithBackOff replaces the constant stash delay policy. A policy returning
// backoff.Stop makes resource-exhausted outcomes final.
func WithBackOff(b backoff.BackOff) Option {
	return func(s *settings) { s.backoff = b }
}

// WithRecorder reports scheduling events to r.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWorkerOptions passes options through to the worker.
func WithWorkerOptions(opts ...worker.Option) Option {
	return func(s *settings) { s.workerOptions = append(s.workerOptions, opts...) }
}

// WithStashOptions passes options through to the stash.
func WithStashOptions(opts ...stash.Option) Option {
	return func(s *settings) { s.stashOptions = append(s.stashOptions, opts...) }
}

// Pool composes a worker and a stash. Its methods are meant to be called
// from a single scheduling goroutine.
type Pool[S, R any] struct {
	cfg      Config
	worker   *worker.Worker[attempt[S], R]
	stash    *stash.Stash[attempt[S]]
	retry    []attempt[S]
	backoff  backoff.BackOff
	recorder metrics.Recorder
	logger   *logging.Logger

	stashedTotal int
	retriedTotal int
}

// New creates a pool running j under boundary b.
func New[S, R any](j job.Job[S, R], b boundary.Boundary, cfg Config, opts ...Option) *Pool[S, R] {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.StashDelay < 0 {
		cfg.StashDelay = DefaultStashDelay
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	s := settings{
		recorder: metrics.Nop{},
		logger:   logging.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.backoff == nil {
		s.backoff = backoff.NewConstantBackOff(cfg.StashDelay)
	}

	workerOpts := append([]worker.Option{
		worker.WithRecorder(s.recorder),
		worker.WithLogger(s.logger),
	}, s.workerOptions...)

	return &Pool[S, R]{
		cfg:      cfg,
		worker:   worker.New[attempt[S], R](attemptJob[S, R]{inner: j}, b, cfg.TTL, workerOpts...),
		stash:    stash.New[attempt[S]](s.stashOptions...),
		backoff:  s.backoff,
		recorder: s.recorder,
		logger:   s.logger.WithComponent("pool"),
	}
}

// Tick runs one scheduling round: due stash entries rejoin the retry list,
// retries and then queued states are admitted, every completion logged so
// far is drained, and the final ones are returned. Resource-exhausted
// attempts go to the stash and retryable failures under the retry ceiling go
// back to the retry list; neither appears in the result.
func (p *Pool[S, R]) Tick(queue *[]S) []worker.Completion[S, R] {
	p.stash.Release(&p.retry)
	p.spawn(queue)

	var final []worker.Completion[S, R]
	stashed, retried := 0, 0
	for {
		batch, ok := p.worker.Next()
		if !ok {
			break
		}
		for _, c := range batch {
			switch p.classify(c) {
			case verdictStash:
				stashed++
			case verdictRetry:
				retried++
			default:
				final = append(final, worker.Completion[S, R]{
					Outcome: c.Outcome,
					State:   c.State.state,
					Elapsed: c.Elapsed,
				})
			}
		}
	}

	if stashed == 0 && len(final)+retried > 0 {
		p.backoff.Reset()
	}
	if stashed > 0 {
		p.logger.Warn("Stashed resource-exhausted jobs",
			"count", stashed,
			"stash_size", p.stash.Amount(),
			"in_flight", p.worker.JobCount())
	}
	p.recorder.SetStashed(p.stash.Amount())

	return final
}

type verdict int

const (
	verdictFinal verdict = iota
	verdictStash
	verdictRetry
)

func (p *Pool[S, R]) classify(c worker.Completion[attempt[S], R]) verdict {
	if c.Outcome.IsReturn() {
		return verdictFinal
	}

	a := c.State
	switch {
	case c.Outcome.Err.IsResourceExhaustion():
		delay := p.backoff.NextBackOff()
		if delay == backoff.Stop {
			return verdictFinal
		}
		p.stash.Insert(a, delay)
		p.stashedTotal++
		p.recorder.JobStashed()
		return verdictStash

	case c.Outcome.Err.Retryable():
		if a.retries >= p.cfg.MaxRetries {
			p.logger.Warn("Retry ceiling reached",
				"retries", a.retries,
				"error", c.Outcome.Err.String())
			return verdictFinal
		}
		a.retries++
		p.retry = append(p.retry, a)
		p.retriedTotal++
		p.recorder.JobRetried()
		return verdictRetry
	}

	return verdictFinal
}

// FireFromFeeder admits up to ChunkSize states, taking due retries first and
// pulling from f only what the remaining allocation needs. It returns the
// number of attempts spawned.
func (p *Pool[S, R]) FireFromFeeder(queue *[]S, f Feeder[S]) int {
	alloc := p.worker.CalcNewSpawns(p.cfg.ChunkSize)
	if alloc == 0 {
		return 0
	}

	p.stash.Release(&p.retry)

	need := alloc - len(p.retry) - len(*queue)
	if need > 0 && !f.IsDone() {
		pulled := f.GenerateChunk(queue, need)
		p.logger.Debug("Pulled targets", "requested", need, "pulled", pulled)
	}

	return p.spawn(queue)
}

// spawn admits the retry list first, then the front of queue.
func (p *Pool[S, R]) spawn(queue *[]S) int {
	spawned := 0
	if len(p.retry) > 0 {
		spawned += p.worker.Spawn(&p.retry)
	}

	room := p.worker.CalcNewSpawns(len(*queue))
	if room == 0 {
		return spawned
	}

	batch := make([]attempt[S], room)
	for i := range batch {
		batch[i].state = (*queue)[i]
	}
	n := p.worker.Spawn(&batch)

	remaining := copy(*queue, (*queue)[n:])
	clear((*queue)[remaining:])
	*queue = (*queue)[:remaining]

	return spawned + n
}

// JobCount returns the number of admitted attempts not yet drained.
func (p *Pool[S, R]) JobCount() int {
	return p.worker.JobCount()
}

// Stashed returns the number of parked attempts.
func (p *Pool[S, R]) Stashed() int {
	return p.stash.Amount()
}

// Retrying returns the number of attempts awaiting immediate re-admission.
func (p *Pool[S, R]) Retrying() int {
	return len(p.retry)
}

// Totals returns how many attempts were stashed and how many were re-admitted
// immediately over the pool's lifetime.
func (p *Pool[S, R]) Totals() (stashed, retried int) {
	return p.stashedTotal, p.retriedTotal
}

// IsWorking reports whether admitted attempts, stash entries or pending
// retries remain.
func (p *Pool[S, R]) IsWorking() bool {
	return p.worker.JobCount() > 0 || p.stash.Amount() > 0 || len(p.retry) > 0
}

// FlushChannel waits for every running attempt and returns all drained
// completions as final, without reclassification.
func (p *Pool[S, R]) FlushChannel(ctx context.Context) ([]worker.Completion[S, R], error) {
	drained, err := p.worker.FlushAll(ctx)
	out := make([]worker.Completion[S, R], len(drained))
	for i, c := range drained {
		out[i] = worker.Completion[S, R]{Outcome: c.Outcome, State: c.State.state, Elapsed: c.Elapsed}
	}
	return out, err
}

// FlushStash moves every parked and pending-retry state into out and
// returns how many were moved.
func (p *Pool[S, R]) FlushStash(out *[]S) int {
	var parked []attempt[S]
	p.stash.Flush(&parked)
	parked = append(parked, p.retry...)
	p.retry = nil

	for _, a := range parked {
		*out = append(*out, a.state)
	}
	p.recorder.SetStashed(0)
	return len(parked)
}

// Close cancels running attempts.
func (p *Pool[S, R]) Close() {
	p.worker.Close()
}
