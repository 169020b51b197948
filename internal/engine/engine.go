// Package engine runs a scan: it pulls targets from a feeder into a pool,
// ticks the pool until every target has a final outcome and hands each batch
// of results to a sink.
package engine

import (
	"context"
	"fmt"
	"net/netip"
	"time"

	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/output"
	"github.com/anstrom/recon/internal/pool"
	"github.com/anstrom/recon/internal/probe"
)

const (
	DefaultTickInterval = time.Millisecond
	DefaultFlushTimeout = 10 * time.Second
	progressLogInterval = 10 * time.Second
)

// Pool is the pool type the engine drives.
type Pool = pool.Pool[netip.AddrPort, probe.Response]

// Feeder supplies targets.
type Feeder = pool.Feeder[netip.AddrPort]

// Options tunes Run.
type Options struct {
	// TickInterval is the pause between scheduling rounds.
	TickInterval time.Duration
	// FlushTimeout bounds how long a canceled run waits for in-flight
	// attempts before canceling them.
	FlushTimeout time.Duration
	Logger       *logging.Logger
}

// Stats summarizes a run.
type Stats struct {
	Results  int
	ByState  map[string]int
	Errors   int
	Stashed  int
	Retried  int
	Unprobed int
	Elapsed  time.Duration
}

func (s *Stats) add(records []output.Record) {
	for i := range records {
		s.Results++
		s.ByState[records[i].State]++
		if records[i].Error != "" {
			s.Errors++
		}
	}
}

// Open returns the number of open results.
func (s Stats) Open() int {
	return s.ByState["open"]
}

// Run drives p until f is exhausted and every admitted target has reached a
// final outcome, writing results to sink as they arrive. Run does not close
// sink or p.
//
// When ctx ends, Run waits up to FlushTimeout for in-flight attempts, writes
// their results, counts stashed and queued targets as unprobed and returns
// ctx's error.
func Run(ctx context.Context, p *Pool, f Feeder, sink output.Sink, opts Options) (stats Stats, err error) {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.FlushTimeout <= 0 {
		opts.FlushTimeout = DefaultFlushTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("engine")

	stats.ByState = make(map[string]int)
	start := time.Now()
	defer func() {
		stats.Stashed, stats.Retried = p.Totals()
		stats.Elapsed = time.Since(start)
	}()

	ticker := time.NewTicker(opts.TickInterval)
	defer ticker.Stop()

	var queue []netip.AddrPort
	lastProgress := start
	ticks := 0

	logger.Info("Scan started")
	for {
		if cause := ctx.Err(); cause != nil {
			return stats, shutdown(p, &queue, sink, &stats, opts.FlushTimeout, logger, cause)
		}

		spawned := p.FireFromFeeder(&queue, f)
		final := p.Tick(&queue)
		ticks++

		if len(final) > 0 {
			records := output.FromCompletions(final)
			stats.add(records)
			if err := sink.Write(records); err != nil {
				return stats, fmt.Errorf("failed to write results: %w", err)
			}
		}

		logger.Debug("Tick",
			"spawned", spawned,
			"final", len(final),
			"queued", len(queue),
			"in_flight", p.JobCount(),
			"stashed", p.Stashed())

		if time.Since(lastProgress) >= progressLogInterval {
			lastProgress = time.Now()
			logger.Info("Scan progress",
				"results", stats.Results,
				"open", stats.Open(),
				"in_flight", p.JobCount(),
				"stashed", p.Stashed(),
				"ticks", ticks)
		}

		if f.IsDone() && len(queue) == 0 && !p.IsWorking() {
			break
		}

		select {
		case <-ctx.Done():
		case <-ticker.C:
		}
	}

	logger.Info("Scan finished",
		"results", stats.Results,
		"open", stats.Open(),
		"errors", stats.Errors,
		"duration", time.Since(start))
	return stats, nil
}

// shutdown drains in-flight attempts and discards everything not yet run.
func shutdown(
	p *Pool, queue *[]netip.AddrPort, sink output.Sink,
	stats *Stats, timeout time.Duration, logger *logging.Logger, cause error,
) error {
	logger.Info("Scan interrupted, flushing in-flight jobs", "in_flight", p.JobCount())

	flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	final, err := p.FlushChannel(flushCtx)
	if err != nil {
		logger.Warn("In-flight jobs outlived the flush timeout, canceling", "timeout", timeout)
		p.Close()
		rest, _ := p.FlushChannel(context.Background())
		final = append(final, rest...)
	}

	var parked []netip.AddrPort
	p.FlushStash(&parked)
	stats.Unprobed = len(parked) + len(*queue)
	*queue = (*queue)[:0]

	if len(final) > 0 {
		records := output.FromCompletions(final)
		stats.add(records)
		if err := sink.Write(records); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}

	logger.Info("Scan stopped",
		"results", stats.Results,
		"unprobed", stats.Unprobed)
	return cause
}
