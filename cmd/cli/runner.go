package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/anstrom/recon/internal/boundary"
	"github.com/anstrom/recon/internal/config"
	"github.com/anstrom/recon/internal/engine"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/metrics"
	"github.com/anstrom/recon/internal/output"
	"github.com/anstrom/recon/internal/pool"
	"github.com/anstrom/recon/internal/probe"
	"github.com/anstrom/recon/internal/store"
	"github.com/anstrom/recon/internal/targets"
	"github.com/anstrom/recon/internal/worker"
)

// runner holds what stays fixed across scans: the resolved boundary, the
// probe, the metrics recorder and the optional result store.
type runner struct {
	cfg      *config.Config
	targets  scanFlags
	boundary boundary.Boundary
	probe    probe.Job
	recorder metrics.Recorder
	server   *metrics.Server
	db       *store.DB
	logger   *logging.Logger
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newRunner(ctx context.Context, cfg *config.Config, opts scanFlags) (*runner, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := logging.Default()

	// Surface target and port mistakes before touching anything else.
	if _, err := targets.NewFeeder(opts.targets, opts.ports, opts.exclude); err != nil {
		return nil, err
	}

	b, err := resolveBoundary(cfg)
	if err != nil {
		return nil, err
	}

	j, err := probe.New(cfg.Probe.Method, cfg.Probe)
	if err != nil {
		return nil, err
	}

	r := &runner{
		cfg:      cfg,
		targets:  opts,
		boundary: b,
		probe:    j,
		recorder: metrics.Nop{},
		logger:   logger,
	}

	if cfg.Metrics.Enabled {
		pm := metrics.NewPrometheusMetrics()
		r.recorder = pm
		r.server = metrics.NewServer(cfg.Metrics.ListenAddr, pm, logger)
	}

	if cfg.Database.Enabled {
		db, err := store.Connect(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		r.db = db
	}

	logger.Info("Engine ready",
		"boundary", b.String(),
		"method", cfg.Probe.Method,
		"timeout", cfg.Engine.Timeout,
		"stash_delay", cfg.Engine.StashDelay)
	return r, nil
}

func resolveBoundary(cfg *config.Config) (boundary.Boundary, error) {
	b, err := boundary.Resolve(cfg.Engine.FDMargin)
	if err != nil {
		return boundary.Boundary{}, err
	}
	if cfg.Engine.MaxJobs > 0 {
		b = b.Cap(cfg.Engine.MaxJobs)
	}
	return b, nil
}

// serve runs fn while the metrics server, if any, is up. The server stops
// once fn returns.
func (r *runner) serve(ctx context.Context, fn func() error) error {
	if r.server == nil {
		return fn()
	}

	g, gctx := errgroup.WithContext(ctx)
	srvCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error { return r.server.Run(srvCtx) })
	g.Go(func() error {
		defer stopServer()
		return fn()
	})
	return g.Wait()
}

// runOnce performs one full scan. An interrupted scan still writes what it
// finished and is not an error.
func (r *runner) runOnce(ctx context.Context, summary io.Writer) (engine.Stats, error) {
	feeder, err := targets.NewFeeder(r.targets.targets, r.targets.ports, r.targets.exclude)
	if err != nil {
		return engine.Stats{}, err
	}

	p := r.newPool()
	defer p.Close()

	sink, err := r.openSink(ctx)
	if err != nil {
		return engine.Stats{}, err
	}

	r.logger.Info("Starting scan",
		"targets", r.targets.targets,
		"ports", r.targets.ports,
		"pairs", feeder.Total())

	stats, runErr := engine.Run(ctx, p, feeder, sink, engine.Options{
		TickInterval: r.cfg.Engine.TickInterval,
		FlushTimeout: r.cfg.Engine.Timeout,
		Logger:       r.logger,
	})
	if err := sink.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to close output: %w", err)
	}
	if stderrors.Is(runErr, context.Canceled) {
		r.logger.Warn("Scan interrupted", "unprobed", stats.Unprobed)
		runErr = nil
	}

	if r.cfg.Output.Summary && summary != nil {
		if err := output.Summary(summary, stats.ByState, stats.Elapsed); err != nil {
			r.logger.Warn("Failed to print summary", "error", err)
		}
	}
	return stats, runErr
}

func (r *runner) newPool() *engine.Pool {
	var workerOpts []worker.Option
	if rl := r.cfg.Engine.RateLimit; rl.Enabled {
		workerOpts = append(workerOpts, worker.WithRateLimit(rl.RequestsPerSecond, rl.BurstSize))
	}

	return pool.New(r.probe, r.boundary, pool.Config{
		TTL:        r.cfg.Engine.Timeout,
		StashDelay: r.cfg.Engine.StashDelay,
		ChunkSize:  r.cfg.Engine.ChunkSize,
		MaxRetries: r.cfg.Engine.MaxRetries,
	},
		pool.WithRecorder(r.recorder),
		pool.WithLogger(r.logger),
		pool.WithWorkerOptions(workerOpts...),
	)
}

func (r *runner) openSink(ctx context.Context) (output.Sink, error) {
	sink, err := output.Open(r.cfg.Output.Format, r.cfg.Output.Path)
	if err != nil {
		return nil, err
	}
	if r.cfg.Output.OpenOnly {
		sink = output.OpenOnly(sink)
	}
	if r.db == nil {
		return sink, nil
	}

	scan := store.NewScan(r.cfg.Probe.Method, r.targets.targets, r.targets.ports)
	// Results flushed after an interrupt must still reach the database.
	dbSink, err := store.NewSink(context.WithoutCancel(ctx), r.db, scan)
	if err != nil {
		_ = sink.Close()
		return nil, err
	}
	return output.Tee(sink, dbSink), nil
}

func (r *runner) close() {
	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("Failed to close database", "error", err)
		}
	}
}
