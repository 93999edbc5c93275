package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one collection cycle.
type Job interface {
	RunOnce(ctx context.Context) error
}

// JobFunc is a function adapter for Job.
type JobFunc func(ctx context.Context) error

func (f JobFunc) RunOnce(ctx context.Context) error {
	return f(ctx)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Time between cycle starts (default: 24h)
	Timeout  time.Duration // Per-cycle timeout, 0 disables

	// Fatal reports whether a cycle error should stop the poller. Nil
	// treats every error as recoverable.
	Fatal func(error) bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 24 * time.Hour,
	}
}

// Poller periodically runs a job.
type Poller struct {
	cfg    Config
	job    Job
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	err  error
	done chan struct{}
}

// New creates a new Poller.
func New(cfg Config, job Job, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Poller{
		cfg:    cfg,
		job:    job,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	go p.run()

	p.logger.Info("poller started",
		"interval", p.cfg.Interval,
		"timeout", p.cfg.Timeout,
	)

	return nil
}

// Stop gracefully shuts down the poller, waiting for a running cycle.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	select {
	case <-p.done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done is closed when the loop exits.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Err returns the fatal error that stopped the loop, if any.
func (p *Poller) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// run is the main polling loop.
func (p *Poller) run() {
	defer close(p.done)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	if !p.cycle() {
		return
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if !p.cycle() {
				return
			}
		}
	}
}

// cycle runs the job once and reports whether polling should continue.
func (p *Poller) cycle() bool {
	start := time.Now()

	ctx := p.ctx
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(p.ctx, p.cfg.Timeout)
		defer cancel()
	}

	err := p.job.RunOnce(ctx)
	if p.ctx.Err() != nil {
		return false
	}

	if err != nil {
		if p.cfg.Fatal != nil && p.cfg.Fatal(err) {
			p.logger.Error("poll cycle failed, stopping",
				"error", err,
				"duration", time.Since(start),
			)
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return false
		}
		p.logger.Warn("poll cycle failed",
			"error", err,
			"duration", time.Since(start),
		)
		return true
	}

	p.logger.Info("poll cycle complete",
		"duration", time.Since(start),
	)
	return true
}
