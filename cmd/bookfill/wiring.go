package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/bookfill/internal/api"
	"github.com/rickgao/bookfill/internal/config"
	"github.com/rickgao/bookfill/internal/database"
	"github.com/rickgao/bookfill/internal/gapscan"
	"github.com/rickgao/bookfill/internal/interpolate"
	"github.com/rickgao/bookfill/internal/metrics"
	"github.com/rickgao/bookfill/internal/model"
	"github.com/rickgao/bookfill/internal/poller"
	"github.com/rickgao/bookfill/internal/store"
)

// connectStore opens the pool and ensures the pair's table exists.
func (a *app) connectStore(ctx context.Context) (*pgxpool.Pool, *store.Postgres, error) {
	db := a.cfg.Database.Timescale
	a.logger.Info("connecting to database",
		"host", db.Host,
		"port", db.Port,
		"database", db.Name,
	)

	pool, err := database.Connect(ctx, db)
	if err != nil {
		return nil, nil, err
	}

	st := store.NewPostgres(pool, store.TableName(a.cfg.Pair.Exchange, a.cfg.Pair.Symbol), store.Config{
		BatchSize:    a.cfg.Store.BatchSize,
		QueryTimeout: a.cfg.Store.QueryTimeout,
	}, a.logger)

	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	a.logger.Info("database connected", "table", st.Table())
	return pool, st, nil
}

func (a *app) exchange() model.Exchange {
	ex, _ := model.ParseExchange(a.cfg.Pair.Exchange)
	return ex
}

func (a *app) apiClient() *api.Client {
	c := a.cfg.API
	return api.NewClient(c.BaseURL, c.APIKey,
		api.WithLogger(a.logger),
		api.WithTimeout(c.Timeout),
		api.WithRetries(c.MaxRetries, c.RetryBackoff),
		api.WithRateLimit(c.RateLimit, c.RateBurst),
		api.WithCircuitBreaker(c.BreakerFailures, c.BreakerTimeout),
	)
}

func (a *app) scanner(src gapscan.TimestampSource) *gapscan.Scanner {
	return gapscan.New(src, gapscan.Config{
		ChunkSize: a.cfg.Scan.ChunkSize,
		Tolerance: a.cfg.Scan.GapTolerance,
		EdgeGaps:  a.cfg.Scan.EdgeGaps,
	}, a.logger)
}

func (a *app) interpolator() *interpolate.Interpolator {
	c := a.cfg.Interpolation
	return interpolate.New(interpolate.Config{
		Cadence:    c.Cadence,
		NoiseScale: c.NoiseScale,
		Seed:       c.Seed,
		MaxPoints:  c.MaxPoints,
	})
}

// historyRange returns the configured range, with an unset end meaning now.
func (a *app) historyRange() (time.Time, time.Time) {
	end := a.cfg.History.End.Time
	if end.IsZero() {
		end = time.Now().UTC()
	}
	return a.cfg.History.Start.Time, end
}

// withMetrics runs fn, serving metrics alongside it when enabled. The metrics
// server stops once fn returns.
func (a *app) withMetrics(ctx context.Context, db metrics.Pinger, fn func(ctx context.Context, m *metrics.Metrics) error) error {
	if !a.cfg.Metrics.Enabled {
		return fn(ctx, nil)
	}

	m := metrics.New()
	srv := metrics.NewServer(a.cfg.Metrics.Port, a.cfg.Metrics.Path, m, db, a.logger)

	serveCtx, stopServe := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(serveCtx)

	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		defer stopServe()
		return fn(gctx, m)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}

// overrideRange applies optional --start/--end overrides against the config.
func overrideRange(cfg *config.Config, start, end string) error {
	if start != "" {
		t, err := config.ParseDate(start)
		if err != nil {
			return fmt.Errorf("--start: %w", err)
		}
		cfg.History.Start = config.Date{Time: t}
	}
	if end != "" {
		t, err := config.ParseDate(end)
		if err != nil {
			return fmt.Errorf("--end: %w", err)
		}
		cfg.History.End = config.Date{Time: t}
	}
	if !cfg.History.End.IsZero() && !cfg.History.End.After(cfg.History.Start.Time) {
		return fmt.Errorf("end %s must be after start %s", cfg.History.End.Format(time.RFC3339), cfg.History.Start.Format(time.RFC3339))
	}
	return nil
}

// repeat runs job once, or every interval until ctx is cancelled or a
// storage error occurs.
func (a *app) repeat(ctx context.Context, every time.Duration, job poller.JobFunc) error {
	if every <= 0 {
		return job(ctx)
	}

	p := poller.New(poller.Config{Interval: every, Fatal: store.IsStorageError}, job, a.logger)
	if err := p.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-p.Done():
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		return err
	}
	return p.Err()
}
