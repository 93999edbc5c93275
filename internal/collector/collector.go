// Package collector drives forward collection one day at a time.
//
// The resume point is derived from the store on every run, so an
// interrupted run simply continues where the data ends.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/bookfill/internal/metrics"
	"github.com/rickgao/bookfill/internal/model"
)

// ResumeStrategy selects where a run starts relative to stored data.
type ResumeStrategy string

const (
	// ResumeNextDay starts one day after the latest stored row.
	ResumeNextDay ResumeStrategy = "next_day"
	// ResumeFromLatest starts just after the latest stored row.
	ResumeFromLatest ResumeStrategy = "from_latest"
	// ResumeFromStart always starts at the configured start.
	ResumeFromStart ResumeStrategy = "from_start"
)

// ParseResumeStrategy parses a strategy name.
func ParseResumeStrategy(s string) (ResumeStrategy, error) {
	switch r := ResumeStrategy(s); r {
	case ResumeNextDay, ResumeFromLatest, ResumeFromStart:
		return r, nil
	case "":
		return ResumeNextDay, nil
	default:
		return "", fmt.Errorf("unknown resume strategy %q", s)
	}
}

// Fetcher retrieves snapshots from the market-data source.
type Fetcher interface {
	FetchBook(ctx context.Context, exchange model.Exchange, symbol string, start, end time.Time) ([]model.OrderBookSnapshot, error)
}

// Store is the snapshot store the collector appends to.
type Store interface {
	LatestTimestamp(ctx context.Context) (time.Time, bool, error)
	Append(ctx context.Context, snapshots []model.OrderBookSnapshot) (int, error)
}

// Config holds collector settings.
type Config struct {
	Exchange model.Exchange
	Symbol   string
	Start    time.Time      // Used when the store is empty or for ResumeFromStart
	End      time.Time      // Zero means now
	Resume   ResumeStrategy // Defaults to ResumeNextDay
	Step     time.Duration  // Window size, defaults to one day
}

// Summary aggregates a run.
type Summary struct {
	From     time.Time
	To       time.Time
	Days     int
	Fetched  int // Days with rows
	Empty    int // Days the source had nothing for
	Failed   int // Days the fetch failed
	Rows     int // Rows newly written
	Duration time.Duration
}

// Collector fetches forward from the resume point.
type Collector struct {
	cfg     Config
	fetcher Fetcher
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	now func() time.Time
}

// New creates a collector. m may be nil.
func New(cfg Config, fetcher Fetcher, store Store, m *metrics.Metrics, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Resume == "" {
		cfg.Resume = ResumeNextDay
	}
	if cfg.Step <= 0 {
		cfg.Step = 24 * time.Hour
	}
	return &Collector{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		metrics: m,
		logger:  logger.With("exchange", cfg.Exchange, "symbol", cfg.Symbol),
		now:     time.Now,
	}
}

// ResumePoint returns where the next run starts.
func (c *Collector) ResumePoint(ctx context.Context) (time.Time, error) {
	if c.cfg.Resume == ResumeFromStart {
		return c.cfg.Start, nil
	}

	latest, ok, err := c.store.LatestTimestamp(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("latest timestamp: %w", err)
	}
	if !ok {
		return c.cfg.Start, nil
	}

	switch c.cfg.Resume {
	case ResumeFromLatest:
		return latest.Add(model.Epsilon), nil
	default:
		return latest.Add(c.cfg.Step), nil
	}
}

// Run fetches one window at a time from the resume point until the window
// start passes the end. Empty or failed windows are logged and skipped.
// Storage errors stop the run.
func (c *Collector) Run(ctx context.Context) (Summary, error) {
	begin := c.now()

	end := c.cfg.End
	if end.IsZero() {
		end = begin.UTC()
	}

	from, err := c.ResumePoint(ctx)
	if err != nil {
		return Summary{}, err
	}
	sum := Summary{From: from, To: end}

	c.logger.Info("collection started",
		"from", from,
		"to", end,
		"resume", c.cfg.Resume,
	)

	for cur := from; !cur.After(end); cur = cur.Add(c.cfg.Step) {
		if err := ctx.Err(); err != nil {
			sum.Duration = c.now().Sub(begin)
			return sum, err
		}

		n, err := c.collectWindow(ctx, cur, cur.Add(c.cfg.Step), &sum)
		sum.Rows += n
		if err != nil {
			sum.Duration = c.now().Sub(begin)
			return sum, err
		}
	}

	sum.Duration = c.now().Sub(begin)
	c.logger.Info("collection complete",
		"days", sum.Days,
		"fetched", sum.Fetched,
		"empty", sum.Empty,
		"failed", sum.Failed,
		"rows", sum.Rows,
		"duration", sum.Duration,
	)
	return sum, nil
}

func (c *Collector) collectWindow(ctx context.Context, start, end time.Time, sum *Summary) (int, error) {
	sum.Days++

	rows, err := c.fetcher.FetchBook(ctx, c.cfg.Exchange, c.cfg.Symbol, start, end)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		sum.Failed++
		c.metrics.FetchError()
		c.metrics.CollectorDay("failed")
		c.logger.Warn("fetch failed", "start", start, "end", end, "error", err)
		return 0, nil
	}

	if len(rows) == 0 {
		sum.Empty++
		c.metrics.CollectorDay("empty")
		c.logger.Warn("no data for window", "start", start, "end", end)
		return 0, nil
	}

	n, err := c.store.Append(ctx, rows)
	if err != nil {
		return n, fmt.Errorf("persist %s: %w", model.TimeRange{Start: start, End: end}, err)
	}

	sum.Fetched++
	c.metrics.CollectorDay("fetched")
	c.metrics.RowsPersisted(string(model.ProvenanceFetched), n)
	c.logger.Info("window collected", "start", start, "end", end, "rows", len(rows), "persisted", n)
	return n, nil
}
