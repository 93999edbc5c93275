package backfill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/bookfill/internal/gapscan"
	"github.com/rickgao/bookfill/internal/interpolate"
	"github.com/rickgao/bookfill/internal/metrics"
	"github.com/rickgao/bookfill/internal/model"
)

// Fetcher retrieves snapshots from the market-data source.
type Fetcher interface {
	FetchBook(ctx context.Context, exchange model.Exchange, symbol string, start, end time.Time) ([]model.OrderBookSnapshot, error)
}

// Store is the snapshot store used by a run.
type Store interface {
	gapscan.TimestampSource
	Append(ctx context.Context, snapshots []model.OrderBookSnapshot) (int, error)
	RowsInRange(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error)
}

// Outcome is the result of processing one work item.
type Outcome string

const (
	OutcomeFetched Outcome = "fetched" // Source returned rows
	OutcomeImputed Outcome = "imputed" // Bridged by interpolation
	OutcomeSkipped Outcome = "skipped" // Left as a hole
	OutcomeFailed  Outcome = "failed"  // Storage error, run aborted
)

// Report describes how a work item was handled.
type Report struct {
	Item      gapscan.WorkItem
	Outcome   Outcome
	Generated int   // Rows produced by fetch or interpolation
	Persisted int   // Rows newly written
	FetchErr  error // Set when the fetch failed
	Err       error // Reason for skipped or failed
}

// Resolved reports whether the item no longer leaves a hole.
func (r Report) Resolved() bool {
	return r.Outcome == OutcomeFetched || r.Outcome == OutcomeImputed
}

// Summary aggregates a run.
type Summary struct {
	RunID      string
	Range      model.TimeRange
	Chunks     int
	Items      int
	Fetched    int
	Imputed    int
	Skipped    int
	Failed     int
	RowsByKind map[model.Provenance]int
	Unresolved []Report
	Duration   time.Duration
}

func (s *Summary) add(r Report) {
	s.Items++
	switch r.Outcome {
	case OutcomeFetched:
		s.Fetched++
		s.RowsByKind[model.ProvenanceFetched] += r.Persisted
	case OutcomeImputed:
		s.Imputed++
		s.RowsByKind[model.ProvenanceImputed] += r.Persisted
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
	if !r.Resolved() {
		s.Unresolved = append(s.Unresolved, r)
	}
}

// Config holds orchestrator settings.
type Config struct {
	Exchange         model.Exchange
	Symbol           string
	BoundaryLookback time.Duration // How far to look for rows on each side of a gap
}

// Orchestrator runs backfills for one exchange/symbol pair.
type Orchestrator struct {
	cfg     Config
	fetcher Fetcher
	store   Store
	scanner *gapscan.Scanner
	interp  *interpolate.Interpolator
	metrics *metrics.Metrics
	logger  *slog.Logger

	// OnReport, when set, is called after every work item.
	OnReport func(Report)
}

// New creates an orchestrator. m may be nil.
func New(cfg Config, fetcher Fetcher, store Store, scanner *gapscan.Scanner, interp *interpolate.Interpolator, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BoundaryLookback <= 0 {
		cfg.BoundaryLookback = 24 * time.Hour
	}
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		store:   store,
		scanner: scanner,
		interp:  interp,
		metrics: m,
		logger:  logger.With("exchange", cfg.Exchange, "symbol", cfg.Symbol),
	}
}

// Run backfills [start, end]. The returned summary is valid even when an
// error is returned.
func (o *Orchestrator) Run(ctx context.Context, start, end time.Time) (Summary, error) {
	begin := time.Now()
	sum := Summary{
		RunID:      uuid.NewString(),
		Range:      model.TimeRange{Start: start, End: end},
		RowsByKind: make(map[model.Provenance]int),
	}
	logger := o.logger.With("run_id", sum.RunID)

	logger.Info("backfill started",
		"start", start,
		"end", end,
		"chunk_size", o.scanner.Config().ChunkSize,
		"gap_tolerance", o.scanner.Config().Tolerance,
	)

	err := o.run(ctx, logger, &sum)
	sum.Duration = time.Since(begin)
	o.metrics.SetUnresolvedGaps(len(sum.Unresolved))

	for _, r := range sum.Unresolved {
		logger.Warn("unresolved gap",
			"kind", r.Item.Kind,
			"start", r.Item.Range.Start,
			"end", r.Item.Range.End,
			"outcome", r.Outcome,
			"error", r.Err,
		)
	}

	logger.Info("backfill complete",
		"chunks", sum.Chunks,
		"items", sum.Items,
		"fetched", sum.Fetched,
		"imputed", sum.Imputed,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"rows_fetched", sum.RowsByKind[model.ProvenanceFetched],
		"rows_imputed", sum.RowsByKind[model.ProvenanceImputed],
		"unresolved", len(sum.Unresolved),
		"duration", sum.Duration,
		"error", err,
	)

	return sum, err
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, sum *Summary) error {
	// prev is the last persisted time of the previous chunk, so holes across
	// a chunk boundary are found in the later chunk.
	var prev time.Time
	for _, chunk := range o.scanner.Chunks(sum.Range.Start, sum.Range.End) {
		items, last, err := o.scanner.ScanChunkAfter(ctx, chunk, prev)
		if err != nil {
			return fmt.Errorf("scan chunk: %w", err)
		}
		sum.Chunks++
		persisted := 0

		for _, item := range items {
			if err := ctx.Err(); err != nil {
				return err
			}

			r, err := o.process(ctx, logger, item)
			sum.add(r)
			persisted += r.Persisted
			o.metrics.WorkItem(string(item.Kind), string(r.Outcome))
			if r.Persisted > 0 {
				if r.Outcome == OutcomeImputed {
					o.metrics.RowsPersisted(string(model.ProvenanceImputed), r.Persisted)
				} else {
					o.metrics.RowsPersisted(string(model.ProvenanceFetched), r.Persisted)
				}
			}
			if o.OnReport != nil {
				o.OnReport(r)
			}
			if err != nil {
				return err
			}
		}

		if persisted > 0 {
			ts, err := o.store.TimestampsInRange(ctx, chunk.Start, chunk.End)
			if err != nil {
				return fmt.Errorf("rescan chunk: %w", err)
			}
			last = gapscan.Last(ts)
		}
		prev = last
	}
	return nil
}

// Process handles a single work item. A non-nil error is fatal to the run.
func (o *Orchestrator) Process(ctx context.Context, item gapscan.WorkItem) (Report, error) {
	return o.process(ctx, o.logger, item)
}

func (o *Orchestrator) process(ctx context.Context, logger *slog.Logger, item gapscan.WorkItem) (Report, error) {
	r := Report{Item: item}
	logger = logger.With("kind", item.Kind, "start", item.Range.Start, "end", item.Range.End)

	rows, err := o.fetcher.FetchBook(ctx, o.cfg.Exchange, o.cfg.Symbol, item.Range.Start, item.Range.End)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			r.Outcome, r.Err = OutcomeSkipped, ctxErr
			return r, ctxErr
		}
		o.metrics.FetchError()
		r.FetchErr = err
		logger.Warn("fetch failed, interpolating", "error", err)
	} else if len(rows) > 0 {
		r.Generated = len(rows)
		n, err := o.store.Append(ctx, rows)
		r.Persisted = n
		if err != nil {
			r.Outcome, r.Err = OutcomeFailed, err
			return r, fmt.Errorf("persist fetched rows: %w", err)
		}
		r.Outcome = OutcomeFetched
		logger.Info("work item fetched", "rows", len(rows), "persisted", n)
		return r, nil
	} else {
		logger.Debug("fetch returned no rows, interpolating")
	}

	return o.impute(ctx, logger, r)
}

func (o *Orchestrator) impute(ctx context.Context, logger *slog.Logger, r Report) (Report, error) {
	gap := r.Item.Range

	prior, err := o.store.RowsInRange(ctx, gap.Start.Add(-o.cfg.BoundaryLookback), gap.Start)
	if err != nil {
		r.Outcome, r.Err = OutcomeFailed, err
		return r, fmt.Errorf("load prior boundary: %w", err)
	}
	following, err := o.store.RowsInRange(ctx, gap.End, gap.End.Add(o.cfg.BoundaryLookback))
	if err != nil {
		r.Outcome, r.Err = OutcomeFailed, err
		return r, fmt.Errorf("load following boundary: %w", err)
	}

	rows, err := o.interp.Interpolate(prior, following)
	if err != nil {
		if errors.Is(err, interpolate.ErrInsufficientBoundary) || errors.Is(err, interpolate.ErrGapTooWide) {
			r.Outcome, r.Err = OutcomeSkipped, err
			logger.Warn("work item skipped", "error", err)
			return r, nil
		}
		r.Outcome, r.Err = OutcomeFailed, err
		return r, fmt.Errorf("interpolate: %w", err)
	}

	r.Generated = len(rows)
	n, err := o.store.Append(ctx, rows)
	r.Persisted = n
	if err != nil {
		r.Outcome, r.Err = OutcomeFailed, err
		return r, fmt.Errorf("persist imputed rows: %w", err)
	}

	r.Outcome = OutcomeImputed
	logger.Info("work item imputed",
		"prior_rows", len(prior),
		"following_rows", len(following),
		"rows", len(rows),
		"persisted", n,
	)
	return r, nil
}
