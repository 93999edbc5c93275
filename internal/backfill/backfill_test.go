package backfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rickgao/bookfill/internal/gapscan"
	"github.com/rickgao/bookfill/internal/interpolate"
	"github.com/rickgao/bookfill/internal/metrics"
	"github.com/rickgao/bookfill/internal/model"
	"github.com/rickgao/bookfill/internal/store"
	"github.com/rickgao/bookfill/internal/store/storetest"
)

var t0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

// fetchFunc adapts a function to Fetcher.
type fetchFunc func(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error)

func (f fetchFunc) FetchBook(ctx context.Context, exchange model.Exchange, symbol string, start, end time.Time) ([]model.OrderBookSnapshot, error) {
	return f(ctx, start, end)
}

func failingFetch(calls *int) fetchFunc {
	return func(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error) {
		*calls++
		return nil, errors.New("source unavailable")
	}
}

func emptyFetch(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error) {
	return nil, nil
}

func snap(ts time.Time, seq int64, price float64) model.OrderBookSnapshot {
	return model.OrderBookSnapshot{
		ReceivedTime:   ts,
		SequenceNumber: model.Seq(seq),
		OriginTime:     ts,
		Bids:           []model.Level{{Price: price, Size: 10}},
		Asks:           []model.Level{{Price: price + 1, Size: 10}},
		Provenance:     model.ProvenanceFetched,
	}
}

func newOrchestrator(f Fetcher, s Store, m *metrics.Metrics) *Orchestrator {
	scanner := gapscan.New(s, gapscan.Config{ChunkSize: time.Hour, Tolerance: time.Minute}, nil)
	interp := interpolate.New(interpolate.Config{Cadence: 100 * time.Millisecond, NoiseScale: 0.01, Seed: 1, MaxPoints: 100000})
	return New(Config{Exchange: model.Binance, Symbol: "ETH-USDT", BoundaryLookback: 24 * time.Hour}, f, s, scanner, interp, m, nil)
}

func maxSpacing(ts []time.Time) time.Duration {
	var widest time.Duration
	for i := 1; i < len(ts); i++ {
		if d := ts[i].Sub(ts[i-1]); d > widest {
			widest = d
		}
	}
	return widest
}

func TestRunFailingFetchInterpolates(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(30*time.Second), 2, 100),
		snap(t0.Add(5*time.Minute), 3, 110),
	)

	var calls int
	var reports []Report
	o := newOrchestrator(failingFetch(&calls), mem, nil)
	o.OnReport = func(r Report) { reports = append(reports, r) }

	sum, err := o.Run(ctx, t0, t0.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	r := reports[0]
	wantRange := model.TimeRange{Start: t0.Add(30*time.Second + model.Epsilon), End: t0.Add(5 * time.Minute)}
	if r.Item.Range != wantRange {
		t.Errorf("Range = %s, want %s", r.Item.Range, wantRange)
	}
	if r.Outcome != OutcomeImputed {
		t.Errorf("Outcome = %s, want %s", r.Outcome, OutcomeImputed)
	}
	if r.FetchErr == nil {
		t.Error("FetchErr = nil, want fetch failure")
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}

	// 30.1s .. 4m59.9s at 100ms
	wantRows := 2699
	if r.Persisted != wantRows {
		t.Errorf("Persisted = %d, want %d", r.Persisted, wantRows)
	}
	if mem.Len() != 3+wantRows {
		t.Errorf("store rows = %d, want %d", mem.Len(), 3+wantRows)
	}

	ts, _ := mem.TimestampsInRange(ctx, t0, t0.Add(5*time.Minute))
	if got := maxSpacing(ts); got > time.Minute {
		t.Errorf("max spacing = %v, want <= %v", got, time.Minute)
	}

	if sum.Imputed != 1 || len(sum.Unresolved) != 0 {
		t.Errorf("summary imputed=%d unresolved=%d, want 1/0", sum.Imputed, len(sum.Unresolved))
	}
	if sum.RowsByKind[model.ProvenanceImputed] != wantRows {
		t.Errorf("imputed rows = %d, want %d", sum.RowsByKind[model.ProvenanceImputed], wantRows)
	}
	if sum.RunID == "" {
		t.Error("RunID is empty")
	}

	for _, s := range mem.All() {
		if s.Provenance == model.ProvenanceImputed && s.SequenceNumber != nil {
			t.Fatalf("imputed row at %v has sequence number", s.ReceivedTime)
		}
	}
}

func TestRunGapAcrossChunkBoundary(t *testing.T) {
	ctx := context.Background()
	var rows []model.OrderBookSnapshot
	seq := int64(0)
	for ts := t0; ts.Before(t0.Add(50 * time.Minute)); ts = ts.Add(30 * time.Second) {
		seq++
		rows = append(rows, snap(ts, seq, 100))
	}
	for ts := t0.Add(70 * time.Minute); !ts.After(t0.Add(2 * time.Hour)); ts = ts.Add(30 * time.Second) {
		seq++
		rows = append(rows, snap(ts, seq, 100))
	}
	mem := storetest.NewMemory(rows...)

	var calls int
	o := newOrchestrator(failingFetch(&calls), mem, nil)
	sum, err := o.Run(ctx, t0, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Items != 1 || sum.Imputed != 1 {
		t.Errorf("items=%d imputed=%d, want 1/1", sum.Items, sum.Imputed)
	}
	if len(sum.Unresolved) != 0 {
		t.Errorf("unresolved = %d, want 0", len(sum.Unresolved))
	}

	ts, _ := mem.TimestampsInRange(ctx, t0, t0.Add(2*time.Hour))
	if got := maxSpacing(ts); got > time.Minute {
		t.Errorf("max spacing = %v, want <= %v", got, time.Minute)
	}

	again, err := o.Run(ctx, t0, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if again.Items != 0 {
		t.Errorf("second run items = %d, want 0", again.Items)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(5*time.Minute), 2, 110),
	)

	var calls int
	o := newOrchestrator(failingFetch(&calls), mem, nil)

	if _, err := o.Run(ctx, t0, t0.Add(5*time.Minute)); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	after := mem.Len()

	sum, err := o.Run(ctx, t0, t0.Add(5*time.Minute))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if sum.Items != 0 {
		t.Errorf("second run items = %d, want 0", sum.Items)
	}
	if mem.Len() != after {
		t.Errorf("store rows = %d, want %d", mem.Len(), after)
	}
}

func TestRunFetchedRowsPersisted(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(10*time.Minute), 2, 100),
	)

	fetch := fetchFunc(func(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error) {
		var rows []model.OrderBookSnapshot
		for ts := start; ts.Before(end); ts = ts.Add(30 * time.Second) {
			rows = append(rows, snap(ts, ts.Unix(), 100))
		}
		return rows, nil
	})

	m := metrics.New()
	o := newOrchestrator(fetch, mem, m)
	sum, err := o.Run(ctx, t0, t0.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Fetched != 1 || sum.Imputed != 0 {
		t.Errorf("fetched=%d imputed=%d, want 1/0", sum.Fetched, sum.Imputed)
	}
	if sum.RowsByKind[model.ProvenanceFetched] != 20 {
		t.Errorf("fetched rows = %d, want 20", sum.RowsByKind[model.ProvenanceFetched])
	}
	for _, s := range mem.All() {
		if s.Provenance != model.ProvenanceFetched {
			t.Fatalf("row at %v provenance = %s, want %s", s.ReceivedTime, s.Provenance, model.ProvenanceFetched)
		}
	}
}

func TestRunEmptyFetchInterpolates(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(2*time.Minute), 2, 100),
	)

	o := newOrchestrator(fetchFunc(emptyFetch), mem, nil)
	sum, err := o.Run(ctx, t0, t0.Add(2*time.Minute))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Imputed != 1 {
		t.Errorf("imputed = %d, want 1", sum.Imputed)
	}
	if sum.Unresolved != nil {
		t.Errorf("unresolved = %v, want none", sum.Unresolved)
	}
}

func TestRunSkipsWithoutBoundary(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory()

	var calls int
	o := newOrchestrator(failingFetch(&calls), mem, nil)
	sum, err := o.Run(ctx, t0, t0.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if sum.Items != 3 || sum.Skipped != 3 {
		t.Errorf("items=%d skipped=%d, want 3/3", sum.Items, sum.Skipped)
	}
	if len(sum.Unresolved) != 3 {
		t.Fatalf("unresolved = %d, want 3", len(sum.Unresolved))
	}
	for _, r := range sum.Unresolved {
		if !errors.Is(r.Err, interpolate.ErrInsufficientBoundary) {
			t.Errorf("Err = %v, want %v", r.Err, interpolate.ErrInsufficientBoundary)
		}
		if r.Item.Kind != gapscan.KindFullChunk {
			t.Errorf("Kind = %s, want %s", r.Item.Kind, gapscan.KindFullChunk)
		}
	}
	if mem.Len() != 0 || mem.Appends() != 0 {
		t.Errorf("store rows=%d appends=%d, want 0/0", mem.Len(), mem.Appends())
	}
}

func TestRunSkipsWideGap(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(5*time.Hour), 2, 100),
	)

	var calls int
	o := newOrchestrator(failingFetch(&calls), mem, nil)
	sum, err := o.Run(ctx, t0, t0.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Skipped == 0 {
		t.Fatal("skipped = 0, want at least one")
	}
	for _, r := range sum.Unresolved {
		if !errors.Is(r.Err, interpolate.ErrGapTooWide) {
			t.Errorf("Err = %v, want %v", r.Err, interpolate.ErrGapTooWide)
		}
	}
	if mem.Len() != 2 {
		t.Errorf("store rows = %d, want 2", mem.Len())
	}
}

func TestRunStorageErrorAborts(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(5*time.Minute), 2, 100),
		snap(t0.Add(2*time.Hour), 3, 100),
		snap(t0.Add(2*time.Hour+5*time.Minute), 4, 100),
	)
	mem.AppendErr = errors.New("disk full")

	var calls int
	o := newOrchestrator(failingFetch(&calls), mem, nil)
	sum, err := o.Run(ctx, t0, t0.Add(3*time.Hour))
	if err == nil {
		t.Fatal("Run() error = nil, want storage error")
	}
	if !store.IsStorageError(err) {
		t.Errorf("IsStorageError(%v) = false, want true", err)
	}
	if sum.Failed != 1 {
		t.Errorf("failed = %d, want 1", sum.Failed)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1 (run stops at first failure)", calls)
	}
}

func TestRunContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mem := storetest.NewMemory()

	fetch := fetchFunc(func(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error) {
		cancel()
		return nil, ctx.Err()
	})

	o := newOrchestrator(fetch, mem, nil)
	_, err := o.Run(ctx, t0, t0.Add(3*time.Hour))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want %v", err, context.Canceled)
	}
	if mem.Appends() != 0 {
		t.Errorf("appends = %d, want 0", mem.Appends())
	}
}

func TestProcessSingleItem(t *testing.T) {
	ctx := context.Background()
	mem := storetest.NewMemory(
		snap(t0, 1, 100),
		snap(t0.Add(time.Second), 2, 110),
	)

	var calls int
	o := newOrchestrator(failingFetch(&calls), mem, nil)
	item := gapscan.WorkItem{
		Kind:  gapscan.KindGap,
		Range: model.TimeRange{Start: t0.Add(model.Epsilon), End: t0.Add(time.Second)},
	}

	r, err := o.Process(ctx, item)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if r.Outcome != OutcomeImputed || r.Persisted != 9 {
		t.Errorf("Report = %s/%d, want %s/9", r.Outcome, r.Persisted, OutcomeImputed)
	}
	if !r.Resolved() {
		t.Error("Resolved() = false, want true")
	}
}
