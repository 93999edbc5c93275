package gapscan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/bookfill/internal/model"
)

// Kind classifies a work item.
type Kind string

const (
	// KindFullChunk covers a chunk with no persisted rows.
	KindFullChunk Kind = "full_chunk"
	// KindGap covers a hole between two persisted rows, or between a chunk
	// bound and the nearest row when edge gaps are enabled.
	KindGap Kind = "gap"
)

// WorkItem is a range that needs to be backfilled.
type WorkItem struct {
	Kind  Kind
	Range model.TimeRange // Half-open range to fetch
	Chunk model.TimeRange // Chunk the item was found in
}

func (w WorkItem) String() string {
	return fmt.Sprintf("%s %s", w.Kind, w.Range)
}

// TimestampSource lists persisted received times.
type TimestampSource interface {
	// TimestampsInRange returns received times in [start, end], ascending.
	TimestampsInRange(ctx context.Context, start, end time.Time) ([]time.Time, error)
}

// Config holds scanner settings.
type Config struct {
	ChunkSize time.Duration // Span of each chunk
	Tolerance time.Duration // Largest spacing that is not a gap
	EdgeGaps  bool          // Report holes at chunk edges
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 30 * 24 * time.Hour,
		Tolerance: time.Minute,
	}
}

// Scanner derives work items from the store.
type Scanner struct {
	src    TimestampSource
	cfg    Config
	logger *slog.Logger
}

// New creates a scanner over src.
func New(src TimestampSource, cfg Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	return &Scanner{src: src, cfg: cfg, logger: logger}
}

// Config returns the effective settings.
func (s *Scanner) Config() Config {
	return s.cfg
}

// Chunks partitions [start, end] for this scanner.
func (s *Scanner) Chunks(start, end time.Time) []model.TimeRange {
	return Chunks(start, end, s.cfg.ChunkSize)
}

// Scan returns the work items for every chunk of [start, end] in ascending
// order. Holes that cross a chunk boundary are reported in the later chunk.
// A storage error stops the scan.
func (s *Scanner) Scan(ctx context.Context, start, end time.Time) ([]WorkItem, error) {
	var (
		items []WorkItem
		prev  time.Time
	)
	for _, chunk := range s.Chunks(start, end) {
		found, last, err := s.ScanChunkAfter(ctx, chunk, prev)
		if err != nil {
			return items, err
		}
		items = append(items, found...)
		prev = last
	}
	return items, nil
}

// ScanChunk returns the work items for a single chunk.
func (s *Scanner) ScanChunk(ctx context.Context, chunk model.TimeRange) ([]WorkItem, error) {
	items, _, err := s.ScanChunkAfter(ctx, chunk, time.Time{})
	return items, err
}

// ScanChunkAfter returns the work items for a chunk given prev, the last
// persisted time of the preceding chunk (zero when unknown or empty), and
// the last persisted time within this chunk.
func (s *Scanner) ScanChunkAfter(ctx context.Context, chunk model.TimeRange, prev time.Time) ([]WorkItem, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, time.Time{}, err
	}

	timestamps, err := s.src.TimestampsInRange(ctx, chunk.Start, chunk.End)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("list timestamps %s: %w", chunk, err)
	}

	items := FindGapsAfter(prev, timestamps, chunk, s.cfg.Tolerance, s.cfg.EdgeGaps)

	s.logger.Debug("scanned chunk",
		"start", chunk.Start,
		"end", chunk.End,
		"rows", len(timestamps),
		"items", len(items),
	)
	return items, Last(timestamps), nil
}

// Last returns the final element of ascending timestamps, or the zero time.
func Last(timestamps []time.Time) time.Time {
	if len(timestamps) == 0 {
		return time.Time{}
	}
	return timestamps[len(timestamps)-1]
}

// Chunks partitions [start, end] into consecutive ranges of size. The last
// range is truncated to end. Chunk k+1 starts exactly where chunk k ends.
func Chunks(start, end time.Time, size time.Duration) []model.TimeRange {
	if size <= 0 || !end.After(start) {
		return nil
	}

	var chunks []model.TimeRange
	for cur := start; cur.Before(end); {
		next := cur.Add(size)
		if next.After(end) {
			next = end
		}
		chunks = append(chunks, model.TimeRange{Start: cur, End: next})
		cur = next
	}
	return chunks
}

// FindGaps derives the work items for one chunk from its ascending
// timestamps.
func FindGaps(timestamps []time.Time, chunk model.TimeRange, tolerance time.Duration, edges bool) []WorkItem {
	return FindGapsAfter(time.Time{}, timestamps, chunk, tolerance, edges)
}

// FindGapsAfter is FindGaps with prev, the last persisted time before the
// chunk. When prev is set the hole from prev to the first row is a gap and
// replaces the leading edge check.
func FindGapsAfter(prev time.Time, timestamps []time.Time, chunk model.TimeRange, tolerance time.Duration, edges bool) []WorkItem {
	if len(timestamps) == 0 {
		return []WorkItem{{Kind: KindFullChunk, Range: chunk, Chunk: chunk}}
	}

	var items []WorkItem
	gap := func(from, to time.Time) {
		items = append(items, WorkItem{
			Kind:  KindGap,
			Range: model.TimeRange{Start: from, End: to},
			Chunk: chunk,
		})
	}

	first, last := timestamps[0], timestamps[len(timestamps)-1]

	switch {
	case !prev.IsZero():
		if prev.Before(first) && first.Sub(prev) > tolerance {
			gap(prev.Add(model.Epsilon), first)
		}
	case edges && first.Sub(chunk.Start) > tolerance:
		gap(chunk.Start, first)
	}

	for i := 1; i < len(timestamps); i++ {
		prior, next := timestamps[i-1], timestamps[i]
		if next.Sub(prior) > tolerance {
			gap(prior.Add(model.Epsilon), next)
		}
	}

	if edges && chunk.End.Sub(last) > tolerance {
		gap(last.Add(model.Epsilon), chunk.End)
	}

	return items
}
