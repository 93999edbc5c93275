// Package interpolate synthesizes order-book snapshots across a gap.
//
// Given the last snapshot before a gap (L) and the first one after it (F),
// snapshots are emitted at L + k·cadence for every k ≥ 1 strictly before F.
// Sizes move linearly from L to F. Prices follow the same line plus a
// Gaussian random walk pinned to zero at both boundaries (a Brownian bridge),
// so the path wanders but lands on F's price.
package interpolate

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rickgao/bookfill/internal/model"
)

var (
	// ErrInsufficientBoundary means there is no snapshot on one side of the gap.
	ErrInsufficientBoundary = errors.New("insufficient boundary data")

	// ErrGapTooWide means filling the gap would exceed Config.MaxPoints rows.
	ErrGapTooWide = errors.New("gap too wide to interpolate")
)

// Config holds interpolation settings.
type Config struct {
	Cadence    time.Duration // Spacing of synthetic snapshots
	NoiseScale float64       // Std dev of each price step, in price units
	Seed       uint64        // 0 seeds from the clock
	MaxPoints  int           // 0 disables the cap
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cadence:    100 * time.Millisecond,
		NoiseScale: 0.01,
		MaxPoints:  864000,
	}
}

// Interpolator builds synthetic snapshots. It is safe for concurrent use.
type Interpolator struct {
	cfg Config

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates an interpolator.
func New(cfg Config) *Interpolator {
	if cfg.Cadence <= 0 {
		cfg.Cadence = DefaultConfig().Cadence
	}
	if cfg.NoiseScale < 0 {
		cfg.NoiseScale = 0
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Interpolator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// Config returns the effective settings.
func (ip *Interpolator) Config() Config {
	return ip.cfg
}

// Points returns how many synthetic snapshots fit strictly between last and
// first.
func (ip *Interpolator) Points(last, first time.Time) int {
	d := first.Sub(last)
	if d <= 0 {
		return 0
	}
	return int((d - 1) / ip.cfg.Cadence)
}

// Interpolate fills the gap between the latest snapshot in prior and the
// earliest snapshot in following. The result is strictly ascending and may be
// empty when the boundaries are closer than one cadence step.
func (ip *Interpolator) Interpolate(prior, following []model.OrderBookSnapshot) ([]model.OrderBookSnapshot, error) {
	if len(prior) == 0 {
		return nil, fmt.Errorf("%w: no snapshot before gap", ErrInsufficientBoundary)
	}
	if len(following) == 0 {
		return nil, fmt.Errorf("%w: no snapshot after gap", ErrInsufficientBoundary)
	}

	last := latest(prior)
	first := earliest(following)
	start := model.Canonical(last.ReceivedTime)
	end := model.Canonical(first.ReceivedTime)

	if !end.After(start) {
		return nil, fmt.Errorf("%w: following snapshot %s not after prior %s",
			ErrInsufficientBoundary, end.Format(time.RFC3339Nano), start.Format(time.RFC3339Nano))
	}

	n := ip.Points(start, end)
	if ip.cfg.MaxPoints > 0 && n > ip.cfg.MaxPoints {
		return nil, fmt.Errorf("%w: %d points between %s and %s (max %d)",
			ErrGapTooWide, n, start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano), ip.cfg.MaxPoints)
	}
	if n == 0 {
		return nil, nil
	}

	bids := ip.side(last.Bids, first.Bids, n)
	asks := ip.side(last.Asks, first.Asks, n)

	out := make([]model.OrderBookSnapshot, n)
	for k := range out {
		ts := start.Add(time.Duration(k+1) * ip.cfg.Cadence)
		out[k] = model.OrderBookSnapshot{
			ReceivedTime: ts,
			OriginTime:   ts,
			Bids:         bids[k],
			Asks:         asks[k],
			Provenance:   model.ProvenanceImputed,
		}
	}
	return out, nil
}

// side interpolates one book side over n points. Depth is the shallower of
// the two boundaries.
func (ip *Interpolator) side(from, to []model.Level, n int) [][]model.Level {
	depth := min(len(from), len(to), model.MaxLevels)

	out := make([][]model.Level, n)
	if depth == 0 {
		return out
	}
	for k := range out {
		out[k] = make([]model.Level, depth)
	}

	for lvl := 0; lvl < depth; lvl++ {
		a, b := from[lvl], to[lvl]
		noise := ip.bridge(n)
		for k := 0; k < n; k++ {
			frac := float64(k+1) / float64(n+1)
			out[k][lvl] = model.Level{
				Price: a.Price + (b.Price-a.Price)*frac + noise[k],
				Size:  a.Size + (b.Size-a.Size)*frac,
			}
		}
	}
	return out
}

// bridge returns n interior points of a Gaussian random walk over n+1 steps,
// shifted so that it starts and ends at zero.
func (ip *Interpolator) bridge(n int) []float64 {
	out := make([]float64, n)
	if ip.cfg.NoiseScale == 0 {
		return out
	}

	ip.mu.Lock()
	walk := make([]float64, n+1)
	sum := 0.0
	for i := range walk {
		sum += ip.rng.NormFloat64() * ip.cfg.NoiseScale
		walk[i] = sum
	}
	ip.mu.Unlock()

	total := walk[n]
	for k := 0; k < n; k++ {
		out[k] = walk[k] - total*float64(k+1)/float64(n+1)
	}
	return out
}

func latest(rows []model.OrderBookSnapshot) model.OrderBookSnapshot {
	best := rows[0]
	for _, r := range rows[1:] {
		if !r.ReceivedTime.Before(best.ReceivedTime) {
			best = r
		}
	}
	return best
}

func earliest(rows []model.OrderBookSnapshot) model.OrderBookSnapshot {
	best := rows[0]
	for _, r := range rows[1:] {
		if r.ReceivedTime.Before(best.ReceivedTime) {
			best = r
		}
	}
	return best
}
