package model

import (
	"fmt"
	"time"
)

// MaxLevels is the number of price levels stored per book side.
const MaxLevels = 20

// Epsilon is the smallest addressable time step of the store.
const Epsilon = time.Microsecond

// Provenance tags where a snapshot came from.
type Provenance string

const (
	// ProvenanceFetched marks rows returned by the market-data source.
	ProvenanceFetched Provenance = "fetched"
	// ProvenanceImputed marks rows synthesized to bridge a gap.
	ProvenanceImputed Provenance = "imputed"
)

// Valid reports whether p is a known provenance.
func (p Provenance) Valid() bool {
	return p == ProvenanceFetched || p == ProvenanceImputed
}

// Level is a single price level.
type Level struct {
	Price float64
	Size  float64
}

// OrderBookSnapshot is one point-in-time view of an order book.
//
// (ReceivedTime, SequenceNumber) identifies a snapshot. SequenceNumber is nil
// for imputed rows.
type OrderBookSnapshot struct {
	ReceivedTime   time.Time  // Local capture time
	SequenceNumber *int64     // Exchange sequence id, optional
	OriginTime     time.Time  // Exchange-reported event time
	Bids           []Level    // Best first, at most MaxLevels
	Asks           []Level    // Best first, at most MaxLevels
	Provenance     Provenance // fetched or imputed
}

// Key returns the identity of the snapshot as a comparable value.
func (s OrderBookSnapshot) Key() SnapshotKey {
	k := SnapshotKey{ReceivedAt: Canonical(s.ReceivedTime).UnixMicro()}
	if s.SequenceNumber != nil {
		k.Seq = *s.SequenceNumber
		k.HasSeq = true
	}
	return k
}

// SnapshotKey is the primary key of a persisted snapshot.
type SnapshotKey struct {
	ReceivedAt int64 // µs since epoch
	Seq        int64
	HasSeq     bool
}

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Empty reports whether the range contains no instant.
func (r TimeRange) Empty() bool {
	return !r.End.After(r.Start)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339Nano), r.End.Format(time.RFC3339Nano))
}

// Canonical converts t to the form it takes in the store: UTC, truncated to
// Epsilon.
func Canonical(t time.Time) time.Time {
	return t.UTC().Truncate(Epsilon)
}

// Seq returns a pointer to n, for building snapshots with a sequence number.
func Seq(n int64) *int64 {
	return &n
}
