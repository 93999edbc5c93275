package api

import (
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/bookfill/internal/model"
)

// ParseTimestamp parses an RFC 3339 timestamp, with or without fractional
// seconds, into canonical store form.
func ParseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return model.Canonical(t), nil
}

// ToModel converts a BookRow to model.OrderBookSnapshot.
func (r *BookRow) ToModel() (model.OrderBookSnapshot, error) {
	received, err := ParseTimestamp(r.ReceivedTime)
	if err != nil {
		return model.OrderBookSnapshot{}, fmt.Errorf("received_time: %w", err)
	}

	// Some venues omit the exchange timestamp; fall back to capture time.
	origin := received
	if r.OriginTime != "" {
		origin, err = ParseTimestamp(r.OriginTime)
		if err != nil {
			return model.OrderBookSnapshot{}, fmt.Errorf("origin_time: %w", err)
		}
	}

	s := model.OrderBookSnapshot{
		ReceivedTime: received,
		OriginTime:   origin,
		Bids:         ToLevels(r.Bids),
		Asks:         ToLevels(r.Asks),
		Provenance:   model.ProvenanceFetched,
	}
	if r.SequenceNumber != nil {
		s.SequenceNumber = model.Seq(*r.SequenceNumber)
	}
	return s, nil
}

// ToLevels converts [[price, size], ...] pairs. Conversion stops at the first
// incomplete pair and at model.MaxLevels.
func ToLevels(pairs [][]*float64) []model.Level {
	var levels []model.Level
	for _, p := range pairs {
		if len(levels) == model.MaxLevels {
			break
		}
		if len(p) < 2 || p[0] == nil || p[1] == nil {
			break
		}
		levels = append(levels, model.Level{Price: *p[0], Size: *p[1]})
	}
	return levels
}
