package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/rickgao/bookfill/internal/model"
)

// maxPages bounds cursor pagination for a single window.
const maxPages = 10000

// FetchError reports that book rows could not be fetched for a window. It is
// always transient from the caller's point of view.
type FetchError struct {
	Exchange model.Exchange
	Symbol   string
	Window   model.TimeRange
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s %s %s: %v", e.Exchange, e.Symbol, e.Window, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err wraps a *FetchError.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// FetchBook returns the snapshots for exchange/symbol with received time in
// [start, end), ascending. An empty result is not an error.
func (c *Client) FetchBook(ctx context.Context, exchange model.Exchange, symbol string, start, end time.Time) ([]model.OrderBookSnapshot, error) {
	window := model.TimeRange{Start: start.UTC(), End: end.UTC()}
	fail := func(err error) error {
		return &FetchError{Exchange: exchange, Symbol: symbol, Window: window, Err: err}
	}

	if window.Empty() {
		return nil, nil
	}

	res, err := c.breaker.Execute(func() (any, error) {
		return c.fetchPages(ctx, exchange, symbol, window)
	})
	if err != nil {
		return nil, fail(err)
	}
	rows := res.([]BookRow)

	snapshots := make([]model.OrderBookSnapshot, 0, len(rows))
	dropped := 0
	for i := range rows {
		s, err := rows[i].ToModel()
		if err != nil {
			return nil, fail(fmt.Errorf("row %d: %w", i, err))
		}
		if s.ReceivedTime.Before(window.Start) || !s.ReceivedTime.Before(window.End) {
			dropped++
			continue
		}
		snapshots = append(snapshots, s)
	}

	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].ReceivedTime.Before(snapshots[j].ReceivedTime)
	})

	c.logger.Debug("fetched book",
		"exchange", exchange,
		"symbol", symbol,
		"start", window.Start,
		"end", window.End,
		"rows", len(snapshots),
		"out_of_window", dropped,
	)
	return snapshots, nil
}

// fetchPages follows the response cursor until the window is exhausted.
func (c *Client) fetchPages(ctx context.Context, exchange model.Exchange, symbol string, window model.TimeRange) ([]BookRow, error) {
	var all []BookRow
	cursor := ""

	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("pagination did not terminate after %d pages", maxPages)
		}

		query := url.Values{}
		query.Set("exchange", string(exchange))
		query.Set("symbol", symbol)
		query.Set("start", window.Start.Format(time.RFC3339Nano))
		query.Set("end", window.End.Format(time.RFC3339Nano))
		if cursor != "" {
			query.Set("cursor", cursor)
		}

		var resp BookResponse
		if err := c.get(ctx, "/book", query, &resp); err != nil {
			return nil, err
		}

		all = append(all, resp.Rows...)

		if resp.Cursor == "" || len(resp.Rows) == 0 {
			return all, nil
		}
		cursor = resp.Cursor
	}
}
