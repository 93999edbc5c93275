package api

// BookResponse from GET /book
type BookResponse struct {
	Rows   []BookRow `json:"rows"`
	Cursor string    `json:"cursor"`
}

// BookRow is one order-book snapshot as served by the API.
type BookRow struct {
	ReceivedTime   string `json:"received_time"` // RFC 3339
	SequenceNumber *int64 `json:"sequence_number"`
	OriginTime     string `json:"origin_time"` // RFC 3339

	// [[price, size], ...], best first; either value may be null
	Bids [][]*float64 `json:"bids"`
	Asks [][]*float64 `json:"asks"`
}
