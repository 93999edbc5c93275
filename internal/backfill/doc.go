// Package backfill repairs holes in a stored snapshot series.
//
// A run walks the historical range chunk by chunk in ascending order. For
// every work item the scanner reports, the source is asked for the missing
// window first. Non-empty results are persisted as fetched rows. When the
// fetch fails or comes back empty, the gap is bridged by interpolation
// between the stored rows on either side of it. When either side has no rows
// within the lookback, the item is skipped and the hole stays for a later run
// to retry.
//
// Fetch failures never abort a run. Storage errors always do.
package backfill
