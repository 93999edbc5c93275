// Package store implements the snapshot store on PostgreSQL/TimescaleDB.
//
// Each exchange/symbol pair has its own table keyed by
// (received_time, sequence_number). Writes are insert-if-absent: a row whose
// key already exists is skipped without error and never overwritten. Rows are
// never updated or deleted.
//
// Each pgx.Batch commits or rolls back as a unit. The primary key is the
// only constraint and ON CONFLICT absorbs it, so a valid row never fails the
// batch it shares with other rows.
//
// Canonical forms on disk:
//   - received_time, origin_time: BIGINT microseconds since epoch (UTC)
//   - sequence_number: BIGINT, NoSequence when the snapshot has none
//   - bid_i_price ... ask_i_size: DOUBLE PRECISION, NULL for absent levels
//   - provenance: 'fetched' or 'imputed'
package store
