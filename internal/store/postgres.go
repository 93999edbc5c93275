package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rickgao/bookfill/internal/model"
)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// StorageError reports a failed store operation. It is fatal to a run.
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError reports whether err wraps a *StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// Config holds store settings.
type Config struct {
	BatchSize    int           // Rows per pgx.Batch round trip
	QueryTimeout time.Duration // Per statement, 0 disables
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:    1000,
		QueryTimeout: 60 * time.Second,
	}
}

// Postgres is a snapshot store for a single exchange/symbol pair.
type Postgres struct {
	db     DB
	table  string
	cfg    Config
	logger *slog.Logger

	insert string
}

// NewPostgres creates a store backed by table.
func NewPostgres(db DB, table string, cfg Config, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	return &Postgres{
		db:     db,
		table:  table,
		cfg:    cfg,
		logger: logger.With("table", table),
		insert: insertSQL(table),
	}
}

// Table returns the table name.
func (p *Postgres) Table() string {
	return p.table
}

// EnsureSchema creates the snapshot table and its primary key if absent.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	if _, err := p.db.Exec(ctx, createTableSQL(p.table)); err != nil {
		return p.fail("ensure schema", err)
	}
	return nil
}

// Append inserts snapshots, skipping rows whose key already exists, and
// returns how many rows were written. Rows that cannot be stored (missing
// timestamps) are dropped with a warning before the batch is sent so they
// never abort the rest of it. On error the count covers earlier batches only.
func (p *Postgres) Append(ctx context.Context, snapshots []model.OrderBookSnapshot) (int, error) {
	rows := make([][]any, 0, len(snapshots))
	for _, s := range snapshots {
		if err := Check(s); err != nil {
			p.logger.Warn("dropping invalid snapshot", "error", err)
			continue
		}
		rows = append(rows, SnapshotArgs(s))
	}

	written := 0
	for start := 0; start < len(rows); start += p.cfg.BatchSize {
		end := min(start+p.cfg.BatchSize, len(rows))
		n, err := p.sendBatch(ctx, rows[start:end])
		if err != nil {
			return written, p.fail("append", err)
		}
		written += n
	}

	if conflicts := len(rows) - written; conflicts > 0 {
		p.logger.Debug("skipped existing snapshots", "conflicts", conflicts, "written", written)
	}
	return written, nil
}

// sendBatch inserts rows using pgx.Batch with ON CONFLICT DO NOTHING. The
// batch runs in one implicit transaction, so on error nothing from it was
// written.
func (p *Postgres) sendBatch(ctx context.Context, rows [][]any) (int, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(p.insert, args...)
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	written := 0
	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		written += int(ct.RowsAffected())
	}
	return written, nil
}

// LatestTimestamp returns the largest received_time in the table. ok is
// false when the table is empty.
func (p *Postgres) LatestTimestamp(ctx context.Context) (ts time.Time, ok bool, err error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf("SELECT received_time FROM %s ORDER BY received_time DESC LIMIT 1", quote(p.table))
	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return time.Time{}, false, p.fail("latest timestamp", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return time.Time{}, false, p.fail("latest timestamp", err)
		}
		return time.Time{}, false, nil
	}

	var micros int64
	if err := rows.Scan(&micros); err != nil {
		return time.Time{}, false, p.fail("latest timestamp", err)
	}
	return time.UnixMicro(micros).UTC(), true, nil
}

// TimestampsInRange returns every received_time in [start, end], ascending.
func (p *Postgres) TimestampsInRange(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT received_time FROM %s WHERE received_time BETWEEN $1 AND $2 ORDER BY received_time",
		quote(p.table),
	)
	rows, err := p.db.Query(ctx, query, toMicros(start), toMicros(end))
	if err != nil {
		return nil, p.fail("timestamps in range", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var micros int64
		if err := rows.Scan(&micros); err != nil {
			return nil, p.fail("timestamps in range", err)
		}
		out = append(out, time.UnixMicro(micros).UTC())
	}
	if err := rows.Err(); err != nil {
		return nil, p.fail("timestamps in range", err)
	}
	return out, nil
}

// RowsInRange returns the snapshots with received_time in [start, end],
// ascending by (received_time, sequence_number).
func (p *Postgres) RowsInRange(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE received_time BETWEEN $1 AND $2 ORDER BY received_time, sequence_number",
		strings.Join(allColumns, ", "), quote(p.table),
	)
	rows, err := p.db.Query(ctx, query, toMicros(start), toMicros(end))
	if err != nil {
		return nil, p.fail("rows in range", err)
	}
	defer rows.Close()

	var out []model.OrderBookSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, p.fail("rows in range", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, p.fail("rows in range", err)
	}
	return out, nil
}

func (p *Postgres) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.QueryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.cfg.QueryTimeout)
}

func (p *Postgres) fail(op string, err error) error {
	return &StorageError{Op: op, Table: p.table, Err: err}
}

// Check reports why s cannot be stored, or nil.
func Check(s model.OrderBookSnapshot) error {
	if s.ReceivedTime.IsZero() {
		return errors.New("received time is required")
	}
	if s.OriginTime.IsZero() {
		return fmt.Errorf("origin time is required (received %s)", s.ReceivedTime.Format(time.RFC3339Nano))
	}
	return nil
}

// SnapshotArgs flattens s into insert arguments in allColumns order, applying
// the canonical timestamp and null forms.
func SnapshotArgs(s model.OrderBookSnapshot) []any {
	args := make([]any, 0, len(allColumns))

	seq := NoSequence
	if s.SequenceNumber != nil {
		seq = *s.SequenceNumber
	}
	prov := s.Provenance
	if !prov.Valid() {
		prov = model.ProvenanceFetched
	}
	args = append(args, toMicros(s.ReceivedTime), seq, toMicros(s.OriginTime), string(prov))

	for _, side := range [][]model.Level{s.Bids, s.Asks} {
		for i := 0; i < model.MaxLevels; i++ {
			if i < len(side) {
				args = append(args, side[i].Price, side[i].Size)
			} else {
				args = append(args, nil, nil)
			}
		}
	}
	return args
}

// scanSnapshot reads one row in allColumns order. A side's levels end at the
// first level with a NULL price or size.
func scanSnapshot(rows pgx.Rows) (model.OrderBookSnapshot, error) {
	var (
		recv, seq, origin int64
		prov              string
		levels            [4 * model.MaxLevels]pgtype.Float8
	)
	dest := []any{&recv, &seq, &origin, &prov}
	for i := range levels {
		dest = append(dest, &levels[i])
	}
	if err := rows.Scan(dest...); err != nil {
		return model.OrderBookSnapshot{}, err
	}

	s := model.OrderBookSnapshot{
		ReceivedTime: time.UnixMicro(recv).UTC(),
		OriginTime:   time.UnixMicro(origin).UTC(),
		Provenance:   model.Provenance(prov),
		Bids:         readSide(levels[:2*model.MaxLevels]),
		Asks:         readSide(levels[2*model.MaxLevels:]),
	}
	if seq != NoSequence {
		s.SequenceNumber = model.Seq(seq)
	}
	return s, nil
}

func readSide(vals []pgtype.Float8) []model.Level {
	var out []model.Level
	for i := 0; i+1 < len(vals); i += 2 {
		price, size := vals[i], vals[i+1]
		if !price.Valid || !size.Valid {
			break
		}
		out = append(out, model.Level{Price: price.Float64, Size: size.Float64})
	}
	return out
}

func toMicros(t time.Time) int64 {
	return model.Canonical(t).UnixMicro()
}
