package store

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/bookfill/internal/model"
)

// NoSequence is stored in place of a missing sequence number so the primary
// key never contains NULL.
const NoSequence int64 = -1

var nonIdent = regexp.MustCompile(`[^a-z0-9]+`)

// TableName returns the table holding snapshots for one exchange/symbol pair,
// e.g. BINANCE + ETH-USDT -> orderbook_binance_eth_usdt.
func TableName(exchange, symbol string) string {
	name := strings.ToLower(exchange + "_" + symbol)
	name = strings.Trim(nonIdent.ReplaceAllString(name, "_"), "_")
	return "orderbook_" + name
}

// levelColumns lists bid_0_price, bid_0_size, ..., ask_19_size in storage order.
var levelColumns = func() []string {
	cols := make([]string, 0, 4*model.MaxLevels)
	for _, side := range []string{"bid", "ask"} {
		for i := 0; i < model.MaxLevels; i++ {
			cols = append(cols,
				fmt.Sprintf("%s_%d_price", side, i),
				fmt.Sprintf("%s_%d_size", side, i),
			)
		}
	}
	return cols
}()

var keyColumns = []string{"received_time", "sequence_number", "origin_time", "provenance"}

// allColumns is the column order used by inserts and row queries.
var allColumns = append(append([]string{}, keyColumns...), levelColumns...)

func createTableSQL(table string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", quote(table))
	b.WriteString("\treceived_time BIGINT NOT NULL,\n")
	fmt.Fprintf(&b, "\tsequence_number BIGINT NOT NULL DEFAULT %d,\n", NoSequence)
	b.WriteString("\torigin_time BIGINT NOT NULL,\n")
	b.WriteString("\tprovenance TEXT NOT NULL DEFAULT 'fetched',\n")
	for _, col := range levelColumns {
		fmt.Fprintf(&b, "\t%s DOUBLE PRECISION,\n", col)
	}
	b.WriteString("\tPRIMARY KEY (received_time, sequence_number)\n)")
	return b.String()
}

func insertSQL(table string) string {
	placeholders := make([]string, len(allColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (received_time, sequence_number) DO NOTHING",
		quote(table), strings.Join(allColumns, ", "), strings.Join(placeholders, ", "),
	)
}

func quote(table string) string {
	return pgx.Identifier{table}.Sanitize()
}
