// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - bookfill_workitems_total{kind,outcome}: backfill work items by result
//   - bookfill_rows_persisted_total{provenance}: rows written, fetched or imputed
//   - bookfill_fetch_errors_total: failed source fetches
//   - bookfill_collector_days_total{outcome}: daily collector progress
//   - bookfill_unresolved_gaps: holes left after the last backfill run
//
// The Server exposes them alongside a /health endpoint that pings the
// database.
package metrics
