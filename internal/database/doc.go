// Package database provides the PostgreSQL/TimescaleDB connection pool that
// backs the snapshot store.
package database
