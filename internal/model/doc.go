// Package model defines the shared data types of the snapshot pipeline.
//
// Conventions:
//   - Timestamps are time.Time in memory and int64 microseconds since the Unix
//     epoch (UTC) once persisted; Canonical applies that resolution up front.
//   - Prices and sizes are float64 as reported by the venue.
//   - A book carries at most MaxLevels levels per side; missing levels are
//     simply absent from the slice.
package model
