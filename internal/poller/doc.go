// Package poller repeats a collection job on a fixed interval.
//
// The Poller:
//   - Runs the job immediately on start, then every interval
//   - Bounds each cycle with a timeout
//   - Logs failed cycles and keeps going, unless the failure is fatal
//   - Never overlaps cycles
package poller
