// Package gapscan finds temporal holes in a persisted snapshot series.
//
// The historical range is partitioned into fixed-size chunks. Each chunk is
// examined independently using only the stored received times:
//
//   - a chunk with no rows yields one FullChunk work item covering it
//   - adjacent rows further apart than the tolerance yield a Gap work item
//     covering (prior+ε, next)
//
// A chunk holding exactly one row yields nothing unless edge gaps are
// enabled, in which case holes between the chunk bounds and its first and
// last rows are reported as well.
package gapscan
