// Package loader reads tabular sources into immutable datasets and publishes them
// to a Catalog.
//
// The Catalog workflow:
//   - A Reader yields a header and positional records
//   - Every record becomes a core.Row with RowID equal to its ordinal
//   - The finished dataset is published by swapping one atomic snapshot pointer
//   - Listeners (schema index, row cache) are notified in publish order
//
// Readers never see partial state: a reload is built off to the side and replaces
// the previous dataset in a single store. Queries holding an older snapshot keep
// reading it undisturbed.
//
// LoadAll loads many sources concurrently on a worker pool. Each source has its own
// timeout and failures are reported per source without affecting the others.
package loader
