// Package schedule partitions the selected cases of a validated graph into
// ordered batches. Cases inside a batch have no dependency on each other and
// can run concurrently; batch k only depends on batches before it.
//
// Cases that are not selected do not take part in batching. A selected case
// is ordered after the nearest selected ancestor on its dependsOn chain, and
// any unselected ancestors in between are executed on demand by the runner.
package schedule
