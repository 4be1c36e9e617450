// Package pool provides the bounded-concurrency executor used at every
// level of the pipeline: channel expansion, video processing, and segment
// cutting.
//
// Run keeps at most the requested number of workers in flight, returns
// per-item outcomes in item order regardless of completion order, and never
// lets one item's failure cancel its siblings. Worker counts are resolved
// eagerly by config.ResolveRuntime before any pool is constructed, so Run
// treats a non-positive count as a caller bug.
package pool
