// Package pipeline orchestrates a run: reference resolution, channel
// expansion, the nested worker pools, per-unit processing through the
// download adapter and segmenter, and manifest bookkeeping. Completion is
// decided here and only here, by asking the manifest store; workers below
// this layer never consult completion state.
package pipeline
