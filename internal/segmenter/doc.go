// Package segmenter cuts a source audio file into transcript-aligned clips.
// One segment per retained base-transcript entry, cut with ffmpeg, with a
// per-segment bundle collecting the overlapping text of every stored
// transcript track. Indices are assigned contiguously at plan time so the
// layout is stable regardless of worker scheduling.
package segmenter
