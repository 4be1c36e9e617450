// Package manifest persists per-unit outcomes as append-only JSONL streams
// and exposes the idempotence checks the pipeline driver relies on.
//
// Each flow (URL-first, channel-first) owns a records stream, a failures
// stream, a derived CSV projection, and a summary document under
// <dataset>/manifests. Records are immutable once appended; appends are
// serialized with an in-process mutex plus a cross-process flock so
// concurrent workers never interleave mid-line. The records stream is the
// sole authority for "has this unit already been completed" — completion is
// never re-derived from the artifact tree except as a fallback when the
// stream is absent or unreadable.
//
// Treat this package as the single source of truth for outcome semantics;
// when you add new outcome or failure kinds, update record.go and the
// summary aggregation together.
package manifest
