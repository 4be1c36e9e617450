// Package resolver turns the raw references in an input file into ordered,
// deduplicated work units. Video references become canonical 11-character
// video IDs; channel references become a target URL plus a stable directory
// slug. A reference that cannot be resolved produces a per-reference failure
// and never aborts the batch.
package resolver
