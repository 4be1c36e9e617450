// Package services defines the shared error taxonomy for the external tool
// adapters and maps errors onto manifest failure kinds.
//
// Adapters tag failures with the sentinel markers below via Wrap so the
// pipeline can classify outcomes without string matching, and so every
// manifest record carries a machine-readable failure kind.
package services
