// Package language normalizes user-facing language references to the
// 2-letter codes caption listings key their tracks by.
//
// All language conversions (ISO 639-1, ISO 639-2, word forms, display names)
// are consolidated here so configuration and transcript selection agree on
// one canonical form.
package language
