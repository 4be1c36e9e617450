// Package logging assembles the structured slog loggers used across
// speechset components.
//
// It owns the console and JSON handlers, centralizes level parsing, and
// defines the standardized field keys (video id, channel slug, segment index,
// run id) so every component emits log lines with the same shape. A no-op
// logger is provided for tests and wiring code that cannot fail.
package logging
