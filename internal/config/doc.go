// Package config loads, normalizes, and validates speechset configuration.
//
// Settings come from an optional TOML file overlaid by CLI flags. Worker
// auto-tuning is resolved eagerly into a Runtime value (concrete channel,
// video, and segment worker counts) before any pool is constructed, so the
// rest of the system never sees the 0-means-auto sentinel.
package config
