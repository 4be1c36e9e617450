package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"speechset/internal/language"
)

// System profile values.
const (
	SystemAuto  = "auto"
	SystemMac   = "mac"
	SystemLinux = "linux"
)

// Channel video sort orders.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

var segmentFormats = map[string]struct{}{
	"mp3":  {},
	"wav":  {},
	"m4a":  {},
	"aac":  {},
	"flac": {},
	"opus": {},
}

// Validate checks the configuration for values that would make a run
// misbehave. Validation failures are run-fatal.
func (c *Config) Validate() error {
	var problems []string

	switch c.Workers.System {
	case SystemAuto, SystemMac, SystemLinux:
	default:
		problems = append(problems, fmt.Sprintf("workers.system: unsupported value %q (expected auto, mac, or linux)", c.Workers.System))
	}
	if c.Workers.Channel < 0 || c.Workers.Video < 0 || c.Workers.Segment < 0 {
		problems = append(problems, "workers: counts must be >= 0 (0 means auto)")
	}

	if c.Auth.CookiesFile != "" && c.Auth.CookiesFromBrowser != "" {
		problems = append(problems, "auth: cookies_file and cookies_from_browser are mutually exclusive")
	}
	if c.Auth.CookiesFile != "" {
		if info, err := os.Stat(c.Auth.CookiesFile); err != nil || info.IsDir() {
			problems = append(problems, fmt.Sprintf("auth.cookies_file: not found at %s", c.Auth.CookiesFile))
		}
	}

	if len(c.Audio.FormatSelectors) == 0 {
		problems = append(problems, "audio.format_selectors: at least one selector required")
	}

	if raw := c.Transcripts.AutoLanguage; raw != "" && language.NormalizeCaptionCode(raw) == "" {
		problems = append(problems, fmt.Sprintf("transcripts.auto_language: unrecognized language %q", raw))
	}

	if _, ok := segmentFormats[c.Segments.Format]; !ok {
		problems = append(problems, fmt.Sprintf("segments.format: unsupported value %q", c.Segments.Format))
	}
	if c.Segments.MinDurationSeconds < 0 {
		problems = append(problems, "segments.min_duration_seconds: must be >= 0")
	}
	if c.Segments.MinChars < 0 {
		problems = append(problems, "segments.min_chars: must be >= 0")
	}

	switch c.Channels.SortBy {
	case SortNewest, SortOldest, SortPopular:
	default:
		problems = append(problems, fmt.Sprintf("channels.sort_by: unsupported value %q (expected newest, oldest, or popular)", c.Channels.SortBy))
	}
	if c.Channels.MaxVideos < 0 {
		problems = append(problems, "channels.max_videos: must be >= 0 (0 means no cap)")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		problems = append(problems, fmt.Sprintf("logging.format: unsupported value %q (expected console or json)", c.Logging.Format))
	}

	if len(problems) == 0 {
		return nil
	}
	return errors.New("invalid configuration:\n  - " + strings.Join(problems, "\n  - "))
}
