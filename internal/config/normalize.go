package config

import (
	"strings"

	"speechset/internal/language"
)

// normalize trims string fields, expands paths, and backfills empty values
// with defaults so validation and runtime resolution see canonical data.
func (c *Config) normalize() error {
	defaults := Default()

	c.Paths.DatasetRoot = strings.TrimSpace(c.Paths.DatasetRoot)
	if c.Paths.DatasetRoot == "" {
		c.Paths.DatasetRoot = defaults.Paths.DatasetRoot
	}
	expanded, err := expandPath(c.Paths.DatasetRoot)
	if err != nil {
		return err
	}
	c.Paths.DatasetRoot = expanded

	c.Tools.YtdlpBin = strings.TrimSpace(c.Tools.YtdlpBin)
	if c.Tools.YtdlpBin == "" {
		c.Tools.YtdlpBin = defaults.Tools.YtdlpBin
	}
	c.Tools.FFmpegBin = strings.TrimSpace(c.Tools.FFmpegBin)
	if c.Tools.FFmpegBin == "" {
		c.Tools.FFmpegBin = defaults.Tools.FFmpegBin
	}

	c.Auth.CookiesFile = strings.TrimSpace(c.Auth.CookiesFile)
	if c.Auth.CookiesFile != "" {
		expanded, err := expandPath(c.Auth.CookiesFile)
		if err != nil {
			return err
		}
		c.Auth.CookiesFile = expanded
	}
	c.Auth.CookiesFromBrowser = strings.TrimSpace(c.Auth.CookiesFromBrowser)

	c.Audio.Format = strings.ToLower(strings.TrimSpace(c.Audio.Format))
	if c.Audio.Format == "" {
		c.Audio.Format = defaults.Audio.Format
	}
	c.Audio.Quality = strings.TrimSpace(c.Audio.Quality)
	if c.Audio.Quality == "" {
		c.Audio.Quality = defaults.Audio.Quality
	}
	selectors := make([]string, 0, len(c.Audio.FormatSelectors))
	for _, selector := range c.Audio.FormatSelectors {
		if selector = strings.TrimSpace(selector); selector != "" {
			selectors = append(selectors, selector)
		}
	}
	if len(selectors) == 0 {
		selectors = append(selectors, defaults.Audio.FormatSelectors...)
	}
	c.Audio.FormatSelectors = selectors

	// Accept "english"/"eng"/"en" alike; caption listings key tracks by the
	// 2-letter form. Unrecognizable values survive for Validate to flag.
	if raw := strings.TrimSpace(c.Transcripts.AutoLanguage); raw != "" {
		if normalized := language.NormalizeCaptionCode(raw); normalized != "" {
			c.Transcripts.AutoLanguage = normalized
		} else {
			c.Transcripts.AutoLanguage = raw
		}
	} else {
		c.Transcripts.AutoLanguage = ""
	}

	c.Segments.Format = strings.ToLower(strings.TrimSpace(c.Segments.Format))
	if c.Segments.Format == "" {
		c.Segments.Format = defaults.Segments.Format
	}
	c.Segments.Bitrate = strings.TrimSpace(c.Segments.Bitrate)
	if c.Segments.Bitrate == "" {
		c.Segments.Bitrate = defaults.Segments.Bitrate
	}

	c.Workers.System = strings.ToLower(strings.TrimSpace(c.Workers.System))
	if c.Workers.System == "" {
		c.Workers.System = defaults.Workers.System
	}

	c.Channels.SortBy = strings.ToLower(strings.TrimSpace(c.Channels.SortBy))
	if c.Channels.SortBy == "" {
		c.Channels.SortBy = defaults.Channels.SortBy
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaults.Logging.Level
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaults.Logging.Format
	}

	return nil
}
