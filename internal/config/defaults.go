package config

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Paths: Paths{
			DatasetRoot: "dataset",
		},
		Tools: Tools{
			YtdlpBin:  "yt-dlp",
			FFmpegBin: "ffmpeg",
		},
		Audio: Audio{
			Format:          "mp3",
			Quality:         "192",
			FormatSelectors: []string{"bestaudio", "bestaudio/best", "best"},
		},
		Transcripts: Transcripts{
			IncludeAll: true,
		},
		Segments: Segments{
			Enabled:            true,
			Format:             "mp3",
			Bitrate:            "128k",
			MinDurationSeconds: 0.25,
			MinChars:           1,
		},
		Workers: Workers{
			System: SystemAuto,
		},
		Channels: Channels{
			SortBy: SortNewest,
		},
		Catalog: Catalog{
			Enabled: true,
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}
