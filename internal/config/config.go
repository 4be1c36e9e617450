package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DatasetRoot string `toml:"dataset_root"`
}

// Tools contains external binary overrides.
type Tools struct {
	YtdlpBin  string `toml:"ytdlp_bin"`
	FFmpegBin string `toml:"ffmpeg_bin"`
}

// Auth contains the credential handle passed through to the download tool.
// CookiesFile and CookiesFromBrowser are mutually exclusive.
type Auth struct {
	CookiesFile        string `toml:"cookies_file"`
	CookiesFromBrowser string `toml:"cookies_from_browser"`
}

// Audio contains source audio extraction settings.
type Audio struct {
	Format string `toml:"format"`
	// Quality is passed to the download tool's audio postprocessor
	// (bitrate in kbit/s for lossy formats).
	Quality string `toml:"quality"`
	// FormatSelectors is the prioritized fallback chain; the first selector
	// that yields usable audio wins.
	FormatSelectors []string `toml:"format_selectors"`
}

// Transcripts contains transcript selection settings.
type Transcripts struct {
	// AutoLanguage is an explicit target caption language code. Empty means
	// detect the best available generated track.
	AutoLanguage string `toml:"auto_language"`
	// IncludeAll dumps every available manual/auto track in addition to the
	// default and target tracks.
	IncludeAll bool `toml:"include_all"`
}

// Segments contains transcript-aligned cutting settings.
type Segments struct {
	Enabled            bool    `toml:"enabled"`
	Format             string  `toml:"format"`
	Bitrate            string  `toml:"bitrate"`
	MinDurationSeconds float64 `toml:"min_duration_seconds"`
	MinChars           int     `toml:"min_chars"`
}

// Workers contains concurrency settings. Zero means auto-tune from the CPU
// count and system profile.
type Workers struct {
	System  string `toml:"system"`
	Channel int    `toml:"channel"`
	Video   int    `toml:"video"`
	Segment int    `toml:"segment"`
}

// Channels contains channel expansion settings.
type Channels struct {
	// MaxVideos caps videos fetched per channel; zero means no cap.
	MaxVideos int    `toml:"max_videos"`
	SortBy    string `toml:"sort_by"`
}

// Catalog contains the derived SQLite projection settings.
type Catalog struct {
	Enabled bool `toml:"enabled"`
}

// Logging contains log output settings.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for speechset.
type Config struct {
	Paths       Paths       `toml:"paths"`
	Tools       Tools       `toml:"tools"`
	Auth        Auth        `toml:"auth"`
	Audio       Audio       `toml:"audio"`
	Transcripts Transcripts `toml:"transcripts"`
	Segments    Segments    `toml:"segments"`
	Workers     Workers     `toml:"workers"`
	Channels    Channels    `toml:"channels"`
	Catalog     Catalog     `toml:"catalog"`
	Logging     Logging     `toml:"logging"`

	// Overwrite forces re-fetch and re-cut regardless of existing artifacts
	// and manifest state. Flag-only; never persisted.
	Overwrite bool `toml:"-"`
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/speechset/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("speechset.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the dataset layout roots required for a run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{
		c.Paths.DatasetRoot,
		c.VideosDir(),
		c.ManifestsDir(),
		c.LinksDir(),
		c.ChannelsDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// VideosDir returns the per-video artifact root.
func (c *Config) VideosDir() string {
	return filepath.Join(c.Paths.DatasetRoot, "videos")
}

// ManifestsDir returns the manifest stream directory.
func (c *Config) ManifestsDir() string {
	return filepath.Join(c.Paths.DatasetRoot, "manifests")
}

// LinksDir returns the input snapshot directory.
func (c *Config) LinksDir() string {
	return filepath.Join(c.Paths.DatasetRoot, "links")
}

// ChannelsDir returns the channel expansion snapshot directory.
func (c *Config) ChannelsDir() string {
	return filepath.Join(c.Paths.DatasetRoot, "channels")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
