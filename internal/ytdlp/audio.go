package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"speechset/internal/fileutil"
	"speechset/internal/logging"
	"speechset/internal/services"
)

// AudioRequest describes one audio extraction.
type AudioRequest struct {
	URL       string
	OutputDir string
	Format    string
	Quality   string
	Selectors []string
	Overwrite bool
}

// AudioResult reports the produced artifact and the selector that won.
type AudioResult struct {
	Path     string
	Selector string
	Skipped  bool
}

// DownloadAudio extracts audio, trying format selectors in priority order
// until one succeeds. An existing source.<format> short-circuits unless
// overwrite is set. When every selector fails without a credential problem,
// the failure is reported as formats-unavailable rather than the last raw
// extractor error.
func (c *Client) DownloadAudio(ctx context.Context, req AudioRequest) (*AudioResult, error) {
	if len(req.Selectors) == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "ytdlp", "audio", "no format selectors configured", nil)
	}
	target := filepath.Join(req.OutputDir, "source."+req.Format)
	if !req.Overwrite && fileutil.Exists(target) {
		return &AudioResult{Path: target, Skipped: true}, nil
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}

	var lastErr error
	for _, selector := range req.Selectors {
		args := []string{
			"-f", selector,
			"-x",
			"--audio-format", req.Format,
			"--audio-quality", req.Quality,
			"-o", filepath.Join(req.OutputDir, "source.%(ext)s"),
			"--no-playlist",
			"--no-warnings",
		}
		if req.Overwrite {
			args = append(args, "--force-overwrites")
		}
		args = append(args, req.URL)

		_, _, err := c.run(ctx, "audio", args)
		if err == nil {
			path, findErr := findAudioArtifact(req.OutputDir, req.Format)
			if findErr != nil {
				return nil, findErr
			}
			c.logger.Info("audio extracted",
				logging.String("selector", selector),
				logging.String("path", path),
			)
			return &AudioResult{Path: path, Selector: selector}, nil
		}
		if errors.Is(err, services.ErrAuth) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("format selector failed",
			logging.String("selector", selector),
			logging.Error(err),
		)
		lastErr = err
	}
	// Every selector failed on a probe-reachable video: credentials are fine
	// but no selector matched an available format.
	return nil, services.Wrap(services.ErrNoFormats, "ytdlp", "audio",
		fmt.Sprintf("all %d format selectors failed for %s", len(req.Selectors), req.URL), lastErr)
}

// findAudioArtifact locates the produced file: the exact target when the
// post-processor converted, otherwise the first source.* file.
func findAudioArtifact(dir, format string) (string, error) {
	target := filepath.Join(dir, "source."+format)
	if fileutil.Exists(target) {
		return target, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, "source.*"))
	if err == nil && len(matches) > 0 {
		files := matches[:0]
		for _, m := range matches {
			if fileutil.Exists(m) && !strings.HasSuffix(m, ".part") {
				files = append(files, m)
			}
		}
		if len(files) > 0 {
			sort.Strings(files)
			return files[0], nil
		}
	}
	return "", services.Wrap(services.ErrExtractor, "ytdlp", "audio",
		fmt.Sprintf("download produced no audio file in %s", dir), nil)
}
