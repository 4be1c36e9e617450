package ytdlp

import (
	"context"
	"errors"

	"speechset/internal/services"
)

// CheckResult reports the outcome of a credential check against one video.
type CheckResult struct {
	Title     string
	ProbeOK   bool
	FormatsOK bool
	Selector  string
	Failures  []string
}

// CheckAccess verifies credentials without downloading: a metadata probe
// first, then each format selector in simulate mode until one resolves.
// A successful probe with no resolvable selector is the distinct
// credentials-fine, formats-unavailable condition and is not an error.
func (c *Client) CheckAccess(ctx context.Context, url string, selectors []string) (*CheckResult, error) {
	info, err := c.Probe(ctx, url)
	if err != nil {
		return &CheckResult{}, err
	}
	result := &CheckResult{Title: info.Title, ProbeOK: true}

	for _, selector := range selectors {
		args := []string{
			"-f", selector,
			"--simulate",
			"--no-playlist",
			"--no-warnings",
			url,
		}
		_, _, err := c.run(ctx, "check", args)
		if err == nil {
			result.FormatsOK = true
			result.Selector = selector
			return result, nil
		}
		if errors.Is(err, services.ErrAuth) || ctx.Err() != nil {
			return result, err
		}
		result.Failures = append(result.Failures, selector+": "+err.Error())
	}
	return result, nil
}
