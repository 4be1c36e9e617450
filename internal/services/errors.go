package services

import (
	"errors"
	"fmt"
	"strings"

	"speechset/internal/manifest"
)

var (
	// ErrAuth marks credential or sign-in failures from the download tool.
	ErrAuth = errors.New("authentication error")
	// ErrNoFormats marks the auth-ok, formats-unavailable condition: metadata
	// resolved but every format selector in the fallback chain failed.
	ErrNoFormats = errors.New("no usable formats")
	// ErrExtractor marks any other download tool failure.
	ErrExtractor = errors.New("extractor error")
	// ErrTranscript marks transcript listing or fetch failures.
	ErrTranscript = errors.New("transcript error")
	// ErrTranscode marks transcoding tool failures while cutting a segment.
	ErrTranscode = errors.New("transcode error")
	// ErrResolve marks malformed input references.
	ErrResolve = errors.New("reference resolution error")
	// ErrConfiguration marks run-fatal setup problems (missing binary,
	// missing cookie file, bad worker counts).
	ErrConfiguration = errors.New("configuration error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrExtractor
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// FailureKind maps a tagged error to the manifest failure kind a record
// should carry.
func FailureKind(err error) manifest.FailureKind {
	switch {
	case errors.Is(err, ErrAuth):
		return manifest.FailureAuth
	case errors.Is(err, ErrNoFormats):
		return manifest.FailureNoFormats
	case errors.Is(err, ErrTranscript):
		return manifest.FailureTranscript
	case errors.Is(err, ErrTranscode):
		return manifest.FailureTranscode
	case errors.Is(err, ErrResolve):
		return manifest.FailureResolve
	case errors.Is(err, ErrConfiguration):
		return manifest.FailureConfiguration
	default:
		return manifest.FailureExtractor
	}
}

// RunFatal reports whether an error must abort the whole run instead of being
// recorded as a unit outcome. Only configuration problems qualify; manifest
// I/O errors are surfaced directly by the store and never pass through here.
func RunFatal(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
