package ytdlp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"

	"speechset/internal/cookies"
	"speechset/internal/logging"
	"speechset/internal/services"
)

const defaultBinary = "yt-dlp"

// Executor abstracts command execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) (stdout, stderr []byte, err error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	var out, errBuf bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errBuf
	err := cmd.Run()
	return out.Bytes(), errBuf.Bytes(), err
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// Client wraps yt-dlp invocations with shared credential handling.
type Client struct {
	binary string
	creds  cookies.Credentials
	logger *slog.Logger
	exec   Executor
}

// New constructs a client. An empty binary falls back to "yt-dlp" on PATH.
func New(binary string, creds cookies.Credentials, logger *slog.Logger, opts ...Option) *Client {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = defaultBinary
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &Client{
		binary: binary,
		creds:  creds,
		logger: logging.NewComponentLogger(logger, "ytdlp"),
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// credentialArgs renders the shared credential handle as yt-dlp flags.
func (c *Client) credentialArgs() []string {
	switch {
	case c.creds.CookiesFile != "":
		return []string{"--cookies", c.creds.CookiesFile}
	case c.creds.Browser != nil:
		return []string{"--cookies-from-browser", c.creds.Browser.String()}
	default:
		return nil
	}
}

// run executes yt-dlp and classifies failures. The returned error already
// carries the taxonomy marker; stderr is returned for caller-side inspection.
func (c *Client) run(ctx context.Context, operation string, args []string) ([]byte, []byte, error) {
	full := append(c.credentialArgs(), args...)
	stdout, stderr, err := c.exec.Run(ctx, c.binary, full)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return stdout, stderr, ctxErr
		}
		c.logger.Warn("command failed",
			logging.String("operation", operation),
			logging.String(logging.FieldHint, "retry manually: "+c.renderInvocation(full)),
			logging.Error(err),
		)
		return stdout, stderr, classify(operation, string(stderr), err)
	}
	return stdout, stderr, nil
}

func (c *Client) renderInvocation(args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, c.binary)
	for _, arg := range args {
		if strings.ContainsAny(arg, " \t\"'") {
			parts = append(parts, fmt.Sprintf("%q", arg))
		} else {
			parts = append(parts, arg)
		}
	}
	return strings.Join(parts, " ")
}

var authMarkers = []string{
	"sign in to confirm",
	"confirm you're not a bot",
	"use --cookies",
	"cookies are no longer valid",
	"private video",
	"members-only",
	"join this channel",
	"login required",
	"account cookies",
}

var noFormatMarkers = []string{
	"requested format is not available",
	"no video formats found",
	"format is not available",
}

// classify buckets a yt-dlp failure: credential problems, missing formats on
// an otherwise reachable video, or any other extractor failure.
func classify(operation, stderr string, err error) error {
	lowered := strings.ToLower(stderr)
	message := firstErrorLine(stderr)
	if message == "" {
		message = err.Error()
	}
	for _, marker := range authMarkers {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrAuth, "ytdlp", operation, message, err)
		}
	}
	for _, marker := range noFormatMarkers {
		if strings.Contains(lowered, marker) {
			return services.Wrap(services.ErrNoFormats, "ytdlp", operation, message, err)
		}
	}
	return services.Wrap(services.ErrExtractor, "ytdlp", operation, message, err)
}

// firstErrorLine picks the first "ERROR:" line from stderr, falling back to
// the first non-empty line.
func firstErrorLine(stderr string) string {
	var fallback string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if fallback == "" {
			fallback = line
		}
		if strings.HasPrefix(line, "ERROR:") {
			return strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	return fallback
}

// IsAuthFailure reports whether err classified as a credential problem.
func IsAuthFailure(err error) bool {
	return errors.Is(err, services.ErrAuth)
}
