// Package deps reports availability of the external binaries the pipeline
// shells out to: yt-dlp for retrieval and ffmpeg for segment cutting.
package deps

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Requirement names one external binary the pipeline needs on PATH.
type Requirement struct {
	Name        string
	Command     string
	Description string
}

// Status is the resolved state of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Available   bool
	Path        string
	Version     string
	Detail      string
}

const versionProbeTimeout = 5 * time.Second

// CheckBinaries resolves each requirement on PATH and probes its version.
// A binary that resolves but refuses --version is still available; the
// version column just stays empty.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = "binary " + status.Command + " not found on PATH"
		return status
	}
	status.Available = true
	status.Path = path
	status.Version = probeVersion(path)
	return status
}

// probeVersion runs <binary> --version and keeps the first line. ffmpeg
// prints a banner ("ffmpeg version N.n ..."); yt-dlp prints the bare version.
func probeVersion(path string) string {
	ctx, cancel := context.WithTimeout(context.Background(), versionProbeTimeout)
	defer cancel()

	output, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(firstLine(output))
	if rest, ok := strings.CutPrefix(line, "ffmpeg version "); ok {
		if fields := strings.Fields(rest); len(fields) > 0 {
			return fields[0]
		}
	}
	return line
}

func firstLine(output []byte) string {
	text := string(output)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
