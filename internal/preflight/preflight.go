// Package preflight validates the environment before a run: required
// binaries, dataset root access, and free disk space.
package preflight

import (
	"fmt"

	"golang.org/x/sys/unix"

	"speechset/internal/config"
	"speechset/internal/deps"
	"speechset/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Free-space floor for a run; downloads and cuts land under the dataset root.
const minFreeBytes = 1 << 30

// RunAll executes all preflight checks for the given config.
func RunAll(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := make([]Result, 0, 4)
	for _, status := range CheckToolBinaries(cfg) {
		result := Result{Name: status.Name, Passed: status.Available}
		if status.Available {
			result.Detail = status.Path
			if status.Version != "" {
				result.Detail = status.Path + " (" + status.Version + ")"
			}
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	results = append(results, CheckDirectoryAccess("Dataset root", cfg.Paths.DatasetRoot))
	results = append(results, CheckFreeSpace("Free space", cfg.Paths.DatasetRoot))
	return results
}

// Err folds check results into a run-fatal configuration error when any
// required check failed.
func Err(results []Result) error {
	for _, result := range results {
		if !result.Passed {
			return services.Wrap(services.ErrConfiguration, "preflight", "check",
				fmt.Sprintf("%s: %s", result.Name, result.Detail), nil)
		}
	}
	return nil
}

// CheckToolBinaries reports availability of the external tools.
func CheckToolBinaries(cfg *config.Config) []deps.Status {
	ytdlpBin := cfg.Tools.YtdlpBin
	if ytdlpBin == "" {
		ytdlpBin = "yt-dlp"
	}
	ffmpegBin := cfg.Tools.FFmpegBin
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "yt-dlp",
			Command:     ytdlpBin,
			Description: "Required for metadata, audio, and transcript retrieval",
		},
		{
			Name:        "FFmpeg",
			Command:     ffmpegBin,
			Description: "Required for segment cutting",
		},
	})
}

// CheckDirectoryAccess verifies the directory exists and is fully accessible.
func CheckDirectoryAccess(name, path string) Result {
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem behind path has headroom for new
// artifacts.
func CheckFreeSpace(name, path string) Result {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: only %d MiB free)", path, free/(1<<20))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d GiB free)", path, free/(1<<30))}
}
