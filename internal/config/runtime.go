package config

import (
	"fmt"
	"runtime"
)

// macVideoWorkerCeiling caps auto-tuned video workers on the mac profile.
// Parallel yt-dlp/ffmpeg invocations destabilize well below the core count
// there, so raw CPU count oversubscribes the host.
const macVideoWorkerCeiling = 4

// Runtime is the resolved concurrency profile. All counts are concrete and
// positive; the 0-means-auto sentinel never leaves this package.
type Runtime struct {
	CPUCount       int
	DetectedSystem string
	System         string
	ChannelWorkers int
	VideoWorkers   int
	SegmentWorkers int
}

// DetectSystem maps the build platform to a system profile.
func DetectSystem() string {
	if runtime.GOOS == "darwin" {
		return SystemMac
	}
	return SystemLinux
}

// ResolveRuntime computes concrete worker counts from the configuration,
// the CPU count, and the system profile. It runs once at startup; pools are
// constructed only from its output.
func (c *Config) ResolveRuntime() (Runtime, error) {
	if c.Workers.Channel < 0 || c.Workers.Video < 0 || c.Workers.Segment < 0 {
		return Runtime{}, fmt.Errorf("worker counts must be >= 0")
	}

	cpuCount := runtime.NumCPU()
	if cpuCount < 1 {
		cpuCount = 1
	}

	detected := DetectSystem()
	selected := c.Workers.System
	if selected == SystemAuto {
		selected = detected
	}

	videoWorkers := c.Workers.Video
	if videoWorkers == 0 {
		videoWorkers = cpuCount
		if selected == SystemMac && videoWorkers > macVideoWorkerCeiling {
			videoWorkers = macVideoWorkerCeiling
		}
	}

	// Keep total transcoder concurrency (video x segment) near the CPU count
	// unless the operator chose explicit counts.
	segmentWorkers := c.Workers.Segment
	if segmentWorkers == 0 {
		segmentWorkers = cpuCount / videoWorkers
		if segmentWorkers < 1 {
			segmentWorkers = 1
		}
	}

	channelWorkers := c.Workers.Channel
	if channelWorkers == 0 {
		channelWorkers = videoWorkers
	}

	return Runtime{
		CPUCount:       cpuCount,
		DetectedSystem: detected,
		System:         selected,
		ChannelWorkers: channelWorkers,
		VideoWorkers:   videoWorkers,
		SegmentWorkers: segmentWorkers,
	}, nil
}
