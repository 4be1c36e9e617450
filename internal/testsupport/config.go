// Package testsupport provides helpers shared by package tests: seeded
// configurations backed by per-test temp directories and stubbed external
// binaries.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"speechset/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp dataset root per
// test. It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DatasetRoot = filepath.Join(base, "dataset")
	cfgVal.Workers.Video = 1
	cfgVal.Workers.Segment = 1
	cfgVal.Workers.Channel = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithOverwrite marks the run as overwriting existing artifacts.
func WithOverwrite() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Overwrite = true
	}
}

// WithSegmentsDisabled turns off segment cutting.
func WithSegmentsDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Segments.Enabled = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH, pointing the tool paths at the stubs. If names is
// empty, yt-dlp and ffmpeg are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"yt-dlp", "ffmpeg"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			StubBinary(b.t, binDir, name, script)
		}
		PrependPath(b.t, binDir)
	}
}

// StubBinary writes an executable script into dir.
func StubBinary(t testing.TB, dir, name string, script []byte) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, script, 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// PrependPath puts dir at the front of PATH for the duration of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	oldPath := os.Getenv("PATH")
	if err := os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath); err != nil {
		t.Fatalf("set PATH: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Setenv("PATH", oldPath)
	})
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DatasetRoot)
}
