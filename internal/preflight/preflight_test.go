package preflight_test

import (
	"os"
	"strings"
	"testing"

	"speechset/internal/preflight"
	"speechset/internal/testsupport"
)

func TestRunAllPassesWithStubbedTools(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	results := preflight.RunAll(cfg)
	if len(results) != 4 {
		t.Fatalf("got %d results, want 4: %+v", len(results), results)
	}
	for _, result := range results {
		if !result.Passed {
			t.Fatalf("check %q failed: %s", result.Name, result.Detail)
		}
	}
	if err := preflight.Err(results); err != nil {
		t.Fatalf("Err: %v", err)
	}
}

func TestRunAllFlagsMissingBinary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	cfg.Tools.YtdlpBin = "definitely-not-a-real-binary"

	results := preflight.RunAll(cfg)
	if err := preflight.Err(results); err == nil {
		t.Fatal("expected failure for missing binary")
	} else if !strings.Contains(err.Error(), "yt-dlp") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckDirectoryAccess(t *testing.T) {
	dir := t.TempDir()
	if result := preflight.CheckDirectoryAccess("Dataset root", dir); !result.Passed {
		t.Fatalf("accessible directory failed: %s", result.Detail)
	}
	if result := preflight.CheckDirectoryAccess("Dataset root", dir+"/missing"); result.Passed {
		t.Fatal("missing directory passed")
	}
}

func TestCheckFreeSpace(t *testing.T) {
	if os.Getenv("CI") != "" {
		t.Skip("free space dependent on runner")
	}
	result := preflight.CheckFreeSpace("Free space", t.TempDir())
	if result.Detail == "" {
		t.Fatal("expected detail with space report")
	}
}
