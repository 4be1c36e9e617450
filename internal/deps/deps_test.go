package deps_test

import (
	"strings"
	"testing"

	"speechset/internal/deps"
	"speechset/internal/testsupport"
)

func TestCheckBinariesResolvesStub(t *testing.T) {
	dir := t.TempDir()
	testsupport.StubBinary(t, dir, "fake-tool", []byte("#!/bin/sh\necho 2026.01.31\n"))
	testsupport.PrependPath(t, dir)

	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "fake", Command: "fake-tool"},
	})
	if len(statuses) != 1 {
		t.Fatalf("got %d statuses", len(statuses))
	}
	status := statuses[0]
	if !status.Available {
		t.Fatalf("stub not found: %s", status.Detail)
	}
	if !strings.HasSuffix(status.Path, "fake-tool") {
		t.Fatalf("unexpected path %q", status.Path)
	}
	if status.Version != "2026.01.31" {
		t.Fatalf("version = %q", status.Version)
	}
}

func TestCheckBinariesFlagsMissing(t *testing.T) {
	statuses := deps.CheckBinaries([]deps.Requirement{
		{Name: "absent", Command: "definitely-not-a-real-binary"},
		{Name: "blank", Command: "  "},
	})
	for _, status := range statuses {
		if status.Available {
			t.Fatalf("%s reported available", status.Name)
		}
		if status.Detail == "" {
			t.Fatalf("%s missing detail", status.Name)
		}
	}
}
