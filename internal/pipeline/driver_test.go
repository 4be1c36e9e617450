package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"speechset/internal/config"
	"speechset/internal/cookies"
	"speechset/internal/manifest"
	"speechset/internal/pipeline"
	"speechset/internal/segmenter"
	"speechset/internal/testsupport"
	"speechset/internal/ytdlp"
)

// scriptedAdapter emulates the download tool across probe, audio, subtitle,
// and channel-listing invocations. Video IDs in authFail reject with a
// sign-in error.
type scriptedAdapter struct {
	mu       sync.Mutex
	calls    int
	authFail map[string]bool
	listing  string
	listCall int
}

func (s *scriptedAdapter) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	url := args[len(args)-1]
	videoID := url[strings.LastIndex(url, "=")+1:]
	if s.authFail[videoID] {
		return nil, []byte("ERROR: Sign in to confirm you're not a bot"), errors.New("exit status 1")
	}

	joined := strings.Join(args, " ")
	switch {
	case strings.Contains(joined, "--flat-playlist"):
		s.mu.Lock()
		s.listCall++
		s.mu.Unlock()
		return []byte(s.listing), nil, nil
	case strings.Contains(joined, "--dump-single-json"):
		info := fmt.Sprintf(`{"id":%q,"title":"Video %s","channel":"Creator","duration":10.0,"language":"en",`+
			`"subtitles":{"en":[{"ext":"json3"}]},"automatic_captions":{"en-orig":[{"ext":"json3"}]}}`,
			videoID, videoID)
		return []byte(info), nil, nil
	case strings.Contains(joined, "--sub-langs"):
		return nil, nil, writeSubtitle(args)
	case strings.Contains(joined, " -x "):
		return nil, nil, writeAudio(args)
	default:
		return nil, nil, nil
	}
}

func writeSubtitle(args []string) error {
	var template, lang string
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			template = args[i+1]
		}
		if arg == "--sub-langs" && i+1 < len(args) {
			lang = args[i+1]
		}
	}
	payload := `{"events":[` +
		`{"tStartMs":0,"dDurationMs":2000,"segs":[{"utf8":"first line"}]},` +
		`{"tStartMs":2000,"dDurationMs":3000,"segs":[{"utf8":"second line"}]}]}`
	return os.WriteFile(strings.Replace(template, "%(ext)s", lang+".json3", 1), []byte(payload), 0o644)
}

func writeAudio(args []string) error {
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			target := strings.Replace(args[i+1], "%(ext)s", "mp3", 1)
			return os.WriteFile(target, []byte("audio"), 0o644)
		}
	}
	return errors.New("no output template")
}

// fakeCutter fabricates segment clips without ffmpeg.
type fakeCutter struct{}

func (fakeCutter) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	return nil, os.WriteFile(args[len(args)-1], []byte("clip"), 0o644)
}

func newDriver(t *testing.T, cfg *config.Config, adapter *scriptedAdapter) *pipeline.Driver {
	t.Helper()
	client := ytdlp.New("yt-dlp", cookies.Credentials{}, nil, ytdlp.WithExecutor(adapter))
	seg := segmenter.New("ffmpeg", nil, segmenter.WithExecutor(fakeCutter{}))
	driver, err := pipeline.New(cfg, nil, pipeline.WithClient(client), pipeline.WithSegmenter(seg))
	if err != nil {
		t.Fatalf("pipeline.New: %v", err)
	}
	return driver
}

func writeInput(t *testing.T, cfg *config.Config, name string, lines []string) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), name)
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestProcessInputHappyPath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapter := &scriptedAdapter{}
	driver := newDriver(t, cfg, adapter)
	input := writeInput(t, cfg, "urls.txt", []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"})

	result, err := driver.ProcessInput(context.Background(), input)
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if result.Success != 1 || result.Failed != 0 || result.Skipped != 0 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.ExitCode() != 0 {
		t.Fatalf("unexpected exit code %d", result.ExitCode())
	}

	videoRoot := filepath.Join(cfg.VideosDir(), "aaaaaaaaaaa")
	for _, artifact := range []string{
		filepath.Join(videoRoot, "audio", "source.mp3"),
		filepath.Join(videoRoot, "transcripts", "default.json"),
		filepath.Join(videoRoot, "segments", "index.jsonl"),
		filepath.Join(videoRoot, "metadata.json"),
	} {
		if _, err := os.Stat(artifact); err != nil {
			t.Fatalf("missing artifact %s: %v", artifact, err)
		}
	}

	records, _, err := manifest.ReadRecords(filepath.Join(cfg.ManifestsDir(), "records.jsonl"))
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	if len(records) != 1 || records[0].Status != manifest.OutcomeSuccess {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].SegmentCount != 2 {
		t.Fatalf("unexpected segment count %d", records[0].SegmentCount)
	}
}

func TestProcessInputRerunSkipsDoneUnits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapter := &scriptedAdapter{}
	input := writeInput(t, cfg, "urls.txt", []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"})

	if _, err := newDriver(t, cfg, adapter).ProcessInput(context.Background(), input); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := adapter.calls

	result, err := newDriver(t, cfg, adapter).ProcessInput(context.Background(), input)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Success != 0 || result.Failed != 0 || result.Skipped != 1 {
		t.Fatalf("unexpected second-run counts: %+v", result)
	}
	if adapter.calls != callsAfterFirst {
		t.Fatalf("done unit reached the adapter: %d calls after first, %d after second",
			callsAfterFirst, adapter.calls)
	}
}

func TestProcessInputOverwriteBypassesSkip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapter := &scriptedAdapter{}
	input := writeInput(t, cfg, "urls.txt", []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"})

	if _, err := newDriver(t, cfg, adapter).ProcessInput(context.Background(), input); err != nil {
		t.Fatalf("first run: %v", err)
	}
	callsAfterFirst := adapter.calls

	cfg.Overwrite = true
	result, err := newDriver(t, cfg, adapter).ProcessInput(context.Background(), input)
	if err != nil {
		t.Fatalf("overwrite run: %v", err)
	}
	if result.Success != 1 || result.Skipped != 0 {
		t.Fatalf("unexpected overwrite counts: %+v", result)
	}
	if adapter.calls == callsAfterFirst {
		t.Fatal("overwrite run never reached the adapter")
	}
}

func TestProcessInputIsolatesAuthFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapter := &scriptedAdapter{authFail: map[string]bool{"bbbbbbbbbbb": true}}
	driver := newDriver(t, cfg, adapter)
	input := writeInput(t, cfg, "urls.txt", []string{
		"https://www.youtube.com/watch?v=aaaaaaaaaaa",
		"https://www.youtube.com/watch?v=bbbbbbbbbbb",
		"https://www.youtube.com/watch?v=ccccccccccc",
	})

	result, err := driver.ProcessInput(context.Background(), input)
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if result.Success != 2 || result.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.ExitCode() == 0 {
		t.Fatal("expected non-zero exit for failed unit")
	}

	failures, _, err := manifest.ReadRecords(filepath.Join(cfg.ManifestsDir(), "failures.jsonl"))
	if err != nil {
		t.Fatalf("read failures: %v", err)
	}
	if len(failures) != 1 || failures[0].FailureKind != manifest.FailureAuth {
		t.Fatalf("unexpected failures: %+v", failures)
	}
}

func TestProcessInputSegmentsDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSegmentsDisabled())
	adapter := &scriptedAdapter{}
	driver := newDriver(t, cfg, adapter)
	input := writeInput(t, cfg, "urls.txt", []string{"https://www.youtube.com/watch?v=aaaaaaaaaaa"})

	result, err := driver.ProcessInput(context.Background(), input)
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if result.Success != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if _, err := os.Stat(filepath.Join(cfg.VideosDir(), "aaaaaaaaaaa", "segments")); !os.IsNotExist(err) {
		t.Fatal("segments directory created despite being disabled")
	}
}

func TestProcessInputResolveFailureRecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	driver := newDriver(t, cfg, &scriptedAdapter{})
	input := writeInput(t, cfg, "urls.txt", []string{"definitely not a video ref !!"})

	result, err := driver.ProcessInput(context.Background(), input)
	if err != nil {
		t.Fatalf("ProcessInput: %v", err)
	}
	if result.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
}

func channelListing(ids ...string) string {
	entries := make([]string, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, fmt.Sprintf(`{"id":%q,"title":"Video %s"}`, id, id))
	}
	return `{"id":"UCabc","title":"Creator - Videos","uploader":"Creator","entries":[` +
		strings.Join(entries, ",") + `]}`
}

func TestProcessChannelsWithOneAuthFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapter := &scriptedAdapter{
		listing:  channelListing("aaaaaaaaaaa", "bbbbbbbbbbb", "ccccccccccc"),
		authFail: map[string]bool{"bbbbbbbbbbb": true},
	}
	driver := newDriver(t, cfg, adapter)
	input := writeInput(t, cfg, "channels.txt", []string{"@creator"})

	result, err := driver.ProcessChannels(context.Background(), input)
	if err != nil {
		t.Fatalf("ProcessChannels: %v", err)
	}
	if result.Success != 2 || result.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", result)
	}
	if result.ExitCode() == 0 {
		t.Fatal("expected non-zero exit")
	}
	if result.Summary.ChannelsTotal != 1 || result.Summary.ChannelsFailed != 0 {
		t.Fatalf("unexpected channel summary: %+v", result.Summary)
	}

	slugDir := filepath.Join(cfg.ChannelsDir(), "0001_creator")
	for _, artifact := range []string{
		filepath.Join(slugDir, "videos.txt"),
		filepath.Join(slugDir, "metadata.json"),
	} {
		if _, err := os.Stat(artifact); err != nil {
			t.Fatalf("missing channel artifact %s: %v", artifact, err)
		}
	}

	records, _, err := manifest.ReadRecords(filepath.Join(cfg.ManifestsDir(), "channel_records.jsonl"))
	if err != nil {
		t.Fatalf("read channel records: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d channel records, want 3", len(records))
	}
}

func TestProcessChannelsReusesExpansionSnapshot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	adapter := &scriptedAdapter{listing: channelListing("aaaaaaaaaaa")}
	input := writeInput(t, cfg, "channels.txt", []string{"@creator"})

	if _, err := newDriver(t, cfg, adapter).ProcessChannels(context.Background(), input); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if adapter.listCall != 1 {
		t.Fatalf("expected one listing call, got %d", adapter.listCall)
	}

	result, err := newDriver(t, cfg, adapter).ProcessChannels(context.Background(), input)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if adapter.listCall != 1 {
		t.Fatalf("snapshot not reused: %d listing calls", adapter.listCall)
	}
	if result.Skipped != 1 {
		t.Fatalf("unexpected second-run counts: %+v", result)
	}
}
