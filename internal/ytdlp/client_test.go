package ytdlp_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechset/internal/cookies"
	"speechset/internal/services"
	"speechset/internal/ytdlp"
)

// stubExecutor replays canned responses per invocation and records arguments.
type stubExecutor struct {
	responses []stubResponse
	calls     [][]string
}

type stubResponse struct {
	stdout string
	stderr string
	err    error
}

func (s *stubExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	s.calls = append(s.calls, append([]string(nil), args...))
	if len(s.responses) == 0 {
		return nil, nil, nil
	}
	resp := s.responses[0]
	if len(s.responses) > 1 {
		s.responses = s.responses[1:]
	}
	return []byte(resp.stdout), []byte(resp.stderr), resp.err
}

func newClient(exec ytdlp.Executor) *ytdlp.Client {
	return ytdlp.New("yt-dlp", cookies.Credentials{}, nil, ytdlp.WithExecutor(exec))
}

func TestProbeParsesMetadata(t *testing.T) {
	exec := &stubExecutor{responses: []stubResponse{{
		stdout: `{"id":"dQw4w9WgXcQ","title":"Sample","channel":"Creator","duration":212.0,"upload_date":"20091025","language":"en"}`,
	}}}
	info, err := newClient(exec).Probe(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.ID != "dQw4w9WgXcQ" || info.Title != "Sample" || info.DurationSeconds != 212.0 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if len(exec.calls) != 1 || exec.calls[0][0] != "--skip-download" {
		t.Fatalf("unexpected args: %v", exec.calls)
	}
}

func TestProbeResolvesFirstPlaylistEntry(t *testing.T) {
	exec := &stubExecutor{responses: []stubResponse{{
		stdout: `{"entries":[{"id":"aaaaaaaaaaa","title":"First"},{"id":"bbbbbbbbbbb"}]}`,
	}}}
	info, err := newClient(exec).Probe(context.Background(), "url")
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if info.ID != "aaaaaaaaaaa" {
		t.Fatalf("expected first entry, got %+v", info)
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		stderr string
		want   error
	}{
		{"ERROR: Sign in to confirm you're not a bot", services.ErrAuth},
		{"ERROR: Private video. Sign in if you've been granted access", services.ErrAuth},
		{"ERROR: Requested format is not available", services.ErrNoFormats},
		{"ERROR: Unable to extract player response", services.ErrExtractor},
	}
	for _, tc := range cases {
		exec := &stubExecutor{responses: []stubResponse{{stderr: tc.stderr, err: errors.New("exit status 1")}}}
		_, err := newClient(exec).Probe(context.Background(), "url")
		if !errors.Is(err, tc.want) {
			t.Fatalf("stderr %q classified as %v, want %v", tc.stderr, err, tc.want)
		}
	}
}

func TestDownloadAudioSelectorFallback(t *testing.T) {
	dir := t.TempDir()
	fail := stubResponse{stderr: "ERROR: Requested format is not available", err: errors.New("exit status 1")}
	exec := &stubExecutor{responses: []stubResponse{fail, fail, {stdout: ""}}}

	// Third selector succeeds; fabricate its artifact since the stub does not
	// touch the filesystem.
	client := ytdlp.New("yt-dlp", cookies.Credentials{}, nil, ytdlp.WithExecutor(&artifactExecutor{
		stubExecutor: exec,
		writeOnCall:  3,
		path:         filepath.Join(dir, "source.mp3"),
	}))

	result, err := client.DownloadAudio(context.Background(), ytdlp.AudioRequest{
		URL:       "https://youtu.be/aaaaaaaaaaa",
		OutputDir: dir,
		Format:    "mp3",
		Quality:   "192",
		Selectors: []string{"bestaudio", "bestaudio/best", "best"},
	})
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	if result.Selector != "best" {
		t.Fatalf("winning selector = %q, want %q", result.Selector, "best")
	}
	if result.Path != filepath.Join(dir, "source.mp3") {
		t.Fatalf("unexpected path %q", result.Path)
	}
	if len(exec.calls) != 3 {
		t.Fatalf("expected 3 invocations, got %d", len(exec.calls))
	}
}

// artifactExecutor wraps stubExecutor, creating the audio artifact on the
// n-th call to mimic a successful extraction.
type artifactExecutor struct {
	*stubExecutor
	writeOnCall int
	path        string
}

func (a *artifactExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	stdout, stderr, err := a.stubExecutor.Run(ctx, binary, args)
	if err == nil && len(a.stubExecutor.calls) == a.writeOnCall {
		if werr := os.WriteFile(a.path, []byte("audio"), 0o644); werr != nil {
			return nil, nil, werr
		}
	}
	return stdout, stderr, err
}

func TestDownloadAudioAllSelectorsFailIsNoFormats(t *testing.T) {
	fail := stubResponse{stderr: "ERROR: Requested format is not available", err: errors.New("exit status 1")}
	exec := &stubExecutor{responses: []stubResponse{fail, fail, fail}}
	_, err := newClient(exec).DownloadAudio(context.Background(), ytdlp.AudioRequest{
		URL:       "url",
		OutputDir: t.TempDir(),
		Format:    "mp3",
		Quality:   "192",
		Selectors: []string{"a", "b", "c"},
	})
	if !errors.Is(err, services.ErrNoFormats) {
		t.Fatalf("expected formats-unavailable, got %v", err)
	}
}

func TestDownloadAudioAuthFailureStopsChain(t *testing.T) {
	exec := &stubExecutor{responses: []stubResponse{{
		stderr: "ERROR: Sign in to confirm you're not a bot",
		err:    errors.New("exit status 1"),
	}}}
	_, err := newClient(exec).DownloadAudio(context.Background(), ytdlp.AudioRequest{
		URL:       "url",
		OutputDir: t.TempDir(),
		Format:    "mp3",
		Quality:   "192",
		Selectors: []string{"a", "b", "c"},
	})
	if !errors.Is(err, services.ErrAuth) {
		t.Fatalf("expected auth failure, got %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("auth failure should stop the chain, got %d calls", len(exec.calls))
	}
}

func TestDownloadAudioSkipsExistingArtifact(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "source.mp3"), []byte("audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	exec := &stubExecutor{}
	result, err := newClient(exec).DownloadAudio(context.Background(), ytdlp.AudioRequest{
		URL:       "url",
		OutputDir: dir,
		Format:    "mp3",
		Quality:   "192",
		Selectors: []string{"bestaudio"},
	})
	if err != nil {
		t.Fatalf("DownloadAudio: %v", err)
	}
	if !result.Skipped {
		t.Fatal("expected skip for existing artifact")
	}
	if len(exec.calls) != 0 {
		t.Fatalf("expected zero invocations, got %d", len(exec.calls))
	}
}

func TestListChannel(t *testing.T) {
	listing := `{"id":"UCabc","title":"Creator - Videos","uploader":"Creator","entries":[` +
		`{"id":"aaaaaaaaaaa","title":"Newest","duration":100},` +
		`{"id":"bbbbbbbbbbb","title":"Middle","duration":200},` +
		`{"id":"ccccccccccc","title":"Oldest","duration":300}]}`

	exec := &stubExecutor{responses: []stubResponse{{stdout: listing}}}
	got, err := newClient(exec).ListChannel(context.Background(), ytdlp.ListRequest{
		Target: "https://www.youtube.com/@creator",
		SortBy: ytdlp.SortNewest,
	})
	if err != nil {
		t.Fatalf("ListChannel: %v", err)
	}
	if len(got.Entries) != 3 || got.Entries[0].ID != "aaaaaaaaaaa" {
		t.Fatalf("unexpected entries: %+v", got.Entries)
	}
	joined := strings.Join(exec.calls[0], " ")
	if !strings.Contains(joined, "--flat-playlist") || !strings.Contains(joined, "@creator/videos") {
		t.Fatalf("unexpected args: %s", joined)
	}
}

func TestListChannelOldestReversesAndCaps(t *testing.T) {
	listing := `{"id":"UCabc","entries":[` +
		`{"id":"aaaaaaaaaaa"},{"id":"bbbbbbbbbbb"},{"id":"ccccccccccc"}]}`
	exec := &stubExecutor{responses: []stubResponse{{stdout: listing}}}
	got, err := newClient(exec).ListChannel(context.Background(), ytdlp.ListRequest{
		Target:    "https://www.youtube.com/@creator",
		SortBy:    ytdlp.SortOldest,
		MaxVideos: 2,
	})
	if err != nil {
		t.Fatalf("ListChannel: %v", err)
	}
	if len(got.Entries) != 2 || got.Entries[0].ID != "ccccccccccc" || got.Entries[1].ID != "bbbbbbbbbbb" {
		t.Fatalf("unexpected entries: %+v", got.Entries)
	}
	if joined := strings.Join(exec.calls[0], " "); strings.Contains(joined, "--playlist-items") {
		t.Fatalf("oldest ordering must not cap server side: %s", joined)
	}
}

func TestListChannelPopularAppendsViewParam(t *testing.T) {
	exec := &stubExecutor{responses: []stubResponse{{stdout: `{"id":"UCabc","entries":[]}`}}}
	if _, err := newClient(exec).ListChannel(context.Background(), ytdlp.ListRequest{
		Target: "https://www.youtube.com/@creator",
		SortBy: ytdlp.SortPopular,
	}); err != nil {
		t.Fatalf("ListChannel: %v", err)
	}
	url := exec.calls[0][len(exec.calls[0])-1]
	if !strings.HasSuffix(url, "/videos?view=0&sort=p") {
		t.Fatalf("unexpected popular URL %q", url)
	}
}

func TestParseJSON3(t *testing.T) {
	data := []byte(`{"events":[` +
		`{"tStartMs":0,"dDurationMs":1000},` +
		`{"tStartMs":1500,"dDurationMs":2500,"segs":[{"utf8":"hello "},{"utf8":"world"}]},` +
		`{"tStartMs":5000,"dDurationMs":100,"segs":[{"utf8":"\n"}]}]}`)
	entries, err := ytdlp.ParseJSON3(data)
	if err != nil {
		t.Fatalf("ParseJSON3: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1: %+v", len(entries), entries)
	}
	if entries[0].Text != "hello world" || entries[0].Start != 1.5 || entries[0].Duration != 2.5 {
		t.Fatalf("unexpected entry: %+v", entries[0])
	}
}

func TestCheckAccessFormatsUnavailable(t *testing.T) {
	probe := stubResponse{stdout: `{"id":"aaaaaaaaaaa","title":"Sample"}`}
	fail := stubResponse{stderr: "ERROR: Requested format is not available", err: errors.New("exit status 1")}
	exec := &stubExecutor{responses: []stubResponse{probe, fail, fail}}

	result, err := newClient(exec).CheckAccess(context.Background(), "url", []string{"bestaudio", "best"})
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if !result.ProbeOK || result.FormatsOK {
		t.Fatalf("expected probe-ok formats-unavailable, got %+v", result)
	}
	if len(result.Failures) != 2 {
		t.Fatalf("expected 2 selector failures, got %+v", result.Failures)
	}
}

func TestCheckAccessFirstSelectorWins(t *testing.T) {
	probe := stubResponse{stdout: `{"id":"aaaaaaaaaaa","title":"Sample"}`}
	exec := &stubExecutor{responses: []stubResponse{probe, {}}}
	result, err := newClient(exec).CheckAccess(context.Background(), "url", []string{"bestaudio", "best"})
	if err != nil {
		t.Fatalf("CheckAccess: %v", err)
	}
	if !result.FormatsOK || result.Selector != "bestaudio" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(exec.calls) != 2 {
		t.Fatalf("expected probe + one selector, got %d calls", len(exec.calls))
	}
}

func TestCredentialArgsPrepended(t *testing.T) {
	exec := &stubExecutor{responses: []stubResponse{{stdout: `{"id":"aaaaaaaaaaa"}`}}}
	creds := cookies.Credentials{CookiesFile: "/tmp/cookies.txt"}
	client := ytdlp.New("yt-dlp", creds, nil, ytdlp.WithExecutor(exec))
	if _, err := client.Probe(context.Background(), "url"); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if exec.calls[0][0] != "--cookies" || exec.calls[0][1] != "/tmp/cookies.txt" {
		t.Fatalf("credential args missing: %v", exec.calls[0])
	}
}

func TestFetchTranscriptsMissingIsTranscriptError(t *testing.T) {
	client := newClient(&stubExecutor{})
	_, err := client.FetchTranscripts(context.Background(), ytdlp.TranscriptRequest{
		Info:      &ytdlp.VideoInfo{ID: "aaaaaaaaaaa"},
		OutputDir: t.TempDir(),
	})
	if !errors.Is(err, services.ErrTranscript) {
		t.Fatalf("expected transcript error, got %v", err)
	}
}

func TestFetchTranscriptsPrefersManualDefault(t *testing.T) {
	dir := t.TempDir()
	info := &ytdlp.VideoInfo{
		ID:       "aaaaaaaaaaa",
		Language: "en",
		Subtitles: map[string][]ytdlp.CaptionTrack{
			"en": {{Ext: "json3"}},
		},
		AutomaticCaptions: map[string][]ytdlp.CaptionTrack{
			"en-orig": {{Ext: "json3"}},
		},
	}
	client := ytdlp.New("yt-dlp", cookies.Credentials{}, nil, ytdlp.WithExecutor(&subtitleExecutor{}))
	result, err := client.FetchTranscripts(context.Background(), ytdlp.TranscriptRequest{
		Info:         info,
		OutputDir:    dir,
		AutoLanguage: "en",
	})
	if err != nil {
		t.Fatalf("FetchTranscripts: %v", err)
	}
	if result.DefaultPath != filepath.Join(dir, "default.json") {
		t.Fatalf("unexpected default path %q", result.DefaultPath)
	}
	if result.AutoMode != ytdlp.AutoModeGenerated || result.AutoPath != filepath.Join(dir, "auto_en.json") {
		t.Fatalf("unexpected auto resolution: %+v", result)
	}
	for _, path := range []string{result.DefaultPath, result.AutoPath} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("missing artifact %s: %v", path, err)
		}
	}
}

// subtitleExecutor fabricates a json3 subtitle file at the -o template
// location for every invocation.
type subtitleExecutor struct{}

func (subtitleExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, []byte, error) {
	var template, lang string
	for i, arg := range args {
		if arg == "-o" && i+1 < len(args) {
			template = args[i+1]
		}
		if arg == "--sub-langs" && i+1 < len(args) {
			lang = args[i+1]
		}
	}
	if template == "" {
		return nil, nil, fmt.Errorf("no output template in args %v", args)
	}
	path := strings.Replace(template, "%(ext)s", lang+".json3", 1)
	payload := `{"events":[{"tStartMs":0,"dDurationMs":1000,"segs":[{"utf8":"hello"}]}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}
