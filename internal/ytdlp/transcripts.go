package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"speechset/internal/fileutil"
	"speechset/internal/logging"
	"speechset/internal/services"
)

// Entry is one transcript line in the canonical on-disk form.
type Entry struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
}

// TrackInfo describes one stored transcript rendition.
type TrackInfo struct {
	LanguageCode string `json:"language_code"`
	Generated    bool   `json:"is_generated"`
	Path         string `json:"path"`
}

// TranscriptRequest configures transcript retrieval for one video.
type TranscriptRequest struct {
	Info         *VideoInfo
	OutputDir    string
	AutoLanguage string
	IncludeAll   bool
	Overwrite    bool
}

// TranscriptResult summarizes what was stored.
type TranscriptResult struct {
	DefaultPath  string      `json:"default_path,omitempty"`
	AutoPath     string      `json:"auto_language_path,omitempty"`
	AutoLanguage string      `json:"auto_language_code,omitempty"`
	AutoMode     string      `json:"auto_language_mode,omitempty"`
	Available    []TrackInfo `json:"available,omitempty"`
}

// Auto-track resolution modes recorded in the result.
const (
	AutoModeGenerated = "generated"
	AutoModeDirect    = "direct"
	AutoModeDetected  = "detected_generated"
	AutoModeMissing   = "missing"
)

// FetchTranscripts stores transcript renditions under the output directory:
// default.json prefers a manual track, the auto track follows the configured
// target language or falls back to the detected speech-recognition track, and
// include-all additionally dumps manual/<code>.json and auto/<code>.json for
// every native track. A video with no usable transcript returns an
// ErrTranscript-classified error; the caller records the unit as partial.
func (c *Client) FetchTranscripts(ctx context.Context, req TranscriptRequest) (*TranscriptResult, error) {
	manual := sortedLanguages(req.Info.Subtitles)
	generated := nativeGeneratedLanguages(req.Info)
	result := &TranscriptResult{}

	defaultTrack, defaultGenerated := pickDefaultTrack(req.Info, manual, generated)
	if defaultTrack != "" {
		path := filepath.Join(req.OutputDir, "default.json")
		if err := c.storeTrack(ctx, req, defaultTrack, defaultGenerated, path); err != nil {
			return nil, err
		}
		result.DefaultPath = path
	}

	if err := c.resolveAutoTrack(ctx, req, generated, result); err != nil {
		return nil, err
	}

	if req.IncludeAll {
		for _, code := range manual {
			path := filepath.Join(req.OutputDir, "manual", code+".json")
			if err := c.storeTrack(ctx, req, code, false, path); err != nil {
				c.logger.Warn("manual track skipped", logging.String("language", code), logging.Error(err))
				continue
			}
			result.Available = append(result.Available, TrackInfo{LanguageCode: code, Path: path})
		}
		for _, code := range generated {
			path := filepath.Join(req.OutputDir, "auto", strings.TrimSuffix(code, "-orig")+".json")
			if err := c.storeTrack(ctx, req, code, true, path); err != nil {
				c.logger.Warn("auto track skipped", logging.String("language", code), logging.Error(err))
				continue
			}
			result.Available = append(result.Available, TrackInfo{LanguageCode: code, Generated: true, Path: path})
		}
	}

	if result.DefaultPath == "" && result.AutoPath == "" {
		return result, services.Wrap(services.ErrTranscript, "ytdlp", "transcripts",
			"no usable transcript for video "+req.Info.ID, nil)
	}
	return result, nil
}

// resolveAutoTrack fills the auto-language slot: the configured target
// language when set, otherwise the detected native speech-recognition track.
func (c *Client) resolveAutoTrack(ctx context.Context, req TranscriptRequest, generated []string, result *TranscriptResult) error {
	if req.AutoLanguage != "" {
		result.AutoLanguage = req.AutoLanguage
		result.AutoMode = AutoModeMissing
		path := filepath.Join(req.OutputDir, "auto_"+req.AutoLanguage+".json")
		if code, ok := matchLanguage(req.Info.AutomaticCaptions, req.AutoLanguage); ok {
			if err := c.storeTrack(ctx, req, code, true, path); err != nil {
				return err
			}
			result.AutoPath = path
			result.AutoMode = AutoModeGenerated
			return nil
		}
		if code, ok := matchLanguage(req.Info.Subtitles, req.AutoLanguage); ok {
			if err := c.storeTrack(ctx, req, code, false, path); err != nil {
				return err
			}
			result.AutoPath = path
			result.AutoMode = AutoModeDirect
		}
		return nil
	}

	result.AutoMode = AutoModeMissing
	if len(generated) == 0 {
		return nil
	}
	code := strings.TrimSuffix(generated[0], "-orig")
	path := filepath.Join(req.OutputDir, "auto_detected_"+code+".json")
	if err := c.storeTrack(ctx, req, generated[0], true, path); err != nil {
		return err
	}
	result.AutoPath = path
	result.AutoLanguage = code
	result.AutoMode = AutoModeDetected
	return nil
}

// storeTrack downloads one subtitle track as json3 and writes the canonical
// entry form to path. Existing files win unless overwrite is set.
func (c *Client) storeTrack(ctx context.Context, req TranscriptRequest, code string, generated bool, path string) error {
	if !req.Overwrite && fileutil.Exists(path) {
		return nil
	}
	entries, err := c.downloadTrack(ctx, req.Info, code, generated)
	if err != nil {
		return err
	}
	if err := fileutil.WriteJSON(path, entries); err != nil {
		return services.Wrap(services.ErrTranscript, "ytdlp", "transcripts", "store "+filepath.Base(path), err)
	}
	return nil
}

// downloadTrack fetches a single json3 subtitle file into a scratch directory
// and converts it to entries.
func (c *Client) downloadTrack(ctx context.Context, info *VideoInfo, code string, generated bool) ([]Entry, error) {
	scratch, err := os.MkdirTemp("", "speechset-subs-")
	if err != nil {
		return nil, fmt.Errorf("create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	subsFlag := "--write-subs"
	if generated {
		subsFlag = "--write-auto-subs"
	}
	args := []string{
		"--skip-download",
		"--no-playlist",
		"--no-warnings",
		subsFlag,
		"--sub-format", "json3",
		"--sub-langs", code,
		"-o", filepath.Join(scratch, "track.%(ext)s"),
		videoURL(info),
	}
	if _, _, err := c.run(ctx, "transcripts", args); err != nil {
		return nil, err
	}

	matches, _ := filepath.Glob(filepath.Join(scratch, "track.*.json3"))
	if len(matches) == 0 {
		return nil, services.Wrap(services.ErrTranscript, "ytdlp", "transcripts",
			fmt.Sprintf("no %s subtitle produced for %s", code, info.ID), nil)
	}
	sort.Strings(matches)
	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, services.Wrap(services.ErrTranscript, "ytdlp", "transcripts", "read subtitle file", err)
	}
	entries, err := ParseJSON3(data)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscript, "ytdlp", "transcripts", "parse subtitle file", err)
	}
	return entries, nil
}

// ParseJSON3 converts the json3 caption event stream into transcript entries,
// dropping window/style events that carry no text.
func ParseJSON3(data []byte) ([]Entry, error) {
	var payload struct {
		Events []struct {
			StartMs    int64 `json:"tStartMs"`
			DurationMs int64 `json:"dDurationMs"`
			Segments   []struct {
				Text string `json:"utf8"`
			} `json:"segs"`
		} `json:"events"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(payload.Events))
	for _, event := range payload.Events {
		var text strings.Builder
		for _, seg := range event.Segments {
			text.WriteString(seg.Text)
		}
		cleaned := strings.TrimSpace(text.String())
		if cleaned == "" {
			continue
		}
		entries = append(entries, Entry{
			Text:     cleaned,
			Start:    float64(event.StartMs) / 1000.0,
			Duration: float64(event.DurationMs) / 1000.0,
		})
	}
	return entries, nil
}

// pickDefaultTrack prefers a manual track (language hint first), falling back
// to the detected generated track.
func pickDefaultTrack(info *VideoInfo, manual, generated []string) (code string, isGenerated bool) {
	if len(manual) > 0 {
		if hint := info.Language; hint != "" {
			if match, ok := matchLanguage(info.Subtitles, hint); ok {
				return match, false
			}
		}
		return manual[0], false
	}
	if len(generated) > 0 {
		return generated[0], true
	}
	return "", false
}

// nativeGeneratedLanguages filters automatic captions down to actual
// speech-recognition tracks, skipping the machine-translated renditions the
// listing also advertises. The "-orig" key marks the native track; the video
// language hint covers listings that omit it.
func nativeGeneratedLanguages(info *VideoInfo) []string {
	var codes []string
	for code := range info.AutomaticCaptions {
		if strings.HasSuffix(code, "-orig") {
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 && info.Language != "" {
		if code, ok := matchLanguage(info.AutomaticCaptions, info.Language); ok {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// matchLanguage finds a track for the wanted language, accepting regional
// variants ("en" matches "en-US") and the "-orig" generated key.
func matchLanguage(tracks map[string][]CaptionTrack, want string) (string, bool) {
	if _, ok := tracks[want]; ok {
		return want, true
	}
	if _, ok := tracks[want+"-orig"]; ok {
		return want + "-orig", true
	}
	var candidates []string
	for code := range tracks {
		if strings.HasPrefix(code, want+"-") {
			candidates = append(candidates, code)
		}
	}
	if len(candidates) == 0 {
		return "", false
	}
	sort.Strings(candidates)
	return candidates[0], true
}

func sortedLanguages(tracks map[string][]CaptionTrack) []string {
	codes := make([]string, 0, len(tracks))
	for code := range tracks {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func videoURL(info *VideoInfo) string {
	if info.WebpageURL != "" {
		return info.WebpageURL
	}
	return "https://www.youtube.com/watch?v=" + info.ID
}
