package segmenter

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"speechset/internal/ytdlp"
)

// Track is one transcript rendition feeding segmentation.
type Track struct {
	Key          string
	Path         string
	LanguageCode string
	Generated    *bool
}

// TracksFromTranscripts maps a transcript retrieval summary onto the track
// set used for segmentation. Missing files are dropped; duplicate keys get a
// numeric suffix.
func TracksFromTranscripts(result *ytdlp.TranscriptResult) []Track {
	var tracks []Track
	seen := make(map[string]struct{})

	add := func(key, path, languageCode string, generated *bool) {
		if path == "" {
			return
		}
		if _, err := os.Stat(path); err != nil {
			return
		}
		unique := safeTrackKey(key)
		for counter := 2; ; counter++ {
			if _, ok := seen[unique]; !ok {
				break
			}
			unique = fmt.Sprintf("%s_%d", safeTrackKey(key), counter)
		}
		seen[unique] = struct{}{}
		tracks = append(tracks, Track{Key: unique, Path: path, LanguageCode: languageCode, Generated: generated})
	}

	add("default", result.DefaultPath, "", nil)

	autoCode := result.AutoLanguage
	if autoCode == "" {
		autoCode = "unknown"
	}
	generated := true
	add("auto_target_"+autoCode, result.AutoPath, result.AutoLanguage, &generated)

	for _, info := range result.Available {
		kind := "manual"
		if info.Generated {
			kind = "auto"
		}
		isGenerated := info.Generated
		add(kind+"_"+info.LanguageCode, info.Path, info.LanguageCode, &isGenerated)
	}
	return tracks
}

func safeTrackKey(value string) string {
	var b strings.Builder
	prevUnderscore := false
	for _, r := range strings.TrimSpace(value) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '_', r == '.', r == '-':
			b.WriteRune(r)
			prevUnderscore = false
		default:
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	key := strings.Trim(b.String(), "_")
	if key == "" {
		return "track"
	}
	return key
}

// loadEntries reads a transcript file in the canonical entry form. Malformed
// files yield an empty track rather than an error.
func loadEntries(path string) []ytdlp.Entry {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var raw []ytdlp.Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	entries := make([]ytdlp.Entry, 0, len(raw))
	for _, entry := range raw {
		if entry.Duration < 0 {
			entry.Duration = 0
		}
		entry.Text = strings.TrimSpace(entry.Text)
		entries = append(entries, entry)
	}
	return entries
}

// collectWindow gathers the text of entries overlapping [start, end).
func collectWindow(entries []ytdlp.Entry, start, end float64) (string, []int) {
	var texts []string
	var matched []int
	for idx, entry := range entries {
		entryStart := entry.Start
		entryEnd := entry.Start + entry.Duration
		if entryEnd <= start || entryStart >= end {
			continue
		}
		if entry.Text == "" {
			continue
		}
		texts = append(texts, entry.Text)
		matched = append(matched, idx)
	}
	return strings.TrimSpace(strings.Join(texts, " ")), matched
}
