package ytdlp

import (
	"context"
	"encoding/json"

	"speechset/internal/services"
)

// CaptionTrack is one downloadable subtitle rendition from a metadata probe.
type CaptionTrack struct {
	Ext  string `json:"ext"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// VideoInfo is the normalized metadata for a single video.
type VideoInfo struct {
	ID                string                    `json:"id"`
	Title             string                    `json:"title"`
	Channel           string                    `json:"channel"`
	ChannelID         string                    `json:"channel_id"`
	Uploader          string                    `json:"uploader"`
	UploaderID        string                    `json:"uploader_id"`
	DurationSeconds   float64                   `json:"duration"`
	UploadDate        string                    `json:"upload_date"`
	Language          string                    `json:"language"`
	WebpageURL        string                    `json:"webpage_url"`
	ViewCount         int64                     `json:"view_count"`
	Subtitles         map[string][]CaptionTrack `json:"subtitles"`
	AutomaticCaptions map[string][]CaptionTrack `json:"automatic_captions"`
}

// Probe fetches metadata without downloading media. Playlist-shaped URLs
// resolve to their first entry.
func (c *Client) Probe(ctx context.Context, url string) (*VideoInfo, error) {
	args := []string{
		"--skip-download",
		"--dump-single-json",
		"--no-playlist",
		"--no-warnings",
		url,
	}
	stdout, _, err := c.run(ctx, "probe", args)
	if err != nil {
		return nil, err
	}

	var info VideoInfo
	if err := json.Unmarshal(stdout, &info); err != nil {
		return nil, services.Wrap(services.ErrExtractor, "ytdlp", "probe", "parse metadata output", err)
	}
	if info.ID == "" {
		var wrapper struct {
			Entries []VideoInfo `json:"entries"`
		}
		if err := json.Unmarshal(stdout, &wrapper); err == nil && len(wrapper.Entries) > 0 {
			info = wrapper.Entries[0]
		}
	}
	if info.ID == "" {
		return nil, services.Wrap(services.ErrExtractor, "ytdlp", "probe", "no video metadata in output for "+url, nil)
	}
	return &info, nil
}
