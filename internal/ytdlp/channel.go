package ytdlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"speechset/internal/services"
)

// ChannelEntry is one video in a channel listing.
type ChannelEntry struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration"`
	ViewCount       int64   `json:"view_count"`
}

// ChannelListing is the flat-playlist expansion of one channel.
type ChannelListing struct {
	ID       string
	Title    string
	Uploader string
	Entries  []ChannelEntry
}

// ListRequest configures a channel expansion.
type ListRequest struct {
	Target    string
	MaxVideos int
	SortBy    string
}

// Sort orders accepted by ListChannel.
const (
	SortNewest  = "newest"
	SortOldest  = "oldest"
	SortPopular = "popular"
)

// ListChannel expands a channel into its ordered video entries using a
// flat-playlist probe. Popularity ordering rides on the videos-tab view
// parameter; oldest reverses the default newest-first listing client side.
func (c *Client) ListChannel(ctx context.Context, req ListRequest) (*ChannelListing, error) {
	url := channelVideosURL(req.Target)
	if req.SortBy == SortPopular {
		url += "?view=0&sort=p"
	}

	args := []string{
		"--flat-playlist",
		"-J",
		"--no-warnings",
	}
	// Oldest-first needs the full listing before the cap applies; the flat
	// listing always arrives newest first.
	if req.MaxVideos > 0 && req.SortBy != SortOldest {
		args = append(args, "--playlist-items", fmt.Sprintf("1:%d", req.MaxVideos))
	}
	args = append(args, url)

	stdout, _, err := c.run(ctx, "list-channel", args)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ID       string         `json:"id"`
		Title    string         `json:"title"`
		Uploader string         `json:"uploader"`
		Entries  []ChannelEntry `json:"entries"`
	}
	if err := json.Unmarshal(stdout, &payload); err != nil {
		return nil, services.Wrap(services.ErrExtractor, "ytdlp", "list-channel", "parse channel listing", err)
	}

	entries := make([]ChannelEntry, 0, len(payload.Entries))
	for _, entry := range payload.Entries {
		if entry.ID == "" {
			continue
		}
		entries = append(entries, entry)
	}
	if req.SortBy == SortOldest {
		for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
			entries[i], entries[j] = entries[j], entries[i]
		}
	}
	if req.MaxVideos > 0 && len(entries) > req.MaxVideos {
		entries = entries[:req.MaxVideos]
	}

	return &ChannelListing{
		ID:       payload.ID,
		Title:    payload.Title,
		Uploader: payload.Uploader,
		Entries:  entries,
	}, nil
}

// channelVideosURL points the target at its videos tab.
func channelVideosURL(target string) string {
	trimmed := strings.TrimSuffix(target, "/")
	if strings.HasSuffix(trimmed, "/videos") {
		return trimmed
	}
	return trimmed + "/videos"
}
