package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"speechset/internal/fileutil"
	"speechset/internal/logging"
	"speechset/internal/manifest"
	"speechset/internal/pool"
	"speechset/internal/resolver"
	"speechset/internal/ytdlp"
)

// channelExpansion is the outcome of expanding one channel reference.
type channelExpansion struct {
	record   manifest.ChannelRecord
	videoIDs []string
}

// channelMetadata is the channels/<slug>/metadata.json bundle.
type channelMetadata struct {
	SourceRef   string    `json:"source_ref"`
	ChannelSlug string    `json:"channel_slug"`
	Target      string    `json:"target_url"`
	ChannelID   string    `json:"channel_id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Uploader    string    `json:"uploader,omitempty"`
	VideoCount  int       `json:"video_count"`
	SortBy      string    `json:"sort_by,omitempty"`
	MaxVideos   int       `json:"max_videos,omitempty"`
	Reused      bool      `json:"reused,omitempty"`
	Error       string    `json:"error,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// ProcessChannels runs the channel-first flow over the references in
// inputPath: expansion pool, flatten and dedupe, then the same per-unit path
// as the URL-first flow against the channel_* manifest streams.
func (d *Driver) ProcessChannels(ctx context.Context, inputPath string) (*RunResult, error) {
	refs, err := resolver.LoadRefs(inputPath, "channels")
	if err != nil {
		return nil, err
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	d.snapshotInput("channel_input", refs)

	store, err := d.openStore(manifest.FlowChannels)
	if err != nil {
		return nil, err
	}

	channels, refFailures := resolver.ResolveChannels(refs)
	for _, failure := range refFailures {
		exp := manifest.ChannelRecord{
			ChannelRef: failure.Ref,
			Status:     manifest.OutcomeFailed,
			Error:      failure.Err.Error(),
			FetchedAt:  time.Now().UTC(),
		}
		if err := store.AppendExpansion(exp); err != nil {
			d.logger.Warn("record channel resolve failure", logging.Error(err))
		}
	}

	d.logger.Info("channel expansion starting",
		logging.String(logging.FieldRunID, d.runID),
		logging.Int("channels", len(channels)),
		logging.Int("channel_workers", d.runtime.ChannelWorkers),
	)

	expansions, err := pool.Run(ctx, channels, d.runtime.ChannelWorkers, func(ctx context.Context, _ int, channel resolver.Channel) (channelExpansion, error) {
		exp := d.expandChannel(ctx, channel)
		if err := store.AppendExpansion(exp.record); err != nil {
			return exp, err
		}
		d.logger.Info("channel expanded",
			logging.String(logging.FieldChannel, channel.Slug),
			logging.String(logging.FieldOutcome, string(exp.record.Status)),
			logging.Int("videos", len(exp.videoIDs)),
		)
		return exp, nil
	})
	if err != nil {
		return nil, err
	}

	var units []resolver.Unit
	seen := make(map[string]struct{})
	for _, res := range expansions {
		if res.Err != nil {
			return nil, fmt.Errorf("record channel expansion: %w", res.Err)
		}
		for _, id := range res.Value.videoIDs {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			units = append(units, resolver.Unit{
				VideoID: id,
				URL:     "https://www.youtube.com/watch?v=" + id,
				Source:  res.Value.record.ChannelRef,
			})
		}
	}

	urls := make([]string, 0, len(units))
	for _, unit := range units {
		urls = append(urls, unit.URL)
	}
	d.snapshotInput("channel_video_urls", urls)

	if err := d.processUnits(ctx, store, units); err != nil {
		return nil, err
	}
	return d.finalize(ctx, store)
}

// expandChannel resolves one channel's video list, reusing an existing
// snapshot unless overwrite is set. Expansion failures are per-channel
// outcomes; siblings proceed.
func (d *Driver) expandChannel(ctx context.Context, channel resolver.Channel) channelExpansion {
	channelRoot := filepath.Join(d.cfg.ChannelsDir(), channel.Slug)
	videosPath := filepath.Join(channelRoot, "videos.txt")
	metadataPath := filepath.Join(channelRoot, "metadata.json")
	record := manifest.ChannelRecord{
		ChannelRef:  channel.Ref,
		ChannelSlug: channel.Slug,
		Status:      manifest.OutcomeFailed,
		FetchedAt:   time.Now().UTC(),
	}

	if !d.cfg.Overwrite && fileutil.Exists(videosPath) {
		ids, err := fileutil.ReadLines(videosPath)
		if err == nil {
			record.Status = manifest.OutcomeSuccess
			record.VideoCount = len(ids)
			record.Reused = true
			return channelExpansion{record: record, videoIDs: ids}
		}
		d.logger.Warn("channel snapshot unreadable; refetching",
			logging.String(logging.FieldChannel, channel.Slug),
			logging.Error(err),
		)
	}

	listing, err := d.client.ListChannel(ctx, ytdlp.ListRequest{
		Target:    channel.Target,
		MaxVideos: d.cfg.Channels.MaxVideos,
		SortBy:    d.cfg.Channels.SortBy,
	})
	if err != nil {
		record.Error = err.Error()
		meta := channelMetadata{
			SourceRef:   channel.Ref,
			ChannelSlug: channel.Slug,
			Target:      channel.Target,
			Error:       err.Error(),
			FetchedAt:   record.FetchedAt,
		}
		if werr := fileutil.WriteJSON(metadataPath, meta); werr != nil {
			d.logger.Warn("write channel metadata", logging.Error(werr))
		}
		return channelExpansion{record: record}
	}

	ids := make([]string, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		ids = append(ids, entry.ID)
	}
	if err := fileutil.WriteLines(videosPath, ids); err != nil {
		record.Error = err.Error()
		return channelExpansion{record: record}
	}
	meta := channelMetadata{
		SourceRef:   channel.Ref,
		ChannelSlug: channel.Slug,
		Target:      channel.Target,
		ChannelID:   listing.ID,
		Title:       listing.Title,
		Uploader:    listing.Uploader,
		VideoCount:  len(ids),
		SortBy:      d.cfg.Channels.SortBy,
		MaxVideos:   d.cfg.Channels.MaxVideos,
		FetchedAt:   record.FetchedAt,
	}
	if err := fileutil.WriteJSON(metadataPath, meta); err != nil {
		d.logger.Warn("write channel metadata", logging.Error(err))
	}

	record.Status = manifest.OutcomeSuccess
	record.VideoCount = len(ids)
	return channelExpansion{record: record, videoIDs: ids}
}
