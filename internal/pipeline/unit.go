package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"speechset/internal/fileutil"
	"speechset/internal/language"
	"speechset/internal/logging"
	"speechset/internal/manifest"
	"speechset/internal/resolver"
	"speechset/internal/segmenter"
	"speechset/internal/services"
	"speechset/internal/ytdlp"
)

// transcriptMetadata is the transcripts section of the per-video bundle.
type transcriptMetadata struct {
	DefaultPath  string            `json:"default_path,omitempty"`
	AutoLanguage string            `json:"auto_language,omitempty"`
	AutoMode     string            `json:"auto_language_mode,omitempty"`
	AutoPath     string            `json:"auto_language_path,omitempty"`
	Available    []ytdlp.TrackInfo `json:"available,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// segmentMetadata is the segments section of the per-video bundle.
type segmentMetadata struct {
	Enabled      bool   `json:"enabled"`
	SegmentCount int    `json:"segment_count"`
	SkippedCount int    `json:"skipped_count"`
	FailedCount  int    `json:"failed_count,omitempty"`
	BaseTrack    string `json:"base_track,omitempty"`
	Format       string `json:"segment_format,omitempty"`
	IndexPath    string `json:"index_path,omitempty"`
	SegmentsDir  string `json:"segments_dir,omitempty"`
	Error        string `json:"error,omitempty"`
}

// videoMetadata is the per-video metadata.json bundle.
type videoMetadata struct {
	VideoID         string             `json:"video_id"`
	URL             string             `json:"url"`
	Title           string             `json:"title,omitempty"`
	Channel         string             `json:"channel,omitempty"`
	Uploader        string             `json:"uploader,omitempty"`
	DurationSeconds float64            `json:"duration_seconds,omitempty"`
	UploadDate      string             `json:"upload_date,omitempty"`
	LanguageHint    string             `json:"language_hint,omitempty"`
	AudioPath       string             `json:"audio_path,omitempty"`
	Transcripts     transcriptMetadata `json:"transcripts"`
	Segments        segmentMetadata    `json:"segments"`
	Auth            authMetadata       `json:"auth"`
	CreatedAt       time.Time          `json:"created_at"`
}

type authMetadata struct {
	CookieFileProvided  bool `json:"cookie_file_provided"`
	BrowserSpecProvided bool `json:"cookies_from_browser_provided"`
}

// processUnit runs one video end to end and builds its manifest record. The
// skip decision lives here: one call site, never inside the adapter.
func (d *Driver) processUnit(ctx context.Context, store *manifest.Store, unit resolver.Unit) manifest.Record {
	rec := manifest.Record{
		URL:       unit.URL,
		VideoID:   unit.VideoID,
		Status:    manifest.OutcomeFailed,
		StartedAt: time.Now().UTC(),
	}

	if !d.cfg.Overwrite && store.IsDone(unit.VideoID) {
		rec.Status = manifest.OutcomeSkip
		rec.FinishedAt = time.Now().UTC()
		return rec
	}

	fail := func(err error) manifest.Record {
		rec.Status = manifest.OutcomeFailed
		rec.FailureKind = services.FailureKind(err)
		rec.Error = err.Error()
		rec.FinishedAt = time.Now().UTC()
		return rec
	}

	info, err := d.client.Probe(ctx, unit.URL)
	if err != nil {
		return fail(err)
	}
	rec.Title = info.Title
	rec.Channel = info.Channel
	rec.DurationSeconds = info.DurationSeconds

	root := d.cfg.Paths.DatasetRoot
	videoRoot := filepath.Join(d.cfg.VideosDir(), unit.VideoID)

	audio, err := d.client.DownloadAudio(ctx, ytdlp.AudioRequest{
		URL:       unit.URL,
		OutputDir: filepath.Join(videoRoot, "audio"),
		Format:    d.cfg.Audio.Format,
		Quality:   d.cfg.Audio.Quality,
		Selectors: d.cfg.Audio.FormatSelectors,
		Overwrite: d.cfg.Overwrite,
	})
	if err != nil {
		return fail(err)
	}
	rec.AudioPath = fileutil.ToRelative(audio.Path, root)

	transcripts, transcriptErr := d.client.FetchTranscripts(ctx, ytdlp.TranscriptRequest{
		Info:         info,
		OutputDir:    filepath.Join(videoRoot, "transcripts"),
		AutoLanguage: d.cfg.Transcripts.AutoLanguage,
		IncludeAll:   d.cfg.Transcripts.IncludeAll,
		Overwrite:    d.cfg.Overwrite,
	})
	if transcripts == nil {
		transcripts = &ytdlp.TranscriptResult{AutoMode: ytdlp.AutoModeMissing}
	}
	rec.TranscriptPath = fileutil.ToRelative(transcripts.DefaultPath, root)
	rec.AutoLanguage = transcripts.AutoLanguage
	rec.AutoLanguageMode = transcripts.AutoMode
	if transcripts.AutoLanguage != "" {
		d.logger.Debug("auto transcript selected",
			logging.String(logging.FieldVideoID, unit.VideoID),
			logging.String("language", language.DisplayName(transcripts.AutoLanguage)),
			logging.String("mode", transcripts.AutoMode),
		)
	}

	var segResult *segmenter.Result
	var segmentErr error
	switch {
	case !d.cfg.Segments.Enabled:
	case transcriptErr != nil:
		segmentErr = services.Wrap(services.ErrTranscript, "pipeline", "segments",
			"skipped because transcript fetch failed", nil)
	default:
		segResult, segmentErr = d.seg.Create(ctx, segmenter.Request{
			SourceAudio: audio.Path,
			Tracks:      segmenter.TracksFromTranscripts(transcripts),
			OutputRoot:  filepath.Join(videoRoot, "segments"),
			Overwrite:   d.cfg.Overwrite,
			MinDuration: d.cfg.Segments.MinDurationSeconds,
			MinChars:    d.cfg.Segments.MinChars,
			Format:      d.cfg.Segments.Format,
			Bitrate:     d.cfg.Segments.Bitrate,
			Workers:     d.runtime.SegmentWorkers,
		})
		if segmentErr == nil && segResult.FailedCount > 0 {
			segmentErr = services.Wrap(services.ErrTranscode, "pipeline", "segments",
				"some segments failed to cut", nil)
		}
	}
	if segResult != nil {
		rec.SegmentCount = segResult.SegmentCount
		rec.SegmentsIndexPath = fileutil.ToRelative(segResult.IndexPath, root)
	}

	metadataPath := filepath.Join(videoRoot, "metadata.json")
	if err := d.writeMetadata(metadataPath, unit, info, audio, transcripts, transcriptErr, segResult, segmentErr); err != nil {
		d.logger.Warn("write metadata bundle",
			logging.String(logging.FieldVideoID, unit.VideoID),
			logging.Error(err),
		)
	} else {
		rec.MetadataPath = fileutil.ToRelative(metadataPath, root)
	}

	rec.Status = manifest.OutcomeSuccess
	if transcriptErr != nil || segmentErr != nil {
		rec.Status = manifest.OutcomePartial
		firstErr := transcriptErr
		if firstErr == nil {
			firstErr = segmentErr
		}
		rec.FailureKind = services.FailureKind(firstErr)
		rec.Error = firstErr.Error()
	}
	rec.FinishedAt = time.Now().UTC()
	return rec
}

func (d *Driver) writeMetadata(path string, unit resolver.Unit, info *ytdlp.VideoInfo, audio *ytdlp.AudioResult, transcripts *ytdlp.TranscriptResult, transcriptErr error, segResult *segmenter.Result, segmentErr error) error {
	root := d.cfg.Paths.DatasetRoot

	available := make([]ytdlp.TrackInfo, 0, len(transcripts.Available))
	for _, track := range transcripts.Available {
		track.Path = fileutil.ToRelative(track.Path, root)
		available = append(available, track)
	}

	meta := videoMetadata{
		VideoID:         unit.VideoID,
		URL:             unit.URL,
		Title:           info.Title,
		Channel:         info.Channel,
		Uploader:        info.Uploader,
		DurationSeconds: info.DurationSeconds,
		UploadDate:      info.UploadDate,
		LanguageHint:    info.Language,
		AudioPath:       fileutil.ToRelative(audio.Path, root),
		Transcripts: transcriptMetadata{
			DefaultPath:  fileutil.ToRelative(transcripts.DefaultPath, root),
			AutoLanguage: transcripts.AutoLanguage,
			AutoMode:     transcripts.AutoMode,
			AutoPath:     fileutil.ToRelative(transcripts.AutoPath, root),
			Available:    available,
			Error:        errString(transcriptErr),
		},
		Segments: segmentMetadata{
			Enabled: d.cfg.Segments.Enabled,
			Error:   errString(segmentErr),
		},
		Auth: authMetadata{
			CookieFileProvided:  d.creds.CookiesFile != "",
			BrowserSpecProvided: d.creds.Browser != nil,
		},
		CreatedAt: time.Now().UTC(),
	}
	if segResult != nil {
		meta.Segments.SegmentCount = segResult.SegmentCount
		meta.Segments.SkippedCount = segResult.SkippedCount
		meta.Segments.FailedCount = segResult.FailedCount
		meta.Segments.BaseTrack = segResult.BaseTrack
		meta.Segments.Format = d.cfg.Segments.Format
		meta.Segments.IndexPath = fileutil.ToRelative(segResult.IndexPath, root)
		meta.Segments.SegmentsDir = fileutil.ToRelative(filepath.Dir(segResult.IndexPath), root)
	}
	return fileutil.WriteJSON(path, meta)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
