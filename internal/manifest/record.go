package manifest

import "time"

// Outcome is the terminal state of a processed unit.
type Outcome string

const (
	// OutcomeSuccess means audio, transcripts, and segments all materialized.
	OutcomeSuccess Outcome = "success"
	// OutcomePartial means audio landed but a transcript or segment step failed.
	OutcomePartial Outcome = "partial"
	// OutcomeFailed means the unit produced no usable audio.
	OutcomeFailed Outcome = "failed"
	// OutcomeSkip means the unit was already done and no work was dispatched.
	OutcomeSkip Outcome = "skip"
)

// FailureKind classifies unit failures for machine consumption.
type FailureKind string

const (
	FailureAuth          FailureKind = "auth"
	FailureNoFormats     FailureKind = "no_formats"
	FailureExtractor     FailureKind = "extractor"
	FailureTranscript    FailureKind = "transcript"
	FailureTranscode     FailureKind = "transcode"
	FailureResolve       FailureKind = "resolve"
	FailureConfiguration FailureKind = "configuration"
)

// Record is one immutable unit outcome. Field names follow the on-disk JSONL
// schema consumed by downstream dataset tooling.
type Record struct {
	URL               string      `json:"url"`
	VideoID           string      `json:"video_id,omitempty"`
	Channel           string      `json:"channel,omitempty"`
	Status            Outcome     `json:"status"`
	FailureKind       FailureKind `json:"failure_kind,omitempty"`
	Error             string      `json:"error,omitempty"`
	Title             string      `json:"title,omitempty"`
	DurationSeconds   float64     `json:"duration_seconds,omitempty"`
	AudioPath         string      `json:"audio_path,omitempty"`
	TranscriptPath    string      `json:"default_transcript_path,omitempty"`
	AutoLanguage      string      `json:"auto_language,omitempty"`
	AutoLanguageMode  string      `json:"auto_transcript_mode,omitempty"`
	SegmentCount      int         `json:"segment_count"`
	SegmentsIndexPath string      `json:"segments_index_path,omitempty"`
	MetadataPath      string      `json:"metadata_path,omitempty"`
	StartedAt         time.Time   `json:"started_at,omitempty"`
	FinishedAt        time.Time   `json:"finished_at"`
}

// ChannelRecord is one immutable channel expansion outcome.
type ChannelRecord struct {
	ChannelRef  string    `json:"channel_ref"`
	ChannelSlug string    `json:"channel_slug"`
	Status      Outcome   `json:"status"`
	VideoCount  int       `json:"video_count"`
	Reused      bool      `json:"reused,omitempty"`
	Error       string    `json:"error,omitempty"`
	FetchedAt   time.Time `json:"fetched_at"`
}

// Summary aggregates a full run. It is derived from the record streams and
// recomputable at any time; it is never authoritative state.
type Summary struct {
	CreatedAt        time.Time     `json:"created_at"`
	RunID            string        `json:"run_id"`
	DatasetRoot      string        `json:"dataset_root"`
	TotalUnits       int           `json:"total_units"`
	Success          int           `json:"success_count"`
	Partial          int           `json:"partial_count"`
	Failed           int           `json:"failed_count"`
	Skipped          int           `json:"skip_count"`
	TotalSegments    int           `json:"total_segments"`
	ChannelsTotal    int           `json:"channels_total,omitempty"`
	ChannelsFailed   int           `json:"channels_failed,omitempty"`
	WallClock        time.Duration `json:"-"`
	WallClockSeconds float64       `json:"wall_clock_seconds"`
}

// IsFailure reports whether a record describes an outright unit failure.
func (r Record) IsFailure() bool {
	return r.Status == OutcomeFailed
}
