package segmenter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"speechset/internal/fileutil"
	"speechset/internal/logging"
	"speechset/internal/pool"
	"speechset/internal/services"
	"speechset/internal/ytdlp"
)

// Executor abstracts ffmpeg execution for testability.
type Executor interface {
	Run(ctx context.Context, binary string, args []string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Run(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...) //nolint:gosec
	return cmd.CombinedOutput()
}

// Option configures the segmenter.
type Option func(*Segmenter)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec Executor) Option {
	return func(s *Segmenter) {
		if exec != nil {
			s.exec = exec
		}
	}
}

// Segmenter cuts source audio along transcript timings.
type Segmenter struct {
	ffmpeg string
	logger *slog.Logger
	exec   Executor
}

// New constructs a segmenter. An empty binary falls back to "ffmpeg" on PATH.
func New(ffmpegBin string, logger *slog.Logger, opts ...Option) *Segmenter {
	ffmpegBin = strings.TrimSpace(ffmpegBin)
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	seg := &Segmenter{
		ffmpeg: ffmpegBin,
		logger: logging.NewComponentLogger(logger, "segmenter"),
		exec:   commandExecutor{},
	}
	for _, opt := range opts {
		opt(seg)
	}
	return seg
}

// Request describes one segmentation run.
type Request struct {
	SourceAudio string
	Tracks      []Track
	OutputRoot  string
	Overwrite   bool
	MinDuration float64
	MinChars    int
	Format      string
	Bitrate     string
	Workers     int
}

// Result summarizes a segmentation run.
type Result struct {
	SegmentCount int
	SkippedCount int
	FailedCount  int
	BaseTrack    string
	IndexPath    string
}

// Timing locates a segment inside the source audio.
type Timing struct {
	Start          float64 `json:"start"`
	Duration       float64 `json:"duration"`
	End            float64 `json:"end"`
	BaseTrack      string  `json:"base_track"`
	BaseEntryIndex int     `json:"base_entry_index"`
}

// TrackWindow is the text of one track overlapping a segment window.
type TrackWindow struct {
	Text         string `json:"text"`
	EntryIndices []int  `json:"entry_indices"`
	LanguageCode string `json:"language_code,omitempty"`
	Generated    *bool  `json:"is_generated"`
}

// Bundle is the per-segment transcripts.json payload.
type Bundle struct {
	SegmentID string                 `json:"segment_id"`
	Timing    Timing                 `json:"timing"`
	Tracks    map[string]TrackWindow `json:"tracks"`
}

// IndexRow is one line of index.jsonl.
type IndexRow struct {
	SegmentID       string  `json:"segment_id"`
	Start           float64 `json:"start"`
	Duration        float64 `json:"duration"`
	End             float64 `json:"end"`
	BaseTrack       string  `json:"base_track"`
	AudioPath       string  `json:"audio_path"`
	TranscriptsPath string  `json:"transcripts_path"`
	BaseText        string  `json:"base_text"`
	Error           string  `json:"error,omitempty"`
}

type plannedSegment struct {
	timing     Timing
	row        IndexRow
	bundle     Bundle
	audioPath  string
	bundlePath string
}

// Create plans segments from the base track, cuts them with bounded workers,
// and writes the index. A failed cut marks its own row and never aborts
// sibling segments.
func (s *Segmenter) Create(ctx context.Context, req Request) (*Result, error) {
	if len(req.Tracks) == 0 {
		return nil, services.Wrap(services.ErrTranscript, "segmenter", "plan",
			"no transcript tracks available for segmentation", nil)
	}
	if req.Workers < 1 {
		return nil, services.Wrap(services.ErrConfiguration, "segmenter", "plan", "workers must be >= 1", nil)
	}

	entriesByTrack := make(map[string][]ytdlp.Entry, len(req.Tracks))
	trackByKey := make(map[string]Track, len(req.Tracks))
	for _, track := range req.Tracks {
		entriesByTrack[track.Key] = loadEntries(track.Path)
		trackByKey[track.Key] = track
	}

	baseTrack := req.Tracks[0].Key
	if _, ok := entriesByTrack["default"]; ok {
		baseTrack = "default"
	}

	planned, skipped := s.plan(req, baseTrack, entriesByTrack, trackByKey)

	if err := os.MkdirAll(req.OutputRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create segments directory: %w", err)
	}

	results, err := pool.Run(ctx, planned, req.Workers, func(ctx context.Context, _ int, item plannedSegment) (struct{}, error) {
		return struct{}{}, s.materialize(ctx, req, item)
	})
	if err != nil {
		return nil, err
	}

	failed := 0
	rows := make([]IndexRow, len(planned))
	for i, item := range planned {
		rows[i] = item.row
		if resErr := results[i].Err; resErr != nil {
			rows[i].Error = resErr.Error()
			failed++
			s.logger.Warn("segment failed",
				logging.String("segment", item.row.SegmentID),
				logging.Error(resErr),
			)
		}
	}

	indexPath := filepath.Join(req.OutputRoot, "index.jsonl")
	if err := writeIndex(indexPath, rows); err != nil {
		return nil, err
	}

	return &Result{
		SegmentCount: len(rows) - failed,
		SkippedCount: skipped,
		FailedCount:  failed,
		BaseTrack:    baseTrack,
		IndexPath:    indexPath,
	}, nil
}

// plan assigns contiguous %06d indices to retained entries before any worker
// dispatch happens.
func (s *Segmenter) plan(req Request, baseTrack string, entriesByTrack map[string][]ytdlp.Entry, trackByKey map[string]Track) ([]plannedSegment, int) {
	var planned []plannedSegment
	skipped := 0
	kept := 0
	for baseIndex, entry := range entriesByTrack[baseTrack] {
		text := entry.Text
		start := entry.Start
		if start < 0 {
			start = 0
		}
		if entry.Duration < req.MinDuration || len(text) < req.MinChars {
			skipped++
			continue
		}

		segmentID := fmt.Sprintf("%06d", kept)
		kept++
		end := start + entry.Duration
		segmentDir := filepath.Join(req.OutputRoot, segmentID)
		audioPath := filepath.Join(segmentDir, "audio."+req.Format)
		bundlePath := filepath.Join(segmentDir, "transcripts.json")

		windows := make(map[string]TrackWindow, len(entriesByTrack))
		for key, trackEntries := range entriesByTrack {
			windowText, matched := collectWindow(trackEntries, start, end)
			track := trackByKey[key]
			windows[key] = TrackWindow{
				Text:         windowText,
				EntryIndices: matched,
				LanguageCode: track.LanguageCode,
				Generated:    track.Generated,
			}
		}

		timing := Timing{
			Start:          start,
			Duration:       entry.Duration,
			End:            end,
			BaseTrack:      baseTrack,
			BaseEntryIndex: baseIndex,
		}
		planned = append(planned, plannedSegment{
			timing:     timing,
			audioPath:  audioPath,
			bundlePath: bundlePath,
			bundle: Bundle{
				SegmentID: segmentID,
				Timing:    timing,
				Tracks:    windows,
			},
			row: IndexRow{
				SegmentID:       segmentID,
				Start:           start,
				Duration:        entry.Duration,
				End:             end,
				BaseTrack:       baseTrack,
				AudioPath:       audioPath,
				TranscriptsPath: bundlePath,
				BaseText:        text,
			},
		})
	}
	return planned, skipped
}

// materialize cuts one segment and writes its transcript bundle. An existing
// audio file survives unless overwrite is set.
func (s *Segmenter) materialize(ctx context.Context, req Request, item plannedSegment) error {
	if req.Overwrite || !fileutil.Exists(item.audioPath) {
		if err := s.cut(ctx, req, item); err != nil {
			return err
		}
	}
	if err := fileutil.WriteJSON(item.bundlePath, item.bundle); err != nil {
		return services.Wrap(services.ErrTranscode, "segmenter", "bundle", "write transcript bundle", err)
	}
	return nil
}

func (s *Segmenter) cut(ctx context.Context, req Request, item plannedSegment) error {
	if err := os.MkdirAll(filepath.Dir(item.audioPath), 0o755); err != nil {
		return fmt.Errorf("create segment directory: %w", err)
	}
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-threads", "1",
		"-ss", fmt.Sprintf("%.3f", item.timing.Start),
		"-t", fmt.Sprintf("%.3f", item.timing.Duration),
		"-i", req.SourceAudio,
		"-vn",
	}
	args = append(args, codecArgs(req.Format, req.Bitrate)...)
	args = append(args, item.audioPath)

	output, err := s.exec.Run(ctx, s.ffmpeg, args)
	if err != nil {
		detail := strings.TrimSpace(string(output))
		if detail == "" {
			detail = err.Error()
		}
		return services.Wrap(services.ErrTranscode, "segmenter", "cut",
			fmt.Sprintf("ffmpeg cut %s: %s", item.row.SegmentID, detail), err)
	}
	return nil
}

func codecArgs(format, bitrate string) []string {
	switch strings.ToLower(format) {
	case "mp3":
		return []string{"-c:a", "libmp3lame", "-b:a", bitrate}
	case "wav", "wave":
		return []string{"-c:a", "pcm_s16le"}
	case "m4a", "aac":
		return []string{"-c:a", "aac", "-b:a", bitrate}
	case "flac":
		return []string{"-c:a", "flac"}
	case "opus":
		return []string{"-c:a", "libopus", "-b:a", bitrate}
	default:
		return nil
	}
}

func writeIndex(path string, rows []IndexRow) error {
	var b strings.Builder
	for _, row := range rows {
		line, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("marshal index row %s: %w", row.SegmentID, err)
		}
		b.Write(line)
		b.WriteString("\n")
	}
	return fileutil.WriteFile(path, []byte(b.String()))
}
