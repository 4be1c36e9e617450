// Package catalog maintains a derived SQLite projection of the manifest
// streams for ad-hoc querying. The database is rebuilt wholesale from the
// JSONL streams and the per-video segment indexes; the manifest remains the
// only authority, and a lost catalog.db is fully recoverable.
package catalog

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"speechset/internal/manifest"
	"speechset/internal/segmenter"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever the projection schema changes; the rebuild
// drops everything, so no migration path is needed.
const schemaVersion = 1

// Store wraps the catalog database.
type Store struct {
	db   *sql.DB
	path string
}

// Open connects to manifests/catalog.db under the dataset root.
func Open(datasetRoot string) (*Store, error) {
	dir := filepath.Join(datasetRoot, "manifests")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure manifests directory: %w", err)
	}
	dbPath := filepath.Join(dir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Rebuild drops and repopulates the projection from the manifest streams of
// both flows and every reachable segment index.
func (s *Store) Rebuild(ctx context.Context, datasetRoot string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	drops := []string{
		"DROP TABLE IF EXISTS schema_version",
		"DROP TABLE IF EXISTS units",
		"DROP TABLE IF EXISTS segments",
		"DROP INDEX IF EXISTS idx_units_status",
		"DROP INDEX IF EXISTS idx_units_channel",
		"DROP INDEX IF EXISTS idx_segments_video",
	}
	for _, stmt := range drops {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("drop projection: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create projection schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	manifestsDir := filepath.Join(datasetRoot, "manifests")
	seenVideos := make(map[string]struct{})
	for _, flow := range []manifest.Flow{manifest.FlowVideos, manifest.FlowChannels} {
		prefix := ""
		if flow == manifest.FlowChannels {
			prefix = "channel_"
		}
		records, _, err := manifest.ReadRecords(filepath.Join(manifestsDir, prefix+"records.jsonl"))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read %s records: %w", flow, err)
		}
		for _, rec := range records {
			if err := insertUnit(ctx, tx, string(flow), rec); err != nil {
				return err
			}
			if rec.VideoID != "" {
				seenVideos[rec.VideoID] = struct{}{}
			}
		}
	}

	for videoID := range seenVideos {
		indexPath := filepath.Join(datasetRoot, "videos", videoID, "segments", "index.jsonl")
		rows, err := readSegmentIndex(indexPath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("read segment index for %s: %w", videoID, err)
		}
		for _, row := range rows {
			if err := insertSegment(ctx, tx, videoID, row); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

func insertUnit(ctx context.Context, tx *sql.Tx, flow string, rec manifest.Record) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO units (
            video_id, flow, url, channel, status, failure_kind, error, title,
            duration_seconds, audio_path, default_transcript_path,
            auto_language, segment_count, segments_index_path, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.VideoID,
		flow,
		rec.URL,
		nullableString(rec.Channel),
		string(rec.Status),
		nullableString(string(rec.FailureKind)),
		nullableString(rec.Error),
		nullableString(rec.Title),
		rec.DurationSeconds,
		nullableString(rec.AudioPath),
		nullableString(rec.TranscriptPath),
		nullableString(rec.AutoLanguage),
		rec.SegmentCount,
		nullableString(rec.SegmentsIndexPath),
		rec.FinishedAt.Format("2006-01-02T15:04:05.999999999Z07:00"),
	)
	if err != nil {
		return fmt.Errorf("insert unit %s: %w", rec.VideoID, err)
	}
	return nil
}

func insertSegment(ctx context.Context, tx *sql.Tx, videoID string, row segmenter.IndexRow) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO segments (
            video_id, segment_id, start, duration, base_track,
            audio_path, transcripts_path, base_text, error
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		videoID,
		row.SegmentID,
		row.Start,
		row.Duration,
		nullableString(row.BaseTrack),
		nullableString(row.AudioPath),
		nullableString(row.TranscriptsPath),
		nullableString(row.BaseText),
		nullableString(row.Error),
	)
	if err != nil {
		return fmt.Errorf("insert segment %s/%s: %w", videoID, row.SegmentID, err)
	}
	return nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// UnitCount returns the number of cataloged units with the given status, or
// all units when status is empty.
func (s *Store) UnitCount(ctx context.Context, status string) (int, error) {
	var count int
	var err error
	if status == "" {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM units").Scan(&count)
	} else {
		err = s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM units WHERE status = ?", status).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("count units: %w", err)
	}
	return count, nil
}

// SegmentCount returns the number of cataloged segments.
func (s *Store) SegmentCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM segments").Scan(&count); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return count, nil
}

func readSegmentIndex(path string) ([]segmenter.IndexRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []segmenter.IndexRow
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var row segmenter.IndexRow
		if err := json.Unmarshal(line, &row); err != nil {
			continue
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", path, err)
	}
	return rows, nil
}
