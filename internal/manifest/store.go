package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"speechset/internal/logging"
)

// Flow selects which manifest stream family a store writes.
type Flow string

const (
	// FlowVideos is the URL-first stream family (records.jsonl etc).
	FlowVideos Flow = "videos"
	// FlowChannels is the channel-first stream family (channel_records.jsonl etc).
	FlowChannels Flow = "channels"
)

// Store appends unit outcomes to the manifest streams of one flow.
type Store struct {
	dir     string
	flow    Flow
	logger  *slog.Logger
	started time.Time

	mu       sync.Mutex
	lock     *flock.Flock
	done     map[string]struct{}
	seeded   bool
	corrupt  bool
	appended []Record
}

// Open prepares the manifest directory for the given flow and loads the done
// set from any existing records stream. A missing stream is a fresh run, not
// an error; an unreadable one flips the store into fallback mode (see
// NeedsFallback).
func Open(dir string, flow Flow, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manifest directory %q: %w", dir, err)
	}
	s := &Store{
		dir:     dir,
		flow:    flow,
		logger:  logging.NewComponentLogger(logger, "manifest"),
		started: time.Now(),
		lock:    flock.New(filepath.Join(dir, ".manifest.lock")),
		done:    make(map[string]struct{}),
	}
	if err := s.loadDone(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) prefix() string {
	if s.flow == FlowChannels {
		return "channel_"
	}
	return ""
}

// RecordsPath returns the absolute path of the records stream.
func (s *Store) RecordsPath() string {
	return filepath.Join(s.dir, s.prefix()+"records.jsonl")
}

// FailuresPath returns the absolute path of the failures stream.
func (s *Store) FailuresPath() string {
	return filepath.Join(s.dir, s.prefix()+"failures.jsonl")
}

// ExpansionsPath returns the absolute path of the channel expansion stream.
func (s *Store) ExpansionsPath() string {
	return filepath.Join(s.dir, "channel_expansions.jsonl")
}

func (s *Store) csvPath() string {
	return filepath.Join(s.dir, s.prefix()+"records.csv")
}

func (s *Store) summaryPath() string {
	return filepath.Join(s.dir, s.prefix()+"summary.json")
}

func (s *Store) loadDone() error {
	records, corrupt, err := readRecords(s.RecordsPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		s.corrupt = true
		s.logger.Warn("records stream unreadable; completion falls back to artifact scan",
			logging.Error(err),
			logging.String("path", s.RecordsPath()),
		)
		return nil
	}
	if corrupt > 0 {
		s.logger.Warn("skipped corrupt manifest lines from an interrupted run",
			logging.Int("lines", corrupt),
			logging.String("path", s.RecordsPath()),
		)
	}
	for _, rec := range records {
		if rec.Status == OutcomeSuccess && rec.VideoID != "" {
			s.done[rec.VideoID] = struct{}{}
		}
	}
	s.seeded = true
	return nil
}

// NeedsFallback reports whether completion state must be seeded from the
// artifact tree because no readable records stream exists.
func (s *Store) NeedsFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrupt && !s.seeded
}

// SeedDone marks the given unit ids as completed. Used only for the
// artifact-tree fallback when the manifest is absent or corrupt.
func (s *Store) SeedDone(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if id != "" {
			s.done[id] = struct{}{}
		}
	}
	s.seeded = true
}

// IsDone reports whether a unit already has a success record.
func (s *Store) IsDone(videoID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.done[videoID]
	return ok
}

// Append durably writes one unit record. Failures and partials are mirrored
// into the failures stream so operators can retry without scanning the full
// records stream.
func (s *Store) Append(rec Record) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal manifest record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendLine(s.RecordsPath(), line); err != nil {
		return err
	}
	if rec.Status == OutcomeFailed || rec.Status == OutcomePartial {
		if err := s.appendLine(s.FailuresPath(), line); err != nil {
			return err
		}
	}
	if rec.Status == OutcomeSuccess && rec.VideoID != "" {
		s.done[rec.VideoID] = struct{}{}
	}
	s.appended = append(s.appended, rec)
	return nil
}

// AppendExpansion durably writes one channel expansion record.
func (s *Store) AppendExpansion(rec ChannelRecord) error {
	if rec.FetchedAt.IsZero() {
		rec.FetchedAt = time.Now().UTC()
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal channel record: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLine(s.ExpansionsPath(), line)
}

// appendLine writes one full line with a single write syscall under the
// cross-process lock. Callers hold s.mu.
func (s *Store) appendLine(path string, line []byte) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire manifest lock: %w", err)
	}
	defer func() { _ = s.lock.Unlock() }()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manifest stream %q: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("append manifest record: %w", err)
	}
	return f.Close()
}

// ReadRecords parses a records stream, tolerating a corrupt trailing line
// from a run killed mid-append. The int return is the number of lines skipped.
func ReadRecords(path string) ([]Record, int, error) {
	return readRecords(path)
}

func readRecords(path string) ([]Record, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var (
		records []Record
		skipped int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("scan %q: %w", path, err)
	}
	return records, skipped, nil
}
