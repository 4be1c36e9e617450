package manifest

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Finalize re-scans the full records stream, writes the summary document and
// the CSV projection, and returns the aggregate. A full scan (not incremental
// counters) keeps the summary correct when a previous run was interrupted
// after appending records.
func (s *Store) Finalize(runID, datasetRoot string) (Summary, error) {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()

	records, _, err := readRecords(s.RecordsPath())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Summary{}, fmt.Errorf("finalize manifest: %w", err)
	}

	summary := Summary{
		CreatedAt:   time.Now().UTC(),
		RunID:       runID,
		DatasetRoot: datasetRoot,
		TotalUnits:  len(records),
		WallClock:   time.Since(started),
	}
	summary.WallClockSeconds = summary.WallClock.Seconds()

	for _, rec := range records {
		switch rec.Status {
		case OutcomeSuccess:
			summary.Success++
		case OutcomePartial:
			summary.Partial++
		case OutcomeFailed:
			summary.Failed++
		case OutcomeSkip:
			summary.Skipped++
		}
		summary.TotalSegments += rec.SegmentCount
	}

	if s.flow == FlowChannels {
		expansions, err := s.readExpansions()
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return Summary{}, fmt.Errorf("finalize channel expansions: %w", err)
		}
		summary.ChannelsTotal = len(expansions)
		for _, exp := range expansions {
			if exp.Status == OutcomeFailed {
				summary.ChannelsFailed++
			}
		}
	}

	if err := s.writeCSV(records); err != nil {
		return Summary{}, err
	}
	if err := s.writeSummary(summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// RunCounts summarizes only the records appended by this process. The driver
// uses it for exit-status decisions so a resumed run is judged on its own
// work, not on records inherited from earlier runs.
func (s *Store) RunCounts() (success, partial, failed, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.appended {
		switch rec.Status {
		case OutcomeSuccess:
			success++
		case OutcomePartial:
			partial++
		case OutcomeFailed:
			failed++
		case OutcomeSkip:
			skipped++
		}
	}
	return success, partial, failed, skipped
}

func (s *Store) writeSummary(summary Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := os.WriteFile(s.summaryPath(), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (s *Store) readExpansions() ([]ChannelRecord, error) {
	f, err := os.Open(s.ExpansionsPath())
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []ChannelRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec ChannelRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
