package manifest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
)

// writeCSV renders the records stream as a tabular projection for downstream
// dataset tooling. The header is the sorted union of every key present in any
// record, so sparse fields stay aligned across heterogeneous outcomes.
func (s *Store) writeCSV(records []Record) error {
	path := s.csvPath()
	if len(records) == 0 {
		return os.WriteFile(path, nil, 0o644)
	}

	rows := make([]map[string]any, 0, len(records))
	keys := make(map[string]struct{})
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("project record: %w", err)
		}
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("project record: %w", err)
		}
		for key := range row {
			keys[key] = struct{}{}
		}
		rows = append(rows, row)
	}

	header := make([]string, 0, len(keys))
	for key := range keys {
		header = append(header, key)
	}
	sort.Strings(header)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv projection: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		fields := make([]string, len(header))
		for i, key := range header {
			fields[i] = csvCell(row[key])
		}
		if err := w.Write(fields); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv projection: %w", err)
	}
	return f.Close()
}

func csvCell(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}
