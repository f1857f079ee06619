package export

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// SessionToCSV converts a JSONL session stream into CSV rows. It is a pure
// transform: column order is deterministic (timestamp, event_type, then the
// remaining fields sorted), values missing from a record are left blank,
// and malformed lines fail the export rather than silently dropping data.
func SessionToCSV(r io.Reader, w io.Writer) error {
	var rows []map[string]interface{}
	fieldSet := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec map[string]interface{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("export: invalid session line: %w", err)
		}
		rows = append(rows, rec)
		for k := range rec {
			fieldSet[k] = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("export: failed to read session: %w", err)
	}

	columns := columnOrder(fieldSet)

	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		out := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok {
				out[i] = formatValue(v)
			}
		}
		if err := cw.Write(out); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportSessionFile converts a recorded session to CSV, writing the result
// next to the original with a .csv extension, and returns the CSV path.
func ExportSessionFile(sessionPath string) (string, error) {
	in, err := os.Open(sessionPath)
	if err != nil {
		return "", fmt.Errorf("export: failed to open session: %w", err)
	}
	defer in.Close()

	csvPath := strings.TrimSuffix(sessionPath, ".jsonl") + ".csv"
	out, err := os.Create(csvPath)
	if err != nil {
		return "", fmt.Errorf("export: failed to create csv: %w", err)
	}
	defer out.Close()

	if err := SessionToCSV(in, out); err != nil {
		return "", err
	}
	return csvPath, nil
}

// columnOrder puts the common columns first and the event-specific rest in
// sorted order.
func columnOrder(fieldSet map[string]bool) []string {
	var columns []string
	for _, col := range []string{"timestamp", "event_type"} {
		if fieldSet[col] {
			columns = append(columns, col)
			delete(fieldSet, col)
		}
	}
	rest := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		rest = append(rest, k)
	}
	sort.Strings(rest)
	return append(columns, rest...)
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; session fields are integral.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	case bool:
		return fmt.Sprintf("%t", val)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}
