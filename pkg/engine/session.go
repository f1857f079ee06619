package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ExclusiveAccount/marauder-link/pkg/protocol"
)

const sessionTimeFormat = "2006-01-02_150405"

// sessionWriter appends events to a JSONL file, one object per line. The
// file handle is unbuffered so every recorded event is on disk before the
// triggering engine operation returns.
type sessionWriter struct {
	file *os.File
	path string
}

func newSessionWriter(dir string, start time.Time) (*sessionWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("engine: failed to create sessions directory: %w", err)
	}
	path := filepath.Join(dir, start.Format(sessionTimeFormat)+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("engine: failed to create session file: %w", err)
	}
	return &sessionWriter{file: f, path: path}, nil
}

// record writes one event as a JSON line. Field sets per event type are
// kept explicit here so the session format stays stable and testable.
func (w *sessionWriter) record(ev protocol.Event, ts time.Time) error {
	rec := map[string]interface{}{
		"timestamp":  ts.Format(time.RFC3339),
		"event_type": ev.Type(),
	}

	switch e := ev.(type) {
	case protocol.APFound:
		rec["ssid"] = e.SSID
		rec["bssid"] = e.BSSID
		rec["channel"] = e.Channel
		rec["rssi"] = e.RSSI
	case protocol.StationFound:
		rec["mac"] = e.MAC
		rec["rssi"] = e.RSSI
		rec["associated_bssid"] = e.AssociatedBSSID
	case protocol.BLEDeviceFound:
		rec["name"] = e.Name
		rec["mac"] = e.MAC
		rec["rssi"] = e.RSSI
	case protocol.ScanStarted:
		rec["scan_type"] = e.ScanType
	case protocol.Disconnected:
		rec["reason"] = e.Reason
	case protocol.RawLine:
		rec["text"] = e.Text
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("engine: failed to encode session record: %w", err)
	}
	if _, err := w.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("engine: failed to write session record: %w", err)
	}
	return nil
}

func (w *sessionWriter) close() error {
	return w.file.Close()
}

// ListSessions returns the recorded session files under dir, newest first.
func ListSessions(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	return matches, nil
}
