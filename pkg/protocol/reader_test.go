package protocol

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransport feeds a fixed set of lines, then fails every
// subsequent read with the given error.
type scriptedTransport struct {
	mu      sync.Mutex
	lines   []string
	readErr error
	writes  [][]byte
}

func (s *scriptedTransport) ReadLine() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.lines) == 0 {
		return "", s.readErr
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedTransport) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, append([]byte(nil), p...))
	return nil
}

func (s *scriptedTransport) Close() error { return nil }

func collectEvents(t *testing.T, transport *scriptedTransport) []Event {
	t.Helper()

	var mu sync.Mutex
	var events []Event
	reader := NewReader(transport, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}, nil)

	require.NoError(t, reader.Start())
	select {
	case <-reader.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not terminate")
	}

	assert.Equal(t, StateDisconnected, reader.State())
	mu.Lock()
	defer mu.Unlock()
	return events
}

func TestReaderPublishesInOrder(t *testing.T) {
	transport := &scriptedTransport{
		lines: []string{
			"Starting WiFi scan",
			"-42 ESSID: NetOne Ch: 1 BSSID: AA:AA:AA:AA:AA:01",
			"-50 ESSID: NetTwo Ch: 6 BSSID: AA:AA:AA:AA:AA:02",
			"some banner noise",
			"Stopping WiFi",
		},
		readErr: io.EOF,
	}

	events := collectEvents(t, transport)
	require.Len(t, events, 6)

	assert.Equal(t, ScanStarted{ScanType: "wifi"}, events[0])
	assert.Equal(t, "NetOne", events[1].(APFound).SSID)
	assert.Equal(t, "NetTwo", events[2].(APFound).SSID)
	assert.Equal(t, RawLine{Text: "some banner noise"}, events[3])
	assert.Equal(t, ScanStopped{}, events[4])

	// Exactly one Disconnected event, always last.
	disc, ok := events[5].(Disconnected)
	require.True(t, ok)
	assert.Contains(t, disc.Reason, "EOF")
}

func TestReaderSkipsBlankLines(t *testing.T) {
	transport := &scriptedTransport{
		lines:   []string{"", "   ", "-42 ESSID: Net Ch: 1 BSSID: AA:AA:AA:AA:AA:01"},
		readErr: io.EOF,
	}

	events := collectEvents(t, transport)
	require.Len(t, events, 2)
	assert.IsType(t, APFound{}, events[0])
	assert.IsType(t, Disconnected{}, events[1])
}

func TestReaderSingleUse(t *testing.T) {
	transport := &scriptedTransport{readErr: io.EOF}
	reader := NewReader(transport, func(Event) {}, nil)

	require.NoError(t, reader.Start())
	assert.ErrorIs(t, reader.Start(), ErrAlreadyStarted)

	<-reader.Done()
	// Still rejected after termination: reconnection means a new reader.
	assert.ErrorIs(t, reader.Start(), ErrAlreadyStarted)
}

func TestReaderRawHistory(t *testing.T) {
	transport := &scriptedTransport{
		lines:   []string{"one", "two", "three"},
		readErr: io.EOF,
	}

	var mu sync.Mutex
	var events []Event
	reader := NewReader(transport, func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	}, nil)
	require.NoError(t, reader.Start())
	<-reader.Done()

	assert.Equal(t, []string{"one", "two", "three"}, reader.RawHistory())
}
