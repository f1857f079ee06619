package protocol

// Event is a typed record decoded from one line of Marauder firmware
// output. Events are immutable once constructed; the decoder never reuses
// or mutates a published event.
type Event interface {
	// Type returns the wire name of the event, used as event_type in
	// session files.
	Type() string
}

// APFound is an access point discovered during a scanap run.
type APFound struct {
	SSID    string `json:"ssid"`
	BSSID   string `json:"bssid"`
	Channel int    `json:"channel"`
	RSSI    int    `json:"rssi"`
}

func (APFound) Type() string { return "APFound" }

// StationFound is a client station discovered during a scansta run.
type StationFound struct {
	MAC             string `json:"mac"`
	RSSI            int    `json:"rssi"`
	AssociatedBSSID string `json:"associated_bssid"`
}

func (StationFound) Type() string { return "StationFound" }

// BLEDeviceFound is a Bluetooth LE device seen during a sniffbt run. The
// firmware reports either an advertised name or a MAC, never both, so one
// of the two fields is empty.
type BLEDeviceFound struct {
	Name string `json:"name"`
	MAC  string `json:"mac"`
	RSSI int    `json:"rssi"`
}

func (BLEDeviceFound) Type() string { return "BLEDeviceFound" }

// ScanStarted is emitted when the device acknowledges a scan command.
type ScanStarted struct {
	ScanType string `json:"scan_type"` // "wifi", "bluetooth" or "ap"
}

func (ScanStarted) Type() string { return "ScanStarted" }

// ScanStopped is emitted when a running scan ends, by command or on the
// device's own initiative.
type ScanStopped struct{}

func (ScanStopped) Type() string { return "ScanStopped" }

// Disconnected is emitted exactly once by a reader loop when the serial
// link is lost.
type Disconnected struct {
	Reason string `json:"reason"`
}

func (Disconnected) Type() string { return "Disconnected" }

// RawLine is the catch-all for firmware output that matches no known
// pattern. Kept so the raw serial view and session files stay complete.
type RawLine struct {
	Text string `json:"text"`
}

func (RawLine) Type() string { return "RawLine" }
