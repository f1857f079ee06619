package models

import (
	"strings"
	"time"
)

// Category identifies which inventory a discovered device belongs to.
type Category string

const (
	CategoryAP      Category = "wifi-ap"      // WiFi access point
	CategoryStation Category = "wifi-station" // WiFi client station
	CategoryBLE     Category = "ble"          // Bluetooth LE device
)

// DeviceRecord represents a device discovered during a scan session.
// Records are keyed by normalized hardware address within their category;
// repeated sightings refresh RSSI and LastSeen in place rather than
// creating duplicates.
type DeviceRecord struct {
	Address    string    `json:"address"`              // BSSID/MAC as reported by firmware
	Name       string    `json:"name,omitempty"`       // SSID or advertised BLE name
	Vendor     string    `json:"vendor,omitempty"`     // Manufacturer from OUI lookup
	RSSI       int       `json:"rssi"`                 // Signal strength in dBm
	Channel    int       `json:"channel,omitempty"`    // WiFi channel (APs only)
	Associated string    `json:"associated,omitempty"` // BSSID a station is associated with
	Category   Category  `json:"category"`             // Inventory this record lives in
	FirstSeen  time.Time `json:"first_seen"`           // When the device was first discovered
	LastSeen   time.Time `json:"last_seen"`            // Most recent sighting
}

// DisplayName returns the best human-readable label for the record.
func (r *DeviceRecord) DisplayName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Address
}

// ActivityLogEntry is one line of the human-readable activity feed.
type ActivityLogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Category  string    `json:"category"` // "WiFi", "BLE", "Session", ...
	Message   string    `json:"message"`
}

// NormalizeAddress canonicalizes a hardware address for dedup lookups:
// separators are stripped and hex digits upper-cased, so firmware
// formatting differences never produce duplicate records.
func NormalizeAddress(addr string) string {
	var b strings.Builder
	b.Grow(len(addr))
	for _, c := range addr {
		switch c {
		case ':', '-', '.', ' ':
			continue
		}
		b.WriteRune(c)
	}
	return strings.ToUpper(b.String())
}
