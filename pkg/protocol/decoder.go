package protocol

import (
	"regexp"
	"strconv"
	"strings"
)

// Line formats produced by Marauder firmware:
//
//	-42 ESSID: MyNetwork Ch: 6 BSSID: AA:BB:CC:DD:EE:FF
//	-55 Station: AA:BB:CC:DD:EE:FF Associated: 11:22:33:44:55:66
//	-80 Device: [LG] webOS TV UP7550PSF
//	-73 Device: 63:C6:BB:7B:D1:1C
//	Starting WiFi scan ...
//	Shutting down BLE ...
const macPattern = `[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}`

var (
	reAP = regexp.MustCompile(
		`^(-?\d+)\s+ESSID:\s*(.*?)\s+Ch:\s*(\d+)\s+BSSID:\s*(` + macPattern + `)\s*$`)
	reStation = regexp.MustCompile(
		`^(-?\d+)\s+Station:\s*(` + macPattern + `)\s+Associated:\s*(` + macPattern + `)\s*$`)
	reBLENamed = regexp.MustCompile(`^(-?\d+)\s+Device:\s*\[(.+?)\]\s*(.*?)\s*$`)
	reBLEMac   = regexp.MustCompile(`^(-?\d+)\s+Device:\s*(` + macPattern + `)\s*$`)

	reScanStartWiFi = regexp.MustCompile(`(?i)Starting WiFi scan`)
	reScanStartBT   = regexp.MustCompile(`(?i)Starting Bluetooth scan`)
	reScanStartAP   = regexp.MustCompile(`(?i)Started AP Scan`)
	reScanStopped   = regexp.MustCompile(`(?i)(Shutting down BLE|Stopping WiFi|stopscan)`)

	// ANSI color/cursor sequences the firmware sprinkles into its output.
	reANSI = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
)

// decodeRule maps one line pattern to an event constructor. Rules are
// evaluated in order, most specific first, so classification stays
// deterministic when a line could match more than one pattern (the BLE
// MAC-only form is a special case of the named form's free-text tail).
type decodeRule struct {
	re    *regexp.Regexp
	build func(m []string) Event
}

var decodeRules = []decodeRule{
	{re: reAP, build: func(m []string) Event {
		return APFound{
			RSSI:    atoiOr(m[1], 0),
			SSID:    m[2],
			Channel: atoiOr(m[3], 0),
			BSSID:   strings.ToUpper(m[4]),
		}
	}},
	{re: reStation, build: func(m []string) Event {
		return StationFound{
			RSSI:            atoiOr(m[1], 0),
			MAC:             strings.ToUpper(m[2]),
			AssociatedBSSID: strings.ToUpper(m[3]),
		}
	}},
	{re: reBLEMac, build: func(m []string) Event {
		return BLEDeviceFound{
			RSSI: atoiOr(m[1], 0),
			MAC:  strings.ToUpper(m[2]),
		}
	}},
	{re: reBLENamed, build: func(m []string) Event {
		name := "[" + strings.TrimSpace(m[2]) + "]"
		if model := strings.TrimSpace(m[3]); model != "" {
			name += " " + model
		}
		return BLEDeviceFound{
			RSSI: atoiOr(m[1], 0),
			Name: name,
		}
	}},
	{re: reScanStartWiFi, build: func([]string) Event { return ScanStarted{ScanType: "wifi"} }},
	{re: reScanStartBT, build: func([]string) Event { return ScanStarted{ScanType: "bluetooth"} }},
	{re: reScanStartAP, build: func([]string) Event { return ScanStarted{ScanType: "ap"} }},
	{re: reScanStopped, build: func([]string) Event { return ScanStopped{} }},
}

// Decode classifies a single firmware output line. It is pure: the same
// line always yields the same event. Blank lines yield nil; anything
// non-blank that matches no rule comes back as a RawLine so nothing is
// silently lost.
func Decode(line string) Event {
	line = sanitize(line)
	if strings.TrimSpace(line) == "" {
		return nil
	}

	for _, rule := range decodeRules {
		if m := rule.re.FindStringSubmatch(line); m != nil {
			return rule.build(m)
		}
	}
	return RawLine{Text: line}
}

// sanitize strips ANSI escape sequences and non-printable control
// characters so garbled firmware output cannot corrupt field extraction or
// downstream display.
func sanitize(line string) string {
	line = reANSI.ReplaceAllString(line, "")
	return strings.Map(func(r rune) rune {
		if r < 0x20 && r != '\t' {
			return -1
		}
		if r == 0x7f {
			return -1
		}
		return r
	}, line)
}

// atoiOr parses an integer field with an explicit fallback. A garbled
// number downgrades the field rather than failing the whole line.
func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
