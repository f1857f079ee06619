package engine

import (
	"fmt"
)

// Action is a high-level intent the presentation layer can dispatch.
type Action string

const (
	ActionScanWiFiAP     Action = "scan_wifi_ap"
	ActionScanStations   Action = "scan_stations"
	ActionScanBLE        Action = "scan_ble"
	ActionStopScan       Action = "stop_scan"
	ActionAttackDeauth   Action = "attack_deauth"
	ActionAttackBeacon   Action = "attack_beacon"
	ActionAttackRickroll Action = "attack_rickroll"
	ActionBLESpam        Action = "ble_spam"
)

// Params carries the string parameters of a dispatched action.
type Params map[string]string

// bleSpamTargets are the spam profiles the firmware understands.
var bleSpamTargets = map[string]bool{
	"apple":   true,
	"samsung": true,
	"google":  true,
	"windows": true,
	"flipper": true,
	"all":     true,
}

// commandSpec is one row of the action-to-firmware mapping. This table is
// the only place firmware command syntax lives; everything else dispatches
// through it.
type commandSpec struct {
	required  []string                      // params that must be present and non-empty
	validate  func(p Params) error          // extra per-action checks, may be nil
	render    func(p Params) []byte         // firmware bytes, one sequence per action
	scanState func(p Params) (string, bool) // new scan-state flag, ok=false leaves it alone
	logMsg    func(p Params) string         // activity feed message
}

func staticCommand(cmd, state, msg string) commandSpec {
	return commandSpec{
		render:    func(Params) []byte { return []byte(cmd) },
		scanState: func(Params) (string, bool) { return state, true },
		logMsg:    func(Params) string { return msg },
	}
}

var commandTable = map[Action]commandSpec{
	ActionScanWiFiAP:   staticCommand("scanap\n", "wifi_ap", "Requested WiFi AP scan"),
	ActionScanStations: staticCommand("scansta\n", "wifi_sta", "Requested WiFi station scan"),
	ActionScanBLE:      staticCommand("sniffbt\n", "ble", "Requested BLE scan"),
	ActionStopScan: {
		render: func(Params) []byte { return []byte("stopscan\n") },
		// The scan-state flag only clears once the device confirms with a
		// ScanStopped line.
		scanState: func(Params) (string, bool) { return "", false },
		logMsg:    func(Params) string { return "Requested scan stop" },
	},
	ActionAttackDeauth: {
		required: []string{"target"},
		render: func(p Params) []byte {
			// Marauder selects the AP by its scan index, then attacks the
			// selection. Dispatch resolves the target address to the index
			// before rendering.
			return []byte(fmt.Sprintf("select -a %s\nattack -t deauth\n", p["index"]))
		},
		scanState: func(Params) (string, bool) { return "attack_deauth", true },
		logMsg: func(p Params) string {
			return fmt.Sprintf("Deauth attack on AP %s (%s)", p["ssid"], p["target"])
		},
	},
	ActionAttackBeacon:   staticCommand("attack -t beacon -r\n", "attack_beacon", "Beacon flood attack started"),
	ActionAttackRickroll: staticCommand("attack -t rickroll\n", "attack_rickroll", "Rickroll beacon attack started"),
	ActionBLESpam: {
		required: []string{"target"},
		validate: func(p Params) error {
			if !bleSpamTargets[p["target"]] {
				return &ValidationError{Param: "target", Reason: "unknown BLE spam target"}
			}
			return nil
		},
		render: func(p Params) []byte {
			return []byte(fmt.Sprintf("blespam -t %s\n", p["target"]))
		},
		scanState: func(p Params) (string, bool) { return "ble_spam_" + p["target"], true },
		logMsg: func(p Params) string {
			return fmt.Sprintf("BLE spam started (target=%s)", p["target"])
		},
	},
}

// Actions returns every dispatchable action name, for CLI/API help output.
func Actions() []Action {
	out := make([]Action, 0, len(commandTable))
	for a := range commandTable {
		out = append(out, a)
	}
	return out
}
