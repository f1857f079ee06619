package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ExclusiveAccount/marauder-link/pkg/protocol"
)

func TestDispatchRendersFirmwareCommands(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		params Params
		want   string
	}{
		{"wifi ap scan", ActionScanWiFiAP, nil, "scanap\n"},
		{"station scan", ActionScanStations, nil, "scansta\n"},
		{"ble scan", ActionScanBLE, nil, "sniffbt\n"},
		{"stop scan", ActionStopScan, nil, "stopscan\n"},
		{"beacon flood", ActionAttackBeacon, nil, "attack -t beacon -r\n"},
		{"rickroll", ActionAttackRickroll, nil, "attack -t rickroll\n"},
		{"ble spam", ActionBLESpam, Params{"target": "apple"}, "blespam -t apple\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t)
			transport := &recordingTransport{}
			eng.AttachTransport(transport)

			require.NoError(t, eng.Dispatch(tt.action, tt.params))
			require.Len(t, transport.writes, 1)
			assert.Equal(t, tt.want, string(transport.writes[0]))
		})
	}
}

func TestDispatchDeauthResolvesTargetIndex(t *testing.T) {
	eng := newTestEngine(t)
	transport := &recordingTransport{}
	eng.AttachTransport(transport)

	eng.HandleEvent(protocol.APFound{SSID: "First", BSSID: "AA:AA:AA:AA:AA:01", RSSI: -40})
	eng.HandleEvent(protocol.APFound{SSID: "Second", BSSID: "AA:AA:AA:AA:AA:02", RSSI: -50})

	// Separator style of the target must not matter.
	require.NoError(t, eng.Dispatch(ActionAttackDeauth, Params{"target": "aa-aa-aa-aa-aa-02"}))

	require.Len(t, transport.writes, 1)
	assert.Equal(t, "select -a 1\nattack -t deauth\n", string(transport.writes[0]))
	assert.Equal(t, "attack_deauth", eng.ScanState())
}

func TestDispatchValidation(t *testing.T) {
	tests := []struct {
		name   string
		action Action
		params Params
	}{
		{"deauth without target", ActionAttackDeauth, nil},
		{"deauth with unknown target", ActionAttackDeauth, Params{"target": "11:22:33:44:55:66"}},
		{"ble spam without target", ActionBLESpam, nil},
		{"ble spam with invalid target", ActionBLESpam, Params{"target": "toaster"}},
		{"unknown action", Action("self_destruct"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t)
			transport := &recordingTransport{}
			eng.AttachTransport(transport)
			before := len(eng.Activity())

			err := eng.Dispatch(tt.action, tt.params)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Empty(t, transport.writes, "validation failures must never reach the transport")
			assert.Len(t, eng.Activity(), before, "validation failures must leave state unchanged")
		})
	}
}

func TestDispatchWithoutTransport(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.Dispatch(ActionAttackDeauth, Params{"target": "AA:BB:CC:DD:EE:FF"})

	assert.ErrorIs(t, err, ErrNoTransport)
	assert.Empty(t, eng.APs())
	assert.Empty(t, eng.Activity())
}

func TestDispatchWriteFailure(t *testing.T) {
	eng := newTestEngine(t)
	transport := &recordingTransport{writeErr: errors.New("device unplugged")}
	eng.AttachTransport(transport)
	before := eng.Activity()

	err := eng.Dispatch(ActionScanWiFiAP, nil)

	require.Error(t, err)
	assert.Empty(t, eng.ScanState(), "failed dispatch must not flip the scan state")
	assert.Equal(t, before, eng.Activity())
}

func TestDispatchDoesNotMutateCallerParams(t *testing.T) {
	eng := newTestEngine(t)
	eng.AttachTransport(&recordingTransport{})
	eng.HandleEvent(protocol.APFound{SSID: "Net", BSSID: "AA:AA:AA:AA:AA:01", RSSI: -40})

	params := Params{"target": "AA:AA:AA:AA:AA:01"}
	require.NoError(t, eng.Dispatch(ActionAttackDeauth, params))

	assert.Equal(t, Params{"target": "AA:AA:AA:AA:AA:01"}, params)
}

func TestCommandTableCoversAllActions(t *testing.T) {
	assert.ElementsMatch(t, []Action{
		ActionScanWiFiAP, ActionScanStations, ActionScanBLE, ActionStopScan,
		ActionAttackDeauth, ActionAttackBeacon, ActionAttackRickroll, ActionBLESpam,
	}, Actions())
}

func TestStopScanLeavesScanStateToDevice(t *testing.T) {
	eng := newTestEngine(t)
	eng.AttachTransport(&recordingTransport{})

	require.NoError(t, eng.Dispatch(ActionScanWiFiAP, nil))
	assert.Equal(t, "wifi_ap", eng.ScanState())

	// stopscan is fire-and-forget; the flag clears when the device
	// confirms with a ScanStopped line.
	require.NoError(t, eng.Dispatch(ActionStopScan, nil))
	assert.Equal(t, "wifi_ap", eng.ScanState())

	eng.HandleEvent(protocol.ScanStopped{})
	assert.Empty(t, eng.ScanState())
}
