package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ExclusiveAccount/marauder-link/pkg/config"
	"github.com/ExclusiveAccount/marauder-link/pkg/fingerprint"
	"github.com/ExclusiveAccount/marauder-link/pkg/models"
	"github.com/ExclusiveAccount/marauder-link/pkg/protocol"
	"github.com/ExclusiveAccount/marauder-link/pkg/serial"
)

// activityLogMax bounds the activity feed; the oldest entry is evicted
// once the feed is full.
const activityLogMax = 200

// Notification is what observers receive after every committed state
// change. Record is a copy of the touched device record, nil when the
// change did not involve the inventories.
type Notification struct {
	Kind   string // "event", "action", "session", "clear"
	Event  protocol.Event
	Record *models.DeviceRecord
}

// Observer receives notifications synchronously after each state change.
// A panicking observer is logged and skipped; it cannot corrupt the engine
// or starve other observers.
type Observer func(Notification)

// Engine owns all mutable scan state: the deduplicated device inventories,
// the bounded activity feed, the scan-state flag and the session writer.
// One mutex covers inventory mutation, session writes and observer fan-out
// so no observer ever sees a half-applied update.
type Engine struct {
	logger      *logrus.Logger
	sessionsDir string
	now         func() time.Time

	mu        sync.Mutex
	transport serial.Transport

	aps      map[string]*models.DeviceRecord
	stations map[string]*models.DeviceRecord
	ble      map[string]*models.DeviceRecord

	// Display order per inventory: insertion order of first sighting.
	apOrder      []*models.DeviceRecord
	stationOrder []*models.DeviceRecord
	bleOrder     []*models.DeviceRecord

	activity  []models.ActivityLogEntry
	scanState string
	connected bool

	session   *sessionWriter
	observers []Observer
}

// NewEngine builds an engine from the application config. No transport is
// attached yet; Dispatch fails with ErrNoTransport until AttachTransport.
func NewEngine(cfg config.Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		logger:      logger,
		sessionsDir: cfg.SessionsDir,
		now:         time.Now,
		aps:         make(map[string]*models.DeviceRecord),
		stations:    make(map[string]*models.DeviceRecord),
		ble:         make(map[string]*models.DeviceRecord),
	}
}

// RegisterObserver adds a state-change callback. Observers are invoked
// synchronously, in registration order, after each committed change.
func (e *Engine) RegisterObserver(fn Observer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// AttachTransport connects the engine to an open serial link.
func (e *Engine) AttachTransport(t serial.Transport) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transport = t
	e.connected = true
	e.appendActivity("Link", "Device connected")
	e.notify(Notification{Kind: "link"})
}

// HandleEvent consumes one decoded firmware event. The whole update
// (inventory upsert, activity append, session write, observer fan-out)
// is a single critical section, so events from the reader loop are applied
// atomically with respect to any snapshot.
func (e *Engine) HandleEvent(ev protocol.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var touched *models.DeviceRecord

	switch event := ev.(type) {
	case protocol.APFound:
		touched = e.upsert(e.aps, &e.apOrder, models.DeviceRecord{
			Address:  event.BSSID,
			Name:     event.SSID,
			RSSI:     event.RSSI,
			Channel:  event.Channel,
			Category: models.CategoryAP,
		})
		e.appendActivity("WiFi", fmt.Sprintf("Found AP: %s ch%d %ddBm", event.SSID, event.Channel, event.RSSI))
	case protocol.StationFound:
		touched = e.upsert(e.stations, &e.stationOrder, models.DeviceRecord{
			Address:    event.MAC,
			RSSI:       event.RSSI,
			Associated: event.AssociatedBSSID,
			Category:   models.CategoryStation,
		})
		e.appendActivity("WiFi", fmt.Sprintf("Station: %s %ddBm -> %s", event.MAC, event.RSSI, event.AssociatedBSSID))
	case protocol.BLEDeviceFound:
		rec := models.DeviceRecord{
			Address:  event.MAC,
			Name:     event.Name,
			RSSI:     event.RSSI,
			Category: models.CategoryBLE,
		}
		touched = e.upsert(e.ble, &e.bleOrder, rec)
		label := event.Name
		if label == "" {
			label = event.MAC
		}
		e.appendActivity("BLE", fmt.Sprintf("Device: %s %ddBm", label, event.RSSI))
	case protocol.ScanStarted:
		e.scanState = event.ScanType
		e.appendActivity("Scan", "Scan started: "+event.ScanType)
	case protocol.ScanStopped:
		prev := e.scanState
		e.scanState = ""
		e.appendActivity("Scan", fmt.Sprintf("Scan stopped (was: %s)", prev))
	case protocol.Disconnected:
		// Historical results stay visible after a disconnect.
		e.connected = false
		e.scanState = ""
		e.transport = nil
		e.appendActivity("Link", "Device disconnected")
	case protocol.RawLine:
		// Forwarded to observers and the session log only.
	}

	e.recordSession(ev)
	e.notify(Notification{Kind: "event", Event: ev, Record: copyRecord(touched)})
}

// upsert inserts a new record or refreshes the existing one in place,
// keyed by normalized address. The stored record's identity survives
// updates; only the volatile fields are refreshed.
func (e *Engine) upsert(index map[string]*models.DeviceRecord, order *[]*models.DeviceRecord, in models.DeviceRecord) *models.DeviceRecord {
	key := deviceKey(in)
	now := e.now()

	if existing, ok := index[key]; ok {
		existing.RSSI = in.RSSI
		existing.LastSeen = now
		if in.Name != "" {
			existing.Name = in.Name
		}
		if in.Channel != 0 {
			existing.Channel = in.Channel
		}
		if in.Associated != "" {
			existing.Associated = in.Associated
		}
		return existing
	}

	rec := in
	rec.FirstSeen = now
	rec.LastSeen = now
	rec.Vendor = fingerprint.LookupVendor(rec.Address)
	index[key] = &rec
	*order = append(*order, &rec)
	return &rec
}

// deviceKey derives the dedup key for a record. BLE advertisements without
// a MAC fall back to the advertised name so repeated sightings of the same
// named device still collapse into one record.
func deviceKey(rec models.DeviceRecord) string {
	if rec.Address != "" {
		return models.NormalizeAddress(rec.Address)
	}
	return "name:" + rec.Name
}

// Dispatch validates a high-level action, renders the firmware command
// from the command table and writes it to the transport. Issuance is
// fire-and-forget: resulting state changes arrive later as scan events.
func (e *Engine) Dispatch(action Action, params Params) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	spec, ok := commandTable[action]
	if !ok {
		return &ValidationError{Param: "action", Reason: fmt.Sprintf("unknown action %q", action)}
	}
	if e.transport == nil {
		return ErrNoTransport
	}

	// Work on a copy so resolution never mutates the caller's map.
	p := make(Params, len(params)+2)
	for k, v := range params {
		p[k] = v
	}

	for _, name := range spec.required {
		if p[name] == "" {
			return &ValidationError{Param: name, Reason: "required parameter missing"}
		}
	}
	if spec.validate != nil {
		if err := spec.validate(p); err != nil {
			return err
		}
	}
	if action == ActionAttackDeauth {
		if err := e.resolveDeauthTarget(p); err != nil {
			return err
		}
	}

	cmd := spec.render(p)
	if err := e.transport.Write(cmd); err != nil {
		return fmt.Errorf("engine: command write failed: %w", err)
	}

	if state, ok := spec.scanState(p); ok {
		e.scanState = state
	}
	e.appendActivity("Action", spec.logMsg(p))
	e.notify(Notification{Kind: "action"})
	return nil
}

// resolveDeauthTarget maps a target AP address onto the firmware's scan
// index, which is the position of the AP in discovery order. Called with
// the engine lock held.
func (e *Engine) resolveDeauthTarget(p Params) error {
	want := models.NormalizeAddress(p["target"])
	for i, rec := range e.apOrder {
		if models.NormalizeAddress(rec.Address) == want {
			p["index"] = fmt.Sprintf("%d", i)
			p["ssid"] = rec.Name
			return nil
		}
	}
	return &ValidationError{Param: "target", Reason: "no such access point in inventory"}
}

// StartRecording opens a new session file and begins persisting every
// subsequent event. Idempotent: if recording is already active, the
// current session path is returned unchanged.
func (e *Engine) StartRecording() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		return e.session.path, nil
	}
	w, err := newSessionWriter(e.sessionsDir, e.now())
	if err != nil {
		return "", err
	}
	e.session = w
	e.appendActivity("Session", "Session recording started: "+w.path)
	e.notify(Notification{Kind: "session"})
	return w.path, nil
}

// StopRecording closes the active session file. Idempotent.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return nil
	}
	err := e.session.close()
	e.appendActivity("Session", "Session recording stopped: "+e.session.path)
	e.session = nil
	e.notify(Notification{Kind: "session"})
	return err
}

// ClearResults wipes all inventories. The activity feed survives.
func (e *Engine) ClearResults() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.aps = make(map[string]*models.DeviceRecord)
	e.stations = make(map[string]*models.DeviceRecord)
	e.ble = make(map[string]*models.DeviceRecord)
	e.apOrder = nil
	e.stationOrder = nil
	e.bleOrder = nil
	e.appendActivity("Session", "Results cleared")
	e.notify(Notification{Kind: "clear"})
}

// -- snapshots ----------------------------------------------------------

// APs returns the AP inventory in discovery order.
func (e *Engine) APs() []models.DeviceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.apOrder)
}

// Stations returns the station inventory in discovery order.
func (e *Engine) Stations() []models.DeviceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.stationOrder)
}

// BLEDevices returns the BLE inventory in discovery order.
func (e *Engine) BLEDevices() []models.DeviceRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.bleOrder)
}

// Activity returns a copy of the activity feed, oldest first.
func (e *Engine) Activity() []models.ActivityLogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.ActivityLogEntry, len(e.activity))
	copy(out, e.activity)
	return out
}

// ScanState returns the current scan-state flag, empty when idle.
func (e *Engine) ScanState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanState
}

// IsConnected reports whether a live transport is attached.
func (e *Engine) IsConnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected
}

// IsRecording reports whether a session file is open.
func (e *Engine) IsRecording() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil
}

// SessionPath returns the active session file path, empty when idle.
func (e *Engine) SessionPath() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.path
}

// -- internals (engine lock held) ---------------------------------------

func (e *Engine) appendActivity(category, message string) {
	e.activity = append(e.activity, models.ActivityLogEntry{
		Timestamp: e.now(),
		Category:  category,
		Message:   message,
	})
	if len(e.activity) > activityLogMax {
		e.activity = e.activity[len(e.activity)-activityLogMax:]
	}
}

func (e *Engine) recordSession(ev protocol.Event) {
	if e.session == nil {
		return
	}
	if err := e.session.record(ev, e.now()); err != nil {
		e.logger.Errorf("Session write failed: %v", err)
	}
}

func (e *Engine) notify(n Notification) {
	for _, fn := range e.observers {
		e.safeNotify(fn, n)
	}
}

func (e *Engine) safeNotify(fn Observer, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorf("Observer panicked: %v", r)
		}
	}()
	fn(n)
}

func snapshot(order []*models.DeviceRecord) []models.DeviceRecord {
	out := make([]models.DeviceRecord, len(order))
	for i, rec := range order {
		out[i] = *rec
	}
	return out
}

func copyRecord(rec *models.DeviceRecord) *models.DeviceRecord {
	if rec == nil {
		return nil
	}
	c := *rec
	return &c
}
