package panel

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/scadakit/scadakit/config"
)

type fakeTimer struct {
	at time.Time
	fn func()
}

// fakeClock drives the interlock cool-down with virtual time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) {
	c.mu.Lock()
	c.timers = append(c.timers, fakeTimer{at: c.now.Add(d), fn: fn})
	c.mu.Unlock()
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	remaining := c.timers[:0]
	for _, timer := range c.timers {
		if !timer.at.After(c.now) {
			due = append(due, timer.fn)
		} else {
			remaining = append(remaining, timer)
		}
	}
	c.timers = remaining
	c.mu.Unlock()
	for _, fn := range due {
		fn()
	}
}

type sinkCommand struct {
	Device    string
	Parameter string
	Value     interface{}
}

// sinkRecorder captures everything the panel pushes towards the outside.
type sinkRecorder struct {
	mu       sync.Mutex
	commands []sinkCommand
	acks     []string
	stops    int
}

func (r *sinkRecorder) sinks() Sinks {
	return Sinks{
		Command: func(deviceID, parameter string, value interface{}) {
			r.mu.Lock()
			r.commands = append(r.commands, sinkCommand{Device: deviceID, Parameter: parameter, Value: value})
			r.mu.Unlock()
		},
		AlarmAcknowledge: func(alarmID string) {
			r.mu.Lock()
			r.acks = append(r.acks, alarmID)
			r.mu.Unlock()
		},
		EmergencyStop: func() {
			r.mu.Lock()
			r.stops++
			r.mu.Unlock()
		},
	}
}

func (r *sinkRecorder) commandCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.commands)
}

func (r *sinkRecorder) lastCommand(t *testing.T) sinkCommand {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.commands) == 0 {
		t.Fatal("no command recorded")
	}
	return r.commands[len(r.commands)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Name: "test panel",
		Diagram: config.DiagramConfig{
			Active:  true,
			Devices: []config.DeviceConfig{{ID: "pump1"}, {ID: "tank1"}},
			Widgets: []config.WidgetConfig{
				{
					ID:          "start",
					Type:        config.WidgetButton,
					Device:      "pump1",
					Parameter:   "running",
					Permissions: []config.Role{"operator"},
				},
				{
					ID:          "setpoint",
					Type:        config.WidgetSlider,
					Device:      "pump1",
					Parameter:   "setpoint",
					Permissions: []config.Role{"operator"},
					Slider:      &config.SliderSettings{Min: 0, Max: 100, Step: 5},
				},
				{
					ID:        "flow",
					Type:      config.WidgetGauge,
					Device:    "pump1",
					Parameter: "flow",
					Gauge:     &config.GaugeSettings{Min: 0, Max: 500, Unit: "l/min"},
				},
				{
					ID:          "drain",
					Type:        config.WidgetSwitch,
					Device:      "tank1",
					Parameter:   "drain_open",
					Permissions: []config.Role{"supervisor"},
					Confirm:     true,
				},
				{
					ID:        "locked",
					Type:      config.WidgetSwitch,
					Device:    "pump1",
					Parameter: "bypass",
					ReadOnly:  true,
				},
				{
					ID:     "pump_alarm",
					Type:   config.WidgetAlarm,
					Device: "pump1",
					Alarm:  &config.AlarmSettings{Blink: true},
				},
			},
		},
		Safety: config.SafetyConfig{
			EmergencyCooldown: config.Duration{Duration: 5 * time.Second},
		},
	}
}

func pumpStatus() DeviceStatus {
	now := time.Date(2024, 3, 1, 7, 59, 0, 0, time.UTC)
	return DeviceStatus{
		DeviceID:  "pump1",
		Timestamp: now,
		State:     DeviceRunning,
		Mode:      DeviceModeAuto,
		Parameters: map[string]Parameter{
			"running":  {Value: true, Quality: QualityGood, Timestamp: now},
			"setpoint": {Value: 75.0, Quality: QualityGood, Timestamp: now},
			"flow":     {Value: 320.5, Unit: "l/min", Quality: QualityGood, Timestamp: now},
			"bypass":   {Value: false, Quality: QualityGood, Timestamp: now},
		},
	}
}

func testUser(roles ...config.Role) User {
	if len(roles) == 0 {
		roles = []config.Role{"operator"}
	}
	return User{ID: "u-1", Name: "alice", Level: "operator", Roles: roles}
}

func newTestPanel(t *testing.T, user User) (*Panel, *sinkRecorder, *fakeClock) {
	t.Helper()
	recorder := &sinkRecorder{}
	clock := newFakeClock()
	p, err := New(testConfig(), recorder.sinks(), user, zerolog.Nop(), WithClock(clock))
	if err != nil {
		t.Fatalf("new panel: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	p.UpdateDeviceStatus(pumpStatus())
	return p, recorder, clock
}

func actionsOfType(actions []OperatorAction, typ ActionType) []OperatorAction {
	var out []OperatorAction
	for _, action := range actions {
		if action.Type == typ {
			out = append(out, action)
		}
	}
	return out
}
