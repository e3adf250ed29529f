package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `
name: "line 4 panel"
diagram:
    active: true
    devices:
        - id: pump1
          name: "Feed pump"
        - id: tank1
    widgets:
        - id: start
          type: button
          device: pump1
          parameter: running
          permissions: [operator]
          confirm: true
          button:
              on_label: "Start"
              off_label: "Stop"
        - id: setpoint
          type: slider
          device: pump1
          parameter: setpoint
          slider:
              min: 0
              max: 100
              step: 5
              unit: "%"
        - id: level
          type: gauge
          device: tank1
          parameter: level
          gauge:
              min: 0
              max: 2000
              unit: l
    zones:
        - id: intake
          label: "Intake"
          widgets: [start, setpoint]
    connections:
        - from: start
          to: level
safety:
    emergency_cooldown: "8s"
action_log:
    capacity: 25
logging:
    level: debug
    format: text
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "panel.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Name != "line 4 panel" {
		t.Fatalf("name = %q", cfg.Name)
	}
	if len(cfg.Diagram.Widgets) != 3 {
		t.Fatalf("widgets = %d, want 3", len(cfg.Diagram.Widgets))
	}
	if cfg.Safety.Cooldown() != 8*time.Second {
		t.Fatalf("cooldown = %v, want 8s", cfg.Safety.Cooldown())
	}
	if cfg.ActionLog.Limit() != 25 {
		t.Fatalf("capacity = %d, want 25", cfg.ActionLog.Limit())
	}

	widget, ok := cfg.Diagram.Widget("setpoint")
	if !ok {
		t.Fatal("setpoint widget missing")
	}
	if widget.Slider == nil || widget.Slider.Step != 5 {
		t.Fatalf("slider settings = %+v", widget.Slider)
	}
}

func TestDefaults(t *testing.T) {
	var safety SafetyConfig
	if safety.Cooldown() != 5*time.Second {
		t.Fatalf("default cooldown = %v, want 5s", safety.Cooldown())
	}
	var log ActionLogConfig
	if log.Limit() != 50 {
		t.Fatalf("default capacity = %d, want 50", log.Limit())
	}
}

func TestValidateDuplicateWidget(t *testing.T) {
	cfg := &Config{Diagram: DiagramConfig{
		Devices: []DeviceConfig{{ID: "d1"}},
		Widgets: []WidgetConfig{
			{ID: "w", Type: WidgetGauge, Device: "d1", Parameter: "p"},
			{ID: "w", Type: WidgetGauge, Device: "d1", Parameter: "p"},
		},
	}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "duplicate widget id") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateUnknownDevice(t *testing.T) {
	cfg := &Config{Diagram: DiagramConfig{
		Widgets: []WidgetConfig{{ID: "w", Type: WidgetGauge, Device: "ghost", Parameter: "p"}},
	}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unknown device") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateVariantMismatch(t *testing.T) {
	cfg := &Config{Diagram: DiagramConfig{
		Devices: []DeviceConfig{{ID: "d1"}},
		Widgets: []WidgetConfig{{
			ID:        "w",
			Type:      WidgetButton,
			Device:    "d1",
			Parameter: "p",
			Slider:    &SliderSettings{Min: 0, Max: 1, Step: 1},
		}},
	}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "slider settings present") {
		t.Fatalf("err = %v", err)
	}
}

func TestValidateSliderSettings(t *testing.T) {
	base := func(settings *SliderSettings) *Config {
		return &Config{Diagram: DiagramConfig{
			Devices: []DeviceConfig{{ID: "d1"}},
			Widgets: []WidgetConfig{{
				ID: "w", Type: WidgetSlider, Device: "d1", Parameter: "p", Slider: settings,
			}},
		}}
	}
	if err := base(nil).Validate(); err == nil {
		t.Fatal("missing slider settings accepted")
	}
	if err := base(&SliderSettings{Min: 0, Max: 10, Step: 0}).Validate(); err == nil {
		t.Fatal("zero step accepted")
	}
	if err := base(&SliderSettings{Min: 10, Max: 10, Step: 1}).Validate(); err == nil {
		t.Fatal("empty range accepted")
	}
	if err := base(&SliderSettings{Min: 0, Max: 10, Step: 1}).Validate(); err != nil {
		t.Fatalf("valid slider rejected: %v", err)
	}
}

func TestValidateUnknownWidgetType(t *testing.T) {
	cfg := &Config{Diagram: DiagramConfig{
		Devices: []DeviceConfig{{ID: "d1"}},
		Widgets: []WidgetConfig{{ID: "w", Type: "dial", Device: "d1", Parameter: "p"}},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown widget type accepted")
	}
}

func TestValidateZoneAndConnectionReferences(t *testing.T) {
	cfg := &Config{Diagram: DiagramConfig{
		Devices: []DeviceConfig{{ID: "d1"}},
		Widgets: []WidgetConfig{{ID: "w", Type: WidgetGauge, Device: "d1", Parameter: "p"}},
		Zones:   []ZoneConfig{{ID: "z", Widgets: []string{"ghost"}}},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("dangling zone reference accepted")
	}

	cfg = &Config{Diagram: DiagramConfig{
		Devices:     []DeviceConfig{{ID: "d1"}},
		Widgets:     []WidgetConfig{{ID: "w", Type: WidgetGauge, Device: "d1", Parameter: "p"}},
		Connections: []ConnectionConfig{{From: "w", To: "ghost"}},
	}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("dangling connection reference accepted")
	}
}

func TestValidateFeed(t *testing.T) {
	cfg := &Config{Feed: FeedConfig{Enabled: true}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("feed without broker accepted")
	}
	cfg = &Config{Feed: FeedConfig{Enabled: true, Broker: "tcp://localhost:1883"}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("feed without status topic accepted")
	}
	cfg = &Config{Feed: FeedConfig{Enabled: true, Broker: "tcp://localhost:1883", StatusTopic: "plant/+/status", QoS: 3}}
	if err := cfg.Validate(); err == nil {
		t.Fatal("qos 3 accepted")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	if _, err := Parse([]byte("diagram:\n    widgets: []\nunknown_section: true\n")); err == nil {
		t.Fatal("unknown field accepted")
	}
}

func TestMutatingTypes(t *testing.T) {
	mutating := []WidgetType{WidgetButton, WidgetSlider, WidgetSwitch}
	display := []WidgetType{WidgetGauge, WidgetIndicator, WidgetText, WidgetAlarm}
	for _, typ := range mutating {
		if !typ.MutatingType() {
			t.Fatalf("%s should be mutating", typ)
		}
	}
	for _, typ := range display {
		if typ.MutatingType() {
			t.Fatalf("%s should not be mutating", typ)
		}
	}
}

func TestHasPermission(t *testing.T) {
	open := WidgetConfig{}
	if !open.HasPermission(nil) {
		t.Fatal("widget without permission set must be open")
	}
	guarded := WidgetConfig{Permissions: []Role{"operator", "supervisor"}}
	if !guarded.HasPermission([]Role{"supervisor"}) {
		t.Fatal("matching role rejected")
	}
	if guarded.HasPermission([]Role{"viewer"}) {
		t.Fatal("non-matching role accepted")
	}
}
