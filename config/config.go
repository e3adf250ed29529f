package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration to support YAML unmarshalling from strings.
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses duration strings like "5s" or "1m".
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value == nil {
		return fmt.Errorf("duration value node is nil")
	}
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode duration: %w", err)
	}
	if raw == "" {
		d.Duration = 0
		return nil
	}
	dur, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = dur
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// Role names an operator role that may be granted on a widget.
type Role string

// WidgetType discriminates the widget union.
type WidgetType string

const (
	// WidgetButton toggles a boolean parameter on click.
	WidgetButton WidgetType = "button"
	// WidgetSlider commits numeric setpoints clamped to a step grid.
	WidgetSlider WidgetType = "slider"
	// WidgetGauge renders a numeric parameter read-only.
	WidgetGauge WidgetType = "gauge"
	// WidgetIndicator renders a boolean parameter read-only.
	WidgetIndicator WidgetType = "indicator"
	// WidgetSwitch toggles a boolean parameter with an on/off affordance.
	WidgetSwitch WidgetType = "switch"
	// WidgetText renders a parameter as formatted text.
	WidgetText WidgetType = "text"
	// WidgetAlarm reflects whether the bound device has active alarms.
	WidgetAlarm WidgetType = "alarm"
)

// MutatingType reports whether widgets of this type dispatch commands.
func (t WidgetType) MutatingType() bool {
	switch t {
	case WidgetButton, WidgetSlider, WidgetSwitch:
		return true
	default:
		return false
	}
}

// PositionConfig places a widget on the diagram canvas. Layout only.
type PositionConfig struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

// ButtonSettings configures a button widget.
type ButtonSettings struct {
	OnLabel  string `yaml:"on_label,omitempty"`
	OffLabel string `yaml:"off_label,omitempty"`
	Color    string `yaml:"color,omitempty"`
}

// SliderSettings configures a slider widget. Committed values are clamped to
// the [Min,Max] range and quantized to Step increments.
type SliderSettings struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
	Unit string  `yaml:"unit,omitempty"`
}

// GaugeSettings configures a gauge widget.
type GaugeSettings struct {
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max"`
	Unit   string  `yaml:"unit,omitempty"`
	Format string  `yaml:"format,omitempty"`
}

// IndicatorSettings configures an indicator widget.
type IndicatorSettings struct {
	OnColor  string `yaml:"on_color,omitempty"`
	OffColor string `yaml:"off_color,omitempty"`
}

// SwitchSettings configures a switch widget.
type SwitchSettings struct {
	OnLabel  string `yaml:"on_label,omitempty"`
	OffLabel string `yaml:"off_label,omitempty"`
}

// TextSettings configures a text widget.
type TextSettings struct {
	Format string `yaml:"format,omitempty"`
	Unit   string `yaml:"unit,omitempty"`
}

// AlarmSettings configures an alarm widget.
type AlarmSettings struct {
	Blink bool `yaml:"blink,omitempty"`
}

// WidgetConfig binds one control or display element to a device parameter.
//
// The variant block matching Type carries the type-specific settings; setting
// a block that does not match Type is a validation error so the union stays
// closed even though YAML cannot express it directly.
type WidgetConfig struct {
	ID          string         `yaml:"id"`
	Type        WidgetType     `yaml:"type"`
	Device      string         `yaml:"device"`
	Parameter   string         `yaml:"parameter,omitempty"`
	Label       string         `yaml:"label,omitempty"`
	Position    PositionConfig `yaml:"position,omitempty"`
	Permissions []Role         `yaml:"permissions,omitempty"`
	Visible     *bool          `yaml:"visible,omitempty"`
	Enabled     *bool          `yaml:"enabled,omitempty"`
	ReadOnly    bool           `yaml:"read_only,omitempty"`
	Confirm     bool           `yaml:"confirm,omitempty"`

	// Optional rule expressions evaluated against the bound device's
	// parameters. An empty rule means "always".
	VisibleWhen string `yaml:"visible_when,omitempty"`
	EnabledWhen string `yaml:"enabled_when,omitempty"`

	Button    *ButtonSettings    `yaml:"button,omitempty"`
	Slider    *SliderSettings    `yaml:"slider,omitempty"`
	Gauge     *GaugeSettings     `yaml:"gauge,omitempty"`
	Indicator *IndicatorSettings `yaml:"indicator,omitempty"`
	Switch    *SwitchSettings    `yaml:"switch,omitempty"`
	Text      *TextSettings      `yaml:"text,omitempty"`
	Alarm     *AlarmSettings     `yaml:"alarm,omitempty"`
}

// IsVisible reports the static visibility flag, defaulting to true.
func (w WidgetConfig) IsVisible() bool {
	if w.Visible == nil {
		return true
	}
	return *w.Visible
}

// IsEnabled reports the static enablement flag, defaulting to true.
func (w WidgetConfig) IsEnabled() bool {
	if w.Enabled == nil {
		return true
	}
	return *w.Enabled
}

// HasPermission reports whether any of the caller roles intersects the
// widget's permission set. Widgets without permissions are open to all roles.
func (w WidgetConfig) HasPermission(roles []Role) bool {
	if len(w.Permissions) == 0 {
		return true
	}
	for _, need := range w.Permissions {
		for _, have := range roles {
			if need == have {
				return true
			}
		}
	}
	return false
}

func (w WidgetConfig) variantBlocks() map[WidgetType]bool {
	return map[WidgetType]bool{
		WidgetButton:    w.Button != nil,
		WidgetSlider:    w.Slider != nil,
		WidgetGauge:     w.Gauge != nil,
		WidgetIndicator: w.Indicator != nil,
		WidgetSwitch:    w.Switch != nil,
		WidgetText:      w.Text != nil,
		WidgetAlarm:     w.Alarm != nil,
	}
}

func (w WidgetConfig) validate() error {
	if w.ID == "" {
		return errors.New("widget id must not be empty")
	}
	if w.Device == "" {
		return fmt.Errorf("widget %s: device must not be empty", w.ID)
	}
	blocks := w.variantBlocks()
	if _, known := blocks[w.Type]; !known {
		return fmt.Errorf("widget %s: unknown type %q", w.ID, w.Type)
	}
	for typ, set := range blocks {
		if set && typ != w.Type {
			return fmt.Errorf("widget %s: %s settings present on widget of type %s", w.ID, typ, w.Type)
		}
	}
	switch w.Type {
	case WidgetSlider:
		if w.Slider == nil {
			return fmt.Errorf("widget %s: slider settings required", w.ID)
		}
		if w.Slider.Step <= 0 {
			return fmt.Errorf("widget %s: slider step must be positive", w.ID)
		}
		if w.Slider.Max <= w.Slider.Min {
			return fmt.Errorf("widget %s: slider max must exceed min", w.ID)
		}
	case WidgetGauge:
		if w.Gauge != nil && w.Gauge.Max <= w.Gauge.Min {
			return fmt.Errorf("widget %s: gauge max must exceed min", w.ID)
		}
	case WidgetAlarm:
		// Alarm widgets reflect the device alarm set, not a parameter.
	default:
		if w.Parameter == "" {
			return fmt.Errorf("widget %s: parameter must not be empty", w.ID)
		}
	}
	if w.Type.MutatingType() && w.Parameter == "" {
		return fmt.Errorf("widget %s: parameter must not be empty", w.ID)
	}
	return nil
}

// DeviceConfig declares a device the diagram may reference.
type DeviceConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// ZoneConfig groups widgets visually.
type ZoneConfig struct {
	ID      string   `yaml:"id"`
	Label   string   `yaml:"label,omitempty"`
	Color   string   `yaml:"color,omitempty"`
	Widgets []string `yaml:"widgets,omitempty"`
}

// ConnectionConfig draws a link between two widgets. Visual only.
type ConnectionConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Kind string `yaml:"kind,omitempty"`
}

// DiagramConfig is the process diagram document rendered by one panel.
type DiagramConfig struct {
	Name        string             `yaml:"name,omitempty"`
	Active      bool               `yaml:"active"`
	Devices     []DeviceConfig     `yaml:"devices"`
	Widgets     []WidgetConfig     `yaml:"widgets"`
	Zones       []ZoneConfig       `yaml:"zones,omitempty"`
	Connections []ConnectionConfig `yaml:"connections,omitempty"`
}

// Widget returns the widget with the given id.
func (d DiagramConfig) Widget(id string) (WidgetConfig, bool) {
	for _, w := range d.Widgets {
		if w.ID == id {
			return w, true
		}
	}
	return WidgetConfig{}, false
}

// SafetyConfig tunes the emergency-stop interlock.
type SafetyConfig struct {
	EmergencyCooldown Duration `yaml:"emergency_cooldown,omitempty"`
}

// Cooldown returns the configured reversion delay, defaulting to five seconds.
func (s SafetyConfig) Cooldown() time.Duration {
	if s.EmergencyCooldown.Duration <= 0 {
		return 5 * time.Second
	}
	return s.EmergencyCooldown.Duration
}

// ActionLogConfig bounds the operator action feed.
type ActionLogConfig struct {
	Capacity int `yaml:"capacity,omitempty"`
}

// Limit returns the configured capacity, defaulting to fifty entries.
func (a ActionLogConfig) Limit() int {
	if a.Capacity <= 0 {
		return 50
	}
	return a.Capacity
}

// LokiConfig forwards logs to a Loki endpoint.
type LokiConfig struct {
	Enabled bool              `yaml:"enabled"`
	URL     string            `yaml:"url"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

// LoggingConfig controls the zerolog setup.
type LoggingConfig struct {
	Level  string     `yaml:"level,omitempty"`
	Format string     `yaml:"format,omitempty"`
	Loki   LokiConfig `yaml:"loki,omitempty"`
}

// TelemetryConfig enables runtime metric emission.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider,omitempty"`
	Listen   string `yaml:"listen,omitempty"`
}

// FeedConfig connects the panel to an MQTT telemetry source.
type FeedConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Broker         string   `yaml:"broker,omitempty"`
	ClientID       string   `yaml:"client_id,omitempty"`
	Username       string   `yaml:"username,omitempty"`
	Password       string   `yaml:"password,omitempty"`
	StatusTopic    string   `yaml:"status_topic,omitempty"`
	AlarmTopic     string   `yaml:"alarm_topic,omitempty"`
	CommandTopic   string   `yaml:"command_topic,omitempty"`
	AckTopic       string   `yaml:"ack_topic,omitempty"`
	StopTopic      string   `yaml:"stop_topic,omitempty"`
	QoS            byte     `yaml:"qos,omitempty"`
	ConnectTimeout Duration `yaml:"connect_timeout,omitempty"`
}

// LiveViewConfig enables the embedded HTTP state server.
type LiveViewConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen,omitempty"`
}

// Config is the root configuration structure for one panel instance.
type Config struct {
	Name        string          `yaml:"name,omitempty"`
	Description string          `yaml:"description,omitempty"`
	Diagram     DiagramConfig   `yaml:"diagram"`
	Safety      SafetyConfig    `yaml:"safety,omitempty"`
	ActionLog   ActionLogConfig `yaml:"action_log,omitempty"`
	Logging     LoggingConfig   `yaml:"logging,omitempty"`
	Telemetry   TelemetryConfig `yaml:"telemetry,omitempty"`
	Feed        FeedConfig      `yaml:"feed,omitempty"`
	LiveView    LiveViewConfig  `yaml:"live_view,omitempty"`
}

// Load reads and decodes the configuration file from disk.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path must not be empty")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a configuration document and validates it.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(raw)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks structural invariants of the document: unique widget and
// device ids, variant blocks matching the declared widget type, and every
// widget, zone and connection referencing entities the document declares.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config must not be nil")
	}
	devices := make(map[string]struct{}, len(c.Diagram.Devices))
	for _, dev := range c.Diagram.Devices {
		if dev.ID == "" {
			return errors.New("device id must not be empty")
		}
		if _, dup := devices[dev.ID]; dup {
			return fmt.Errorf("duplicate device id %q", dev.ID)
		}
		devices[dev.ID] = struct{}{}
	}
	widgets := make(map[string]struct{}, len(c.Diagram.Widgets))
	for _, w := range c.Diagram.Widgets {
		if err := w.validate(); err != nil {
			return err
		}
		if _, dup := widgets[w.ID]; dup {
			return fmt.Errorf("duplicate widget id %q", w.ID)
		}
		widgets[w.ID] = struct{}{}
		if _, ok := devices[w.Device]; !ok {
			return fmt.Errorf("widget %s references unknown device %q", w.ID, w.Device)
		}
	}
	for _, zone := range c.Diagram.Zones {
		if zone.ID == "" {
			return errors.New("zone id must not be empty")
		}
		for _, ref := range zone.Widgets {
			if _, ok := widgets[ref]; !ok {
				return fmt.Errorf("zone %s references unknown widget %q", zone.ID, ref)
			}
		}
	}
	for _, conn := range c.Diagram.Connections {
		if _, ok := widgets[conn.From]; !ok {
			return fmt.Errorf("connection references unknown widget %q", conn.From)
		}
		if _, ok := widgets[conn.To]; !ok {
			return fmt.Errorf("connection references unknown widget %q", conn.To)
		}
	}
	if c.Feed.Enabled {
		if c.Feed.Broker == "" {
			return errors.New("feed enabled but broker missing")
		}
		if c.Feed.StatusTopic == "" {
			return errors.New("feed enabled but status topic missing")
		}
		if c.Feed.QoS > 2 {
			return fmt.Errorf("feed qos %d out of range", c.Feed.QoS)
		}
	}
	return nil
}
