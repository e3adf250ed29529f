package panel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/scadakit/scadakit/config"
	"github.com/scadakit/scadakit/telemetry"
)

// User identifies the operator driving this panel session.
type User struct {
	ID    string
	Name  string
	Level string
	Roles []config.Role
}

// Sinks are the injected callbacks through which the panel affects the
// outside world. All of them are fire-and-forget; the panel never awaits an
// acknowledgment through them.
type Sinks struct {
	// Command forwards an accepted operator command to the device layer.
	Command CommandSink
	// AlarmAcknowledge informs the external alarm source of an acknowledgment.
	AlarmAcknowledge func(alarmID string)
	// EmergencyStop informs external safety systems of a stop request.
	EmergencyStop func()
	// DiagramUpdate publishes a replaced diagram to the hosting page.
	DiagramUpdate func(config.DiagramConfig)
}

// DispatchOutcome reports what a command gesture produced: an immediate
// dispatch, a pending confirmation, or (via the error) a rejection.
type DispatchOutcome struct {
	Dispatched bool        `json:"dispatched"`
	Pending    bool        `json:"pending"`
	Value      interface{} `json:"value,omitempty"`
}

type pendingCommand struct {
	widget config.WidgetConfig
	value  interface{}
}

// Panel is the SCADA control core: it owns the composed session state,
// routes operator gestures to the dispatcher, alarm manager and interlock,
// and derives the status banner from the current alarm and safety state.
//
// All state lives in the struct; nothing is global, so independent panels can
// coexist in one process and tests construct panels freely.
type Panel struct {
	cfg       *config.Config
	logger    zerolog.Logger
	collector telemetry.Collector
	clock     Clock
	user      User
	sinks     Sinks

	devices    *statusStore
	alarms     *alarmSet
	actions    *actionLog
	stop       *stopController
	projector  *projector
	dispatcher *dispatcher

	mu             sync.Mutex
	diagram        config.DiagramConfig
	mode           Mode
	selected       string
	alarmPanelOpen bool
	pending        *pendingCommand
	liveView       *liveViewServer
}

// Option adjusts panel construction.
type Option func(*Panel)

// WithClock injects an alternative clock, typically a virtual one in tests.
func WithClock(clock Clock) Option {
	return func(p *Panel) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithCollector injects a telemetry collector.
func WithCollector(collector telemetry.Collector) Option {
	return func(p *Panel) {
		if collector != nil {
			p.collector = collector
		}
	}
}

// New builds a panel from a validated configuration, the injected sinks and
// the operator identity. Host-supplied initial state (device snapshots,
// alarms) is pushed in afterwards through UpdateDeviceStatus and
// ReplaceAlarms.
func New(cfg *config.Config, sinks Sinks, user User, logger zerolog.Logger, opts ...Option) (*Panel, error) {
	if cfg == nil {
		return nil, errors.New("config must not be nil")
	}
	if sinks.Command == nil {
		return nil, errors.New("command sink must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Panel{
		cfg:       cfg,
		logger:    logger.With().Str("component", "panel").Logger(),
		collector: telemetry.Noop(),
		clock:     SystemClock(),
		user:      user,
		sinks:     sinks,
		devices:   newStatusStore(),
		alarms:    newAlarmSet(),
		actions:   newActionLog(cfg.ActionLog.Limit()),
		diagram:   cfg.Diagram,
		mode:      ModeAuto,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	projector, err := newProjector(cfg.Diagram.Widgets)
	if err != nil {
		return nil, err
	}
	p.projector = projector
	p.stop = newStopController(cfg.Safety.Cooldown(), p.clock, logger)
	p.dispatcher = &dispatcher{
		devices:   p.devices,
		log:       p.actions,
		stop:      p.stop,
		sink:      sinks.Command,
		collector: p.collector,
		clock:     p.clock,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
	}
	return p, nil
}

func newAction(actor User, typ ActionType, ts time.Time, base OperatorAction) OperatorAction {
	base.ID = uuid.NewString()
	base.Timestamp = ts
	base.UserID = actor.ID
	base.UserName = actor.Name
	base.Level = actor.Level
	base.Type = typ
	return base
}

// UpdateDeviceStatus replaces the stored snapshot for one device.
func (p *Panel) UpdateDeviceStatus(status DeviceStatus) {
	p.devices.replace(status)
}

// DeviceStatus returns the latest snapshot for a device, if any.
func (p *Panel) DeviceStatus(deviceID string) (DeviceStatus, bool) {
	return p.devices.get(deviceID)
}

// ReplaceAlarms swaps the local alarm view wholesale.
func (p *Panel) ReplaceAlarms(alarms []Alarm) {
	p.alarms.replace(alarms)
	p.collector.SetActiveAlarms(p.alarms.activeCount())
}

// UpsertAlarm inserts or updates a single alarm from the external source.
func (p *Panel) UpsertAlarm(alarm Alarm) {
	p.alarms.upsert(alarm)
	p.collector.SetActiveAlarms(p.alarms.activeCount())
}

// ClearAlarm marks an alarm cleared on behalf of the external source.
func (p *Panel) ClearAlarm(alarmID string) {
	if p.alarms.clear(alarmID) {
		p.collector.SetActiveAlarms(p.alarms.activeCount())
	}
}

// RequestCommand routes a widget gesture. Widgets configured with a
// confirmation step park the command until ConfirmPending or CancelPending;
// everything else dispatches immediately.
func (p *Panel) RequestCommand(widgetID string, value interface{}) (DispatchOutcome, error) {
	p.mu.Lock()
	widget, ok := p.diagram.Widget(widgetID)
	if !ok {
		p.mu.Unlock()
		return DispatchOutcome{}, fmt.Errorf("%w: %s", ErrUnknownWidget, widgetID)
	}
	if widget.Confirm {
		p.pending = &pendingCommand{widget: widget, value: value}
		p.mu.Unlock()
		return DispatchOutcome{Pending: true}, nil
	}
	p.mu.Unlock()

	sent, err := p.dispatcher.dispatch(widget, value, p.user)
	if err != nil {
		return DispatchOutcome{}, err
	}
	return DispatchOutcome{Dispatched: true, Value: sent}, nil
}

// ConfirmPending dispatches the parked command after the operator's explicit
// confirmation gesture.
func (p *Panel) ConfirmPending() (DispatchOutcome, error) {
	p.mu.Lock()
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()
	if pending == nil {
		return DispatchOutcome{}, ErrNoPendingCommand
	}
	sent, err := p.dispatcher.dispatch(pending.widget, pending.value, p.user)
	if err != nil {
		return DispatchOutcome{}, err
	}
	return DispatchOutcome{Dispatched: true, Value: sent}, nil
}

// CancelPending drops the parked command. No dispatch, no audit entry.
func (p *Panel) CancelPending() {
	p.mu.Lock()
	p.pending = nil
	p.mu.Unlock()
}

// PendingConfirmation reports whether a command awaits confirmation.
func (p *Panel) PendingConfirmation() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending != nil
}

// AcknowledgeAlarm transitions an alarm to acknowledged, raises the request
// towards the external alarm source and appends the audit record.
func (p *Panel) AcknowledgeAlarm(alarmID string) error {
	alarm, err := p.alarms.acknowledge(alarmID)
	if err != nil {
		return err
	}
	if p.sinks.AlarmAcknowledge != nil {
		p.sinks.AlarmAcknowledge(alarmID)
	}
	p.actions.append(newAction(p.user, ActionAcknowledge, p.clock.Now(), OperatorAction{
		DeviceID:  alarm.DeviceID,
		Parameter: alarm.Parameter,
		Comment:   fmt.Sprintf("Acknowledged alarm: %s", alarm.Message),
	}))
	p.collector.IncAlarmAcknowledged()
	p.collector.SetActiveAlarms(p.alarms.activeCount())
	p.logger.Info().Str("alarm", alarmID).Str("user", p.user.Name).Msg("alarm acknowledged")
	return nil
}

// TriggerEmergencyStop trips the interlock. While already tripped the request
// is a no-op and neither the sink nor the audit log sees it again.
func (p *Panel) TriggerEmergencyStop() bool {
	if !p.stop.trip() {
		return false
	}
	if p.sinks.EmergencyStop != nil {
		p.sinks.EmergencyStop()
	}
	p.actions.append(newAction(p.user, ActionEmergency, p.clock.Now(), OperatorAction{
		Comment: "Emergency stop activated",
	}))
	p.collector.IncEmergencyStop()
	return true
}

// EmergencyStopActive reports the interlock state.
func (p *Panel) EmergencyStopActive() bool {
	return p.stop.isActive()
}

// EmergencyStopDeadline returns the pending reversion deadline while tripped.
func (p *Panel) EmergencyStopDeadline() (time.Time, bool) {
	active, deadline := p.stop.state()
	return deadline, active
}

// SetMode switches the panel operating mode. Mode changes are local UI state
// but still audited like device commands, and are refused while the
// interlock is tripped.
func (p *Panel) SetMode(mode Mode) error {
	if !ValidMode(mode) {
		return fmt.Errorf("%w: %s", ErrInvalidMode, mode)
	}
	if p.stop.isActive() {
		return ErrEmergencyStopActive
	}
	p.mu.Lock()
	old := p.mode
	p.mode = mode
	p.mu.Unlock()
	if old == mode {
		return nil
	}
	p.actions.append(newAction(p.user, ActionControl, p.clock.Now(), OperatorAction{
		Parameter: "system_mode",
		OldValue:  string(old),
		NewValue:  string(mode),
		Comment:   fmt.Sprintf("Changed system_mode from %s to %s", old, mode),
	}))
	return nil
}

// Mode returns the current panel operating mode.
func (p *Panel) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode
}

// SelectWidget marks a widget as selected in the UI.
func (p *Panel) SelectWidget(widgetID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if widgetID != "" {
		if _, ok := p.diagram.Widget(widgetID); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownWidget, widgetID)
		}
	}
	p.selected = widgetID
	return nil
}

// SelectedWidget returns the selected widget id, empty when none.
func (p *Panel) SelectedWidget() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// SetAlarmPanelOpen toggles the alarm side panel.
func (p *Panel) SetAlarmPanelOpen(open bool) {
	p.mu.Lock()
	p.alarmPanelOpen = open
	p.mu.Unlock()
}

// AlarmPanelOpen reports the alarm side panel visibility.
func (p *Panel) AlarmPanelOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.alarmPanelOpen
}

// Status derives the system banner from the interlock and the alarm set.
func (p *Panel) Status() Banner {
	return deriveBanner(p.stop.isActive(), p.alarms)
}

// Project returns the render state for one widget against current telemetry.
func (p *Panel) Project(widgetID string) (RenderState, error) {
	p.mu.Lock()
	widget, ok := p.diagram.Widget(widgetID)
	p.mu.Unlock()
	if !ok {
		return RenderState{}, fmt.Errorf("%w: %s", ErrUnknownWidget, widgetID)
	}
	status, present := p.devices.get(widget.Device)
	return p.projector.project(widget, status, present, p.user.Roles, p.stop.isActive()), nil
}

// RenderStates projects every widget of the active diagram in diagram order.
func (p *Panel) RenderStates() []RenderState {
	p.mu.Lock()
	widgets := append([]config.WidgetConfig(nil), p.diagram.Widgets...)
	p.mu.Unlock()
	stopActive := p.stop.isActive()
	out := make([]RenderState, 0, len(widgets))
	for _, widget := range widgets {
		status, present := p.devices.get(widget.Device)
		out = append(out, p.projector.project(widget, status, present, p.user.Roles, stopActive))
	}
	return out
}

// Alarms returns the ranked alarm view.
func (p *Panel) Alarms() []Alarm {
	return p.alarms.snapshot()
}

// ActiveAlarmCount returns the badge count of active alarms.
func (p *Panel) ActiveAlarmCount() int {
	return p.alarms.activeCount()
}

// Actions returns the bounded action feed, most recent first.
func (p *Panel) Actions() []OperatorAction {
	return p.actions.snapshot()
}

// ReplaceDiagram swaps the active diagram after validating it against the
// panel's device inventory and publishes it through the diagram sink. Used by
// diagram edit flows hosted outside this core.
func (p *Panel) ReplaceDiagram(diagram config.DiagramConfig) error {
	candidate := *p.cfg
	candidate.Diagram = diagram
	if err := candidate.Validate(); err != nil {
		return err
	}
	projector, err := newProjector(diagram.Widgets)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.diagram = diagram
	p.projector = projector
	p.selected = ""
	p.pending = nil
	p.mu.Unlock()
	if p.sinks.DiagramUpdate != nil {
		p.sinks.DiagramUpdate(diagram)
	}
	p.logger.Info().Str("diagram", diagram.Name).Int("widgets", len(diagram.Widgets)).Msg("diagram replaced")
	return nil
}

// EnableLiveView starts the embedded HTTP state server.
func (p *Panel) EnableLiveView(listen string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liveView != nil {
		return errors.New("live view already enabled")
	}
	if listen == "" {
		listen = ":18090"
	}
	logger := p.logger.With().Str("component", "live_view").Logger()
	server, err := newLiveViewServer(listen, p, logger)
	if err != nil {
		return err
	}
	p.liveView = server
	return nil
}

// LiveViewAddress returns the live view listen address, if enabled.
func (p *Panel) LiveViewAddress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.liveView == nil {
		return ""
	}
	return p.liveView.address()
}

// Close releases background resources held by the panel.
func (p *Panel) Close() error {
	p.mu.Lock()
	liveView := p.liveView
	p.liveView = nil
	p.mu.Unlock()
	if liveView != nil {
		liveView.close()
	}
	return nil
}
