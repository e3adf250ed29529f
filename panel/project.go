package panel

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/shopspring/decimal"

	"github.com/scadakit/scadakit/config"
)

// RenderState is the renderable projection of one widget against the current
// device snapshot. It is a pure function of its inputs; the renderer applies
// it without further interpretation.
type RenderState struct {
	WidgetID        string                `json:"widget_id"`
	Type            config.WidgetType     `json:"type"`
	Label           string                `json:"label,omitempty"`
	DeviceID        string                `json:"device_id"`
	Parameter       string                `json:"parameter,omitempty"`
	Value           interface{}           `json:"value"`
	Unit            string                `json:"unit,omitempty"`
	Quality         Quality               `json:"quality"`
	Visible         bool                  `json:"visible"`
	Enabled         bool                  `json:"enabled"`
	Degraded        bool                  `json:"degraded"`
	AlarmActive     bool                  `json:"alarm_active,omitempty"`
	RequiresConfirm bool                  `json:"requires_confirm,omitempty"`
	Position        config.PositionConfig `json:"position"`
}

type widgetRules struct {
	visible *vm.Program
	enabled *vm.Program
}

// projector compiles per-widget rule expressions once and derives render
// states from `(widget, deviceStatus)` pairs.
type projector struct {
	rules map[string]widgetRules
}

func newProjector(widgets []config.WidgetConfig) (*projector, error) {
	p := &projector{rules: make(map[string]widgetRules, len(widgets))}
	for _, widget := range widgets {
		var rules widgetRules
		var err error
		if widget.VisibleWhen != "" {
			rules.visible, err = compileRule(widget.VisibleWhen)
			if err != nil {
				return nil, fmt.Errorf("widget %s: visible_when: %w", widget.ID, err)
			}
		}
		if widget.EnabledWhen != "" {
			rules.enabled, err = compileRule(widget.EnabledWhen)
			if err != nil {
				return nil, fmt.Errorf("widget %s: enabled_when: %w", widget.ID, err)
			}
		}
		p.rules[widget.ID] = rules
	}
	return p, nil
}

func compileRule(src string) (*vm.Program, error) {
	return expr.Compile(src, expr.Env(map[string]interface{}{}), expr.AllowUndefinedVariables())
}

// project derives the render state for one widget. A device missing from the
// status map degrades to the safe default: quality bad, zero value, and
// disabled for mutating widget types.
func (p *projector) project(widget config.WidgetConfig, status DeviceStatus, present bool, roles []config.Role, stopActive bool) RenderState {
	state := RenderState{
		WidgetID:        widget.ID,
		Type:            widget.Type,
		Label:           widget.Label,
		DeviceID:        widget.Device,
		Parameter:       widget.Parameter,
		Quality:         QualityBad,
		Visible:         widget.IsVisible(),
		RequiresConfirm: widget.Confirm,
		Position:        widget.Position,
		Value:           defaultValue(widget.Type),
	}

	if present && status.State != DeviceOffline {
		if widget.Type == config.WidgetAlarm {
			state.Quality = QualityGood
			state.AlarmActive = len(status.Alarms) > 0
			state.Value = state.AlarmActive
		} else if param, ok := status.Parameters[widget.Parameter]; ok {
			state.Value = param.Value
			state.Unit = param.Unit
			state.Quality = param.Quality
		}
	}
	state.Degraded = state.Quality.Degraded()

	rules := p.rules[widget.ID]
	env := ruleEnv(status, present)
	if rules.visible != nil {
		visible, err := runRule(rules.visible, env)
		if err != nil {
			state.Degraded = true
		} else {
			state.Visible = state.Visible && visible
		}
	}

	if widget.Type.MutatingType() {
		enabled := widget.IsEnabled() && !widget.ReadOnly && widget.HasPermission(roles) && !stopActive && present
		if rules.enabled != nil {
			allowed, err := runRule(rules.enabled, env)
			if err != nil {
				state.Degraded = true
				enabled = false
			} else {
				enabled = enabled && allowed
			}
		}
		state.Enabled = enabled
	} else {
		// Display-only widgets never dispatch, so they stay interactive
		// regardless of roles or the interlock.
		state.Enabled = true
	}
	return state
}

func ruleEnv(status DeviceStatus, present bool) map[string]interface{} {
	params := make(map[string]interface{}, len(status.Parameters))
	for name, param := range status.Parameters {
		params[name] = param.Value
	}
	return map[string]interface{}{
		"params":  params,
		"status":  string(status.State),
		"mode":    string(status.Mode),
		"present": present,
	}
}

func runRule(program *vm.Program, env map[string]interface{}) (bool, error) {
	out, err := expr.Run(program, env)
	if err != nil {
		return false, err
	}
	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("rule result %T is not a bool", out)
	}
	return result, nil
}

func defaultValue(t config.WidgetType) interface{} {
	switch t {
	case config.WidgetButton, config.WidgetSwitch, config.WidgetIndicator, config.WidgetAlarm:
		return false
	case config.WidgetSlider, config.WidgetGauge:
		return 0.0
	default:
		return ""
	}
}

// quantizeSlider clamps a committed slider value to [min,max] and snaps it
// down onto the step grid. Decimal arithmetic keeps the grid exact for steps
// that are not representable in binary floating point.
func quantizeSlider(value float64, settings config.SliderSettings) float64 {
	min := decimal.NewFromFloat(settings.Min)
	max := decimal.NewFromFloat(settings.Max)
	step := decimal.NewFromFloat(settings.Step)
	v := decimal.NewFromFloat(value)

	if v.LessThanOrEqual(min) {
		return settings.Min
	}
	if v.GreaterThan(max) {
		v = max
	}
	steps := v.Sub(min).Div(step).Floor()
	snapped := min.Add(steps.Mul(step))
	if snapped.GreaterThan(max) {
		snapped = max
	}
	out, _ := snapped.Float64()
	return out
}
