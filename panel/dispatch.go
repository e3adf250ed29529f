package panel

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/scadakit/scadakit/config"
	"github.com/scadakit/scadakit/telemetry"
)

// CommandSink forwards an accepted command towards the real device. The call
// is fire-and-forget: the dispatcher returns before any device-side
// confirmation, and implementations must not block the caller. Failures on
// the device path surface through later telemetry, never through this core.
type CommandSink func(deviceID, parameter string, value interface{})

// dispatcher validates operator commands against permissions and the safety
// interlock, forwards accepted commands to the sink, and appends the audit
// record. Confirmation gating happens before the dispatcher is invoked; a
// cancelled confirmation never reaches it.
type dispatcher struct {
	devices   *statusStore
	log       *actionLog
	stop      *stopController
	sink      CommandSink
	collector telemetry.Collector
	clock     Clock
	logger    zerolog.Logger
}

const (
	rejectEmergencyStop = "emergency_stop"
	rejectPermission    = "permission_denied"
	rejectReadOnly      = "read_only"
)

// dispatch re-validates the command defensively even though the projector
// already disables ineligible widgets. It returns the value actually sent,
// which may differ from the requested one for sliders.
func (d *dispatcher) dispatch(widget config.WidgetConfig, value interface{}, actor User) (interface{}, error) {
	if d.stop != nil && d.stop.isActive() {
		d.collector.IncCommandRejected(rejectEmergencyStop)
		return nil, ErrEmergencyStopActive
	}
	if !widget.HasPermission(actor.Roles) {
		d.collector.IncCommandRejected(rejectPermission)
		return nil, ErrPermissionDenied
	}
	if widget.ReadOnly || !widget.Type.MutatingType() {
		d.collector.IncCommandRejected(rejectReadOnly)
		return nil, ErrReadOnly
	}

	if widget.Type == config.WidgetSlider && widget.Slider != nil {
		requested, ok := asFloat(value)
		if !ok {
			return nil, fmt.Errorf("widget %s: value %v is not numeric", widget.ID, value)
		}
		value = quantizeSlider(requested, *widget.Slider)
	}

	var oldValue interface{}
	if param, ok := d.devices.parameter(widget.Device, widget.Parameter); ok {
		oldValue = param.Value
	}

	d.sink(widget.Device, widget.Parameter, value)
	d.log.append(newAction(actor, ActionControl, d.clock.Now(), OperatorAction{
		DeviceID:  widget.Device,
		Parameter: widget.Parameter,
		OldValue:  oldValue,
		NewValue:  value,
		Comment:   fmt.Sprintf("Changed %s from %v to %v", widget.Parameter, oldValue, value),
	}))
	d.collector.IncCommandDispatched(widget.Device)
	d.logger.Info().
		Str("widget", widget.ID).
		Str("device", widget.Device).
		Str("parameter", widget.Parameter).
		Interface("value", value).
		Str("user", actor.Name).
		Msg("command dispatched")
	return value, nil
}

func asFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	case uint32:
		return float64(v), true
	default:
		return 0, false
	}
}
