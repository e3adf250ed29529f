package panel

import (
	"time"
)

// Quality grades how trustworthy a telemetry value is, independent of the
// value itself.
type Quality string

const (
	// QualityGood marks a value delivered without reservation.
	QualityGood Quality = "good"
	// QualityUncertain marks a value the source could not fully verify.
	QualityUncertain Quality = "uncertain"
	// QualityBad marks a value that must not be trusted.
	QualityBad Quality = "bad"
)

// Degraded reports whether a value of this quality must visually degrade.
func (q Quality) Degraded() bool {
	return q == QualityBad || q == QualityUncertain
}

// DeviceState is the coarse run state reported by a device.
type DeviceState string

const (
	DeviceRunning DeviceState = "running"
	DeviceIdle    DeviceState = "idle"
	DeviceStopped DeviceState = "stopped"
	DeviceFault   DeviceState = "fault"
	DeviceOffline DeviceState = "offline"
)

// DeviceMode is the control mode a device reports for itself.
type DeviceMode string

const (
	DeviceModeAuto   DeviceMode = "auto"
	DeviceModeManual DeviceMode = "manual"
	DeviceModeOff    DeviceMode = "off"
)

// Parameter is one named value inside a device snapshot.
type Parameter struct {
	Value     interface{} `json:"value"`
	Unit      string      `json:"unit,omitempty"`
	Quality   Quality     `json:"quality"`
	Timestamp time.Time   `json:"timestamp"`
}

// DeviceStatus is the latest known telemetry snapshot for one device. The
// panel treats snapshots as read-only input and replaces them wholesale; no
// partial merge is assumed safe.
type DeviceStatus struct {
	DeviceID   string               `json:"device_id"`
	Timestamp  time.Time            `json:"timestamp"`
	Parameters map[string]Parameter `json:"parameters,omitempty"`
	Alarms     []string             `json:"alarms,omitempty"`
	Warnings   []string             `json:"warnings,omitempty"`
	State      DeviceState          `json:"status"`
	Mode       DeviceMode           `json:"mode"`
}

// HasAlarm reports whether the snapshot references the given alarm id.
func (s DeviceStatus) HasAlarm(id string) bool {
	for _, ref := range s.Alarms {
		if ref == id {
			return true
		}
	}
	return false
}

// Severity orders alarms for ranking and banner derivation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank maps severities to a comparable order, critical highest.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// AlarmStatus tracks the alarm lifecycle. Cleared is terminal.
type AlarmStatus string

const (
	AlarmActive       AlarmStatus = "active"
	AlarmAcknowledged AlarmStatus = "acknowledged"
	AlarmCleared      AlarmStatus = "cleared"
)

// Alarm is one alarm raised by the external alarm source.
type Alarm struct {
	ID        string      `json:"id"`
	DeviceID  string      `json:"device_id"`
	Parameter string      `json:"parameter,omitempty"`
	Message   string      `json:"message"`
	Severity  Severity    `json:"severity"`
	Priority  int         `json:"priority"`
	Timestamp time.Time   `json:"timestamp"`
	Status    AlarmStatus `json:"status"`
	Category  string      `json:"category,omitempty"`
	Location  string      `json:"location,omitempty"`
}

// ActionType classifies operator actions for the audit feed.
type ActionType string

const (
	ActionControl     ActionType = "control"
	ActionAcknowledge ActionType = "acknowledge"
	ActionEmergency   ActionType = "emergency"
)

// OperatorAction is one audit record in the bounded action feed.
type OperatorAction struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
	Type      ActionType  `json:"type"`
	DeviceID  string      `json:"device_id,omitempty"`
	Parameter string      `json:"parameter,omitempty"`
	OldValue  interface{} `json:"old_value,omitempty"`
	NewValue  interface{} `json:"new_value,omitempty"`
	Level     string      `json:"level,omitempty"`
	Comment   string      `json:"comment,omitempty"`
}

// Mode is the panel-local operating mode selected by the operator. It is UI
// state, but transitions are still audited like device commands.
type Mode string

const (
	ModeAuto        Mode = "auto"
	ModeManual      Mode = "manual"
	ModeMaintenance Mode = "maintenance"
)

// ValidMode reports whether the value is a known panel mode.
func ValidMode(m Mode) bool {
	switch m {
	case ModeAuto, ModeManual, ModeMaintenance:
		return true
	default:
		return false
	}
}
