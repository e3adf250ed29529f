package panel

import "errors"

// Command rejections are terminal states the UI reacts to, not exception
// paths; callers match them with errors.Is.
var (
	// ErrEmergencyStopActive rejects commands while the interlock is
	// tripped. Recovered by waiting for the automatic reversion.
	ErrEmergencyStopActive = errors.New("emergency stop active")
	// ErrPermissionDenied rejects commands from operators lacking the
	// widget's required role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrReadOnly rejects commands on widgets configured non-mutating.
	ErrReadOnly = errors.New("widget is read-only")
	// ErrUnknownWidget rejects gestures referencing a widget id the active
	// diagram does not declare.
	ErrUnknownWidget = errors.New("unknown widget")
	// ErrAlarmNotFound rejects acknowledgements for unknown alarm ids.
	ErrAlarmNotFound = errors.New("alarm not found")
	// ErrNoPendingCommand rejects a confirm or cancel gesture without a
	// preceding confirmation request.
	ErrNoPendingCommand = errors.New("no pending command")
	// ErrInvalidMode rejects unknown panel modes.
	ErrInvalidMode = errors.New("invalid mode")
)
