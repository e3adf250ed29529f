package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/scadakit/scadakit/panel"
)

// DecodeStatus parses a device status snapshot. Missing qualities default to
// good and a missing timestamp is stamped on receipt, but an empty device id
// rejects the payload.
func DecodeStatus(raw []byte) (panel.DeviceStatus, error) {
	var status panel.DeviceStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return panel.DeviceStatus{}, fmt.Errorf("decode status: %w", err)
	}
	if status.DeviceID == "" {
		return panel.DeviceStatus{}, errors.New("status payload missing device_id")
	}
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	for name, param := range status.Parameters {
		if param.Quality == "" {
			param.Quality = panel.QualityGood
			status.Parameters[name] = param
		}
	}
	return status, nil
}

// DecodeAlarm parses an alarm lifecycle event. An absent status means the
// alarm is newly active.
func DecodeAlarm(raw []byte) (panel.Alarm, error) {
	var alarm panel.Alarm
	if err := json.Unmarshal(raw, &alarm); err != nil {
		return panel.Alarm{}, fmt.Errorf("decode alarm: %w", err)
	}
	if alarm.ID == "" {
		return panel.Alarm{}, errors.New("alarm payload missing id")
	}
	if alarm.Status == "" {
		alarm.Status = panel.AlarmActive
	}
	if alarm.Timestamp.IsZero() {
		alarm.Timestamp = time.Now()
	}
	return alarm, nil
}
