package feed

import (
	"encoding/json"
	"time"
)

type commandMessage struct {
	DeviceID  string      `json:"device_id"`
	Parameter string      `json:"parameter"`
	Value     interface{} `json:"value"`
	Timestamp time.Time   `json:"timestamp"`
}

type ackMessage struct {
	AlarmID   string    `json:"alarm_id"`
	Timestamp time.Time `json:"timestamp"`
}

type stopMessage struct {
	Timestamp time.Time `json:"timestamp"`
}

// PublishCommand forwards an operator command to the command topic. The
// publish is fire-and-forget; delivery problems are logged, never returned,
// matching the dispatcher's no-acknowledgment contract.
func (f *Feed) PublishCommand(deviceID, parameter string, value interface{}) {
	if f == nil || f.client == nil || f.cfg.CommandTopic == "" {
		return
	}
	f.publish(f.cfg.CommandTopic, commandMessage{
		DeviceID:  deviceID,
		Parameter: parameter,
		Value:     value,
		Timestamp: time.Now(),
	})
}

// PublishAcknowledge informs the alarm source of an acknowledgment.
func (f *Feed) PublishAcknowledge(alarmID string) {
	if f == nil || f.client == nil || f.cfg.AckTopic == "" {
		return
	}
	f.publish(f.cfg.AckTopic, ackMessage{AlarmID: alarmID, Timestamp: time.Now()})
}

// PublishEmergencyStop informs external safety systems of a stop request.
func (f *Feed) PublishEmergencyStop() {
	if f == nil || f.client == nil || f.cfg.StopTopic == "" {
		return
	}
	f.publish(f.cfg.StopTopic, stopMessage{Timestamp: time.Now()})
}

func (f *Feed) publish(topic string, payload interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		f.logger.Error().Err(err).Str("topic", topic).Msg("encode publish payload")
		return
	}
	token := f.client.Publish(topic, f.cfg.QoS, false, raw)
	go func() {
		if token.Wait() && token.Error() != nil {
			f.logger.Warn().Err(token.Error()).Str("topic", topic).Msg("publish failed")
		}
	}()
}
