// Package feed connects a panel to an MQTT telemetry source. Device status
// snapshots and alarm lifecycle events are pushed by the broker; the feed
// decodes them and replaces the panel's view, last write wins.
package feed

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/scadakit/scadakit/config"
	"github.com/scadakit/scadakit/panel"
)

// Target receives decoded telemetry. *panel.Panel satisfies it.
type Target interface {
	UpdateDeviceStatus(panel.DeviceStatus)
	UpsertAlarm(panel.Alarm)
	ClearAlarm(alarmID string)
}

// Feed subscribes to the configured status and alarm topics.
type Feed struct {
	cfg    config.FeedConfig
	target Target
	logger zerolog.Logger
	client mqtt.Client
}

// New prepares a feed. Start establishes the connection.
func New(cfg config.FeedConfig, target Target, logger zerolog.Logger) (*Feed, error) {
	if !cfg.Enabled {
		return nil, errors.New("feed: not enabled")
	}
	if cfg.Broker == "" {
		return nil, errors.New("feed: broker address is required")
	}
	if cfg.StatusTopic == "" {
		return nil, errors.New("feed: status topic is required")
	}
	if target == nil {
		return nil, errors.New("feed: target must not be nil")
	}
	return &Feed{
		cfg:    cfg,
		target: target,
		logger: logger.With().Str("component", "feed").Logger(),
	}, nil
}

// Start connects to the broker and subscribes. Subscriptions are re-issued
// on every (re)connect.
func (f *Feed) Start() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(f.cfg.Broker)
	clientID := f.cfg.ClientID
	if clientID == "" {
		clientID = "scada-panel"
	}
	opts.SetClientID(clientID)
	if f.cfg.Username != "" {
		opts.SetUsername(f.cfg.Username)
		opts.SetPassword(f.cfg.Password)
	}
	timeout := f.cfg.ConnectTimeout.Duration
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	opts.SetConnectTimeout(timeout)
	opts.AutoReconnect = true
	opts.OnConnect = f.subscribe
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		f.logger.Warn().Err(err).Msg("connection lost")
	})
	opts.SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
		f.logger.Info().Msg("reconnecting")
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return errors.New("feed: connect timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("feed: connect failed: %w", err)
	}
	f.client = client
	return nil
}

func (f *Feed) subscribe(client mqtt.Client) {
	if token := client.Subscribe(f.cfg.StatusTopic, f.cfg.QoS, f.handleStatus); token.Wait() && token.Error() != nil {
		f.logger.Error().Err(token.Error()).Str("topic", f.cfg.StatusTopic).Msg("subscribe failed")
	}
	if f.cfg.AlarmTopic == "" {
		return
	}
	if token := client.Subscribe(f.cfg.AlarmTopic, f.cfg.QoS, f.handleAlarm); token.Wait() && token.Error() != nil {
		f.logger.Error().Err(token.Error()).Str("topic", f.cfg.AlarmTopic).Msg("subscribe failed")
	}
}

func (f *Feed) handleStatus(_ mqtt.Client, msg mqtt.Message) {
	status, err := DecodeStatus(msg.Payload())
	if err != nil {
		f.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("drop status payload")
		return
	}
	f.target.UpdateDeviceStatus(status)
}

func (f *Feed) handleAlarm(_ mqtt.Client, msg mqtt.Message) {
	alarm, err := DecodeAlarm(msg.Payload())
	if err != nil {
		f.logger.Warn().Err(err).Str("topic", msg.Topic()).Msg("drop alarm payload")
		return
	}
	if alarm.Status == panel.AlarmCleared {
		f.target.ClearAlarm(alarm.ID)
		return
	}
	f.target.UpsertAlarm(alarm)
}

// Close disconnects from the broker.
func (f *Feed) Close() {
	if f == nil || f.client == nil {
		return
	}
	f.client.Disconnect(250)
}
