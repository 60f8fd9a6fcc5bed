package forwarder

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/vx220/vxdash/telemetry"
)

const publishTimeout = 5 * time.Second

// MQTTConfig locates the broker. An empty Broker disables the forwarder.
type MQTTConfig struct {
	Broker   string `toml:"broker"`
	Topic    string `toml:"topic"`
	ClientID string `toml:"client_id"`
	QoS      byte   `toml:"qos"`
}

// Message is the JSON document published for every changed snapshot.
type Message struct {
	Session string             `json:"session"`
	SentAt  time.Time          `json:"sent_at"`
	Data    telemetry.Snapshot `json:"data"`
}

type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTForwarder publishes snapshots as JSON. Like the UDP forwarder it keeps
// at most one pending snapshot and sends at sendInterval.
type MQTTForwarder struct {
	Config *MQTTConfig

	client  mqtt.Client
	pub     publisher
	session string
	fwdChan chan *telemetry.Snapshot
}

func NewMQTTForwarder(config MQTTConfig) *MQTTForwarder {
	session := uuid.NewString()
	clientID := config.ClientID
	if clientID == "" {
		clientID = "vxdash"
	}
	// two dashboards on one broker must not share a client id
	clientID += "-" + session[:8]

	opts := mqtt.NewClientOptions()
	opts.AddBroker(config.Broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(time.Minute)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.WithField("broker", config.Broker).Info("mqtt connected")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.WithField("err", err).Warn("mqtt connection lost")
	})

	client := mqtt.NewClient(opts)
	return newMQTTForwarder(config, client, client, session)
}

func newMQTTForwarder(config MQTTConfig, client mqtt.Client, pub publisher, session string) *MQTTForwarder {
	return &MQTTForwarder{
		Config:  &config,
		client:  client,
		pub:     pub,
		session: session,
		fwdChan: make(chan *telemetry.Snapshot, 1),
	}
}

func (m *MQTTForwarder) Forward(cur *telemetry.Snapshot, prev *telemetry.Snapshot) error {
	snap := *cur
	select {
	case m.fwdChan <- &snap:
	default:
	}
	return nil
}

// Start connects and publishes queued snapshots until ctx is done. The
// client keeps retrying the broker on its own.
func (m *MQTTForwarder) Start(ctx context.Context) error {
	if m.client != nil {
		m.client.Connect()
		defer m.client.Disconnect(250)
	}
	limiter := time.NewTicker(sendInterval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case snap := <-m.fwdChan:
			if err := m.publish(snap); err != nil {
				log.WithField("err", err).Error("unable to publish telemetry")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (m *MQTTForwarder) publish(snap *telemetry.Snapshot) error {
	data, err := json.Marshal(Message{
		Session: m.session,
		SentAt:  time.Now().UTC(),
		Data:    *snap,
	})
	if err != nil {
		return errors.Wrap(err, "marshal telemetry")
	}
	token := m.pub.Publish(m.Config.Topic, m.Config.QoS, false, data)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Errorf("publish timeout for topic %s", m.Config.Topic)
	}
	return errors.Wrapf(token.Error(), "publish to %s", m.Config.Topic)
}
