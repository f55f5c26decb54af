package telemetry

import (
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Publisher is the subset of mqtt.Client the MQTT sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTSink publishes each sample as JSON, retained, so late subscribers see
// the latest reading.
type MQTTSink struct {
	client  Publisher
	topic   string
	timeout time.Duration
}

// ConnectMQTT connects to broker and returns a sink publishing on topic.
func ConnectMQTT(broker, clientID, topic string) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, pkgerrors.Wrapf(ErrLogIO, "mqtt connect %s: %v", broker, token.Error())
	}
	logrus.WithFields(logrus.Fields{"broker": broker, "topic": topic}).Info("MQTT publisher connected")
	return NewMQTTSink(client, topic), nil
}

// NewMQTTSink wraps an already connected client.
func NewMQTTSink(client Publisher, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: topic, timeout: 2 * time.Second}
}

// Name implements Sink.
func (s *MQTTSink) Name() string { return "mqtt" }

// Append implements Sink.
func (s *MQTTSink) Append(sample Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal sample")
	}
	token := s.client.Publish(s.topic, 0, true, payload)
	if !token.WaitTimeout(s.timeout) {
		return pkgerrors.Wrapf(ErrLogIO, "mqtt publish to %s timed out", s.topic)
	}
	if err := token.Error(); err != nil {
		return pkgerrors.Wrapf(ErrLogIO, "mqtt publish to %s: %v", s.topic, err)
	}
	return nil
}

// Close implements Sink.
func (s *MQTTSink) Close() error {
	s.client.Disconnect(250)
	return nil
}
