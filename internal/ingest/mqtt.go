package ingest

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/airqlab/airq/internal/config"
	"github.com/airqlab/airq/internal/logging"
)

// MQTTListener subscribes to sensor topics and forwards every message to an
// Ingestor. The sensor ID is the topic level matched by the first wildcard,
// e.g. "kitchen" for airq/kitchen/readings under the filter airq/+/readings.
type MQTTListener struct {
	cfg      config.MQTTConfig
	ingestor *Ingestor
	client   mqtt.Client
	logger   *logging.Logger
	now      func() time.Time
}

// NewMQTTListener creates a listener; Start connects it
func NewMQTTListener(cfg config.MQTTConfig, ingestor *Ingestor, logger *logging.Logger) *MQTTListener {
	if logger == nil {
		logger = logging.Global()
	}
	if cfg.ClientID == "" {
		hostname, _ := os.Hostname()
		cfg.ClientID = "airq-" + hostname
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	return &MQTTListener{
		cfg:      cfg,
		ingestor: ingestor,
		logger:   logger.With("component", "mqtt", "broker", cfg.Broker),
		now:      time.Now,
	}
}

// Start connects to the broker and subscribes. Subscriptions are restored on
// every reconnect.
func (l *MQTTListener) Start() error {
	opts := mqtt.NewClientOptions().
		AddBroker(l.cfg.Broker).
		SetClientID(l.cfg.ClientID).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(time.Minute).
		SetConnectTimeout(l.cfg.ConnectTimeout).
		SetOnConnectHandler(l.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			l.logger.Warn("MQTT connection lost", "error", err)
		})
	if l.cfg.Username != "" {
		opts.SetUsername(l.cfg.Username)
		opts.SetPassword(l.cfg.Password)
	}

	l.client = mqtt.NewClient(opts)
	token := l.client.Connect()
	if !token.WaitTimeout(l.cfg.ConnectTimeout) {
		return fmt.Errorf("timed out connecting to MQTT broker %s", l.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (l *MQTTListener) onConnect(client mqtt.Client) {
	token := client.Subscribe(l.cfg.Topic, l.cfg.QoS, func(_ mqtt.Client, msg mqtt.Message) {
		l.handle(msg.Topic(), msg.Payload())
	})
	if token.WaitTimeout(l.cfg.ConnectTimeout) && token.Error() != nil {
		l.logger.Error("MQTT subscribe failed", "topic", l.cfg.Topic, "error", token.Error())
		return
	}
	l.logger.Info("MQTT subscribed", "topic", l.cfg.Topic, "qos", int(l.cfg.QoS))
}

// handle decodes and submits one message. Failures are logged; MQTT has no
// negative acknowledgement.
func (l *MQTTListener) handle(topic string, payload []byte) {
	sensorID := SensorIDFromTopic(l.cfg.Topic, topic)
	ctx := logging.WithSensorID(logging.WithLogger(context.Background(), l.logger), sensorID)
	log := logging.Ctx(ctx)

	readings, err := DecodeSensorPayload(payload, l.now())
	if err != nil {
		log.Warn("Discarding malformed sensor message", "topic", topic, "error", err)
		return
	}

	result, err := l.ingestor.Submit(ctx, SourceMQTT, readings)
	if err != nil {
		log.Warn("Sensor batch not ingested", "topic", topic, "error", err)
		return
	}
	if len(result.Rejected) > 0 {
		log.Warn("Sensor readings rejected", "topic", topic, "rejected", len(result.Rejected), "first_reason", result.Rejected[0].Reason)
	}
}

// Stop unsubscribes and disconnects, waiting up to 250ms for in-flight work
func (l *MQTTListener) Stop() {
	if l.client == nil || !l.client.IsConnected() {
		return
	}
	l.client.Unsubscribe(l.cfg.Topic).WaitTimeout(time.Second)
	l.client.Disconnect(250)
	l.logger.Info("MQTT listener stopped")
}

// SensorIDFromTopic returns the topic level matched by the first "+" of
// filter, or the whole topic when the filter has no single-level wildcard
func SensorIDFromTopic(filter, topic string) string {
	filterLevels := strings.Split(filter, "/")
	topicLevels := strings.Split(topic, "/")
	for i, level := range filterLevels {
		if level == "+" && i < len(topicLevels) {
			return topicLevels[i]
		}
	}
	return topic
}
