package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/theoremus-urban-solutions/geotrack/config"
	"github.com/theoremus-urban-solutions/geotrack/tracking"
	"github.com/theoremus-urban-solutions/geotrack/utils"
)

// positionPayload is the JSON body of one MQTT position message.
type positionPayload struct {
	Organization string  `json:"organizationId"`
	Entity       string  `json:"entityId"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	TimestampMS  int64   `json:"timestampMillis"`
}

func decodeReport(payload []byte) (tracking.Report, error) {
	var p positionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return tracking.Report{}, fmt.Errorf("%w: %v", tracking.ErrInvalidReport, err)
	}
	return tracking.Report{
		Organization: p.Organization,
		Entity:       p.Entity,
		Lat:          p.Latitude,
		Lon:          p.Longitude,
		TimestampMS:  p.TimestampMS,
	}, nil
}

// MQTTConsumer subscribes to the position topic and routes every parseable
// message. Routing failures are drops by design, logged only when they are
// not the routine staleness case.
type MQTTConsumer struct {
	client mqtt.Client
	topic  string
	qos    byte
	router *tracking.IngestRouter
}

// NewMQTTConsumer creates a consumer from the broker settings. It does not
// connect yet.
func NewMQTTConsumer(cfg config.MQTTConfig, router *tracking.IngestRouter) *MQTTConsumer {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false)
	c := &MQTTConsumer{
		topic:  cfg.Topic,
		qos:    byte(cfg.QoS),
		router: router,
	}
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		// re-subscribe on every (re)connect
		token := client.Subscribe(c.topic, c.qos, c.handleMessage)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("mqtt subscribe to %s failed: %v", c.topic, err)
			return
		}
		log.Printf("mqtt subscribed to %s", c.topic)
	})
	c.client = mqtt.NewClient(opts)
	return c
}

// Start connects to the broker; the OnConnect handler establishes the
// subscription.
func (c *MQTTConsumer) Start() error {
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (c *MQTTConsumer) Stop() {
	c.client.Disconnect(250)
}

func (c *MQTTConsumer) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	rep, err := decodeReport(msg.Payload())
	if err != nil {
		c.router.Stats().InvalidReports.Add(1)
		log.Printf("mqtt: discarding malformed payload on %s: %v", msg.Topic(), err)
		return
	}
	if err := c.router.Route(rep); err != nil && !errors.Is(err, tracking.ErrStaleUpdate) {
		log.Printf("mqtt: dropped report for %s/%s at %s: %v",
			rep.Organization, rep.Entity, utils.Iso8601FromUnixMillis(rep.TimestampMS), err)
	}
}
