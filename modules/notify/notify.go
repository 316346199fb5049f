package notify

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"

	"github.com/zachfi/tunehop/modules/talkkiller"
)

var module = "notify"

// Events is the detector's event feed, consumed for switch notifications.
type Events interface {
	Subscribe() *talkkiller.Subscription
	Unsubscribe(*talkkiller.Subscription)
}

// switchPayload is published on <topic-prefix>/switch each time the talk
// killer changes station.
type switchPayload struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	Score float64   `json:"score"`
	At    time.Time `json:"at"`
}

// Notifier publishes talk-killer failover events to an MQTT broker. When no
// broker is configured it stays idle.
type Notifier struct {
	services.Service

	cfg    *Config
	logger *slog.Logger
	events Events
	client mqtt.Client
}

// New creates and returns a new Notifier.
func New(cfg Config, logger slog.Logger, events Events) (*Notifier, error) {
	n := &Notifier{
		cfg:    &cfg,
		logger: logger.With("module", module),
		events: events,
	}

	n.Service = services.NewBasicService(n.starting, n.running, n.stopping)

	return n, nil
}

func clientID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "tunehop_" + hex.EncodeToString(b)
}

func (n *Notifier) starting(ctx context.Context) error {
	if n.cfg.Broker == "" {
		n.logger.Debug("no broker configured, notifier idle")
		return nil
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(n.cfg.Broker)
	opts.SetClientID(clientID())
	if n.cfg.Username != "" {
		opts.SetUsername(n.cfg.Username)
	}
	if n.cfg.Password != "" {
		opts.SetPassword(n.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(10 * time.Second)
	opts.SetKeepAlive(60 * time.Second)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(err, "connecting to MQTT broker")
	}

	n.client = client
	n.logger.Info("connected", "broker", n.cfg.Broker)

	return nil
}

func (n *Notifier) running(ctx context.Context) error {
	if n.client == nil {
		<-ctx.Done()
		return nil
	}

	sub := n.events.Subscribe()
	defer n.events.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-sub.C:
			if e.Type != talkkiller.EventSwitch {
				continue
			}
			n.publish(e)
		}
	}
}

func (n *Notifier) stopping(_ error) error {
	if n.client != nil {
		n.client.Disconnect(250)
	}
	return nil
}

func (n *Notifier) publish(e talkkiller.Event) {
	payload, err := json.Marshal(switchPayload{
		From:  e.Station,
		To:    e.Target,
		Score: e.Score,
		At:    e.At,
	})
	if err != nil {
		n.logger.Error("failed to marshal event", "err", err)
		return
	}

	topic := n.cfg.TopicPrefix + "/switch"
	token := n.client.Publish(topic, 0, false, payload)
	// Publishing is best effort; do not block the event loop on the broker.
	go func() {
		if token.Wait() && token.Error() != nil {
			n.logger.Error("publish failed", "topic", topic, "err", token.Error())
		}
	}()
}
