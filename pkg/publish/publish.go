// Package publish pushes derived snapshots to an MQTT broker so home
// automation consumers can subscribe instead of polling the HTTP surface.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/edsmon/edsmon/pkg/log"
	"github.com/edsmon/edsmon/pkg/types"
	"github.com/levenlabs/go-lflag"
)

const defaultTimeout = 10 * time.Second

// Publisher publishes snapshots to <prefix>/snapshot as retained JSON. The
// broker's last-will marks <prefix>/status offline when the connection
// drops; online is republished on every (re)connect.
type Publisher struct {
	client  paho.Client
	prefix  string
	timeout time.Duration
}

// Opts configures a Publisher.
type Opts struct {
	// BrokerURL is a paho broker URL, e.g. tcp://host:1883. Empty disables
	// publishing entirely.
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// TopicPrefix defaults to "edsmon".
	TopicPrefix string

	Timeout time.Duration
}

// New creates a Publisher. A nil-safe disabled publisher is returned when
// no broker is configured.
func New(opts Opts) *Publisher {
	if opts.BrokerURL == "" {
		return &Publisher{}
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = "edsmon"
	}
	if opts.ClientID == "" {
		opts.ClientID = "edsmon"
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	p := &Publisher{
		prefix:  opts.TopicPrefix,
		timeout: opts.Timeout,
	}

	copts := paho.NewClientOptions()
	copts.AddBroker(opts.BrokerURL)
	copts.SetClientID(opts.ClientID)
	copts.SetUsername(opts.Username)
	copts.SetPassword(opts.Password)
	copts.SetAutoReconnect(true)
	copts.SetWill(p.statusTopic(), "offline", 1, true)
	copts.SetOnConnectHandler(func(c paho.Client) {
		ctx := context.Background()
		log.Ctx(ctx).InfoContext(ctx, "connected to mqtt broker")
		if tok := c.Publish(p.statusTopic(), 1, true, "online"); tok.WaitTimeout(p.timeout) && tok.Error() != nil {
			log.Ctx(ctx).WarnContext(ctx, "failed to publish online status", slog.Any("error", tok.Error()))
		}
	})
	copts.SetConnectionLostHandler(func(c paho.Client, err error) {
		ctx := context.Background()
		log.Ctx(ctx).WarnContext(ctx, "mqtt connection lost", slog.Any("error", err))
	})

	p.client = paho.NewClient(copts)
	return p
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.client != nil
}

func (p *Publisher) statusTopic() string {
	return p.prefix + "/status"
}

func (p *Publisher) snapshotTopic() string {
	return p.prefix + "/snapshot"
}

// Connect dials the broker. Paho reconnects on its own afterwards.
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	tok := p.client.Connect()
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out connecting to mqtt broker")
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return nil
}

// Publish sends the full snapshot plus the per-section topics under
// <prefix>/<cups>/, all retained. It is a no-op when disabled.
func (p *Publisher) Publish(ctx context.Context, snap types.Snapshot) error {
	if !p.Enabled() {
		return nil
	}
	if err := p.publishJSON(p.snapshotTopic(), snap); err != nil {
		return err
	}
	if snap.CUPS != "" {
		base := p.prefix + "/" + snap.CUPS
		sections := map[string]any{
			base + "/meter":        snap.Meter,
			base + "/cycle":        snap.Cycle,
			base + "/last_cycle":   snap.LastCycle,
			base + "/today":        snap.Today,
			base + "/yesterday":    snap.Yesterday,
			base + "/maximeter":    snap.Maximeter,
			base + "/energy_today": snap.EnergyTodayKWH,
		}
		for topic, v := range sections {
			if err := p.publishJSON(topic, v); err != nil {
				return err
			}
		}
	}
	log.Ctx(ctx).DebugContext(ctx, "published snapshot",
		slog.String("topic", p.snapshotTopic()),
		slog.String("cups", snap.CUPS))
	return nil
}

func (p *Publisher) publishJSON(topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}
	tok := p.client.Publish(topic, 1, true, payload)
	if !tok.WaitTimeout(p.timeout) {
		return fmt.Errorf("timed out publishing to %s", topic)
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}

// Close marks the status offline and disconnects.
func (p *Publisher) Close() {
	if !p.Enabled() || !p.client.IsConnected() {
		return
	}
	if tok := p.client.Publish(p.statusTopic(), 1, true, "offline"); !tok.WaitTimeout(p.timeout) {
		ctx := context.Background()
		log.Ctx(ctx).WarnContext(ctx, "timed out publishing offline status")
	}
	p.client.Disconnect(250)
}

// Configured sets up the publisher based on flags.
func Configured() *Publisher {
	broker := lflag.String("mqtt-broker", "", "MQTT broker URL, e.g. tcp://host:1883, empty disables publishing")
	clientID := lflag.String("mqtt-client-id", "edsmon", "MQTT client identifier")
	username := lflag.String("mqtt-username", "", "MQTT username")
	password := lflag.String("mqtt-password", "", "MQTT password")
	prefix := lflag.String("mqtt-topic-prefix", "edsmon", "Topic prefix for the snapshot and status topics")
	timeout := lflag.Duration("mqtt-timeout", defaultTimeout, "Timeout for connect and publish operations")

	p := &Publisher{}

	lflag.Do(func() {
		*p = *New(Opts{
			BrokerURL:   *broker,
			ClientID:    *clientID,
			Username:    *username,
			Password:    *password,
			TopicPrefix: *prefix,
			Timeout:     *timeout,
		})
	})

	return p
}
