package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"artnetnode/internal/artnet"
	"artnetnode/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const peersInterval = 30 * time.Second

// Node is the part of the Art-Net node the bridge drives.
type Node interface {
	ReadUniverse(u int) artnet.Universe
	Publish(channels []float64) error
	ListPeers() []netip.AddrPort
	Address() artnet.Address
	Channels() int
}

// Bridge mirrors received universes to MQTT and turns MQTT channel commands
// into Art-Net output.
type Bridge struct {
	log    *logger.Log
	cfg    MQTTConf
	node   Node
	client mqtt.Client

	mu    sync.Mutex
	frame []float64

	last [artnet.UniverseCount]artnet.Universe
	seen [artnet.UniverseCount]bool
}

// New конструктор.
func New(log logger.Logger, cfg MQTTConf, node Node) *Bridge {
	if cfg.Schema == "" {
		cfg.Schema = "tcp"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 40 * time.Millisecond
	}
	return &Bridge{
		log:   log.With(logger.Fields{"module": "mqtt"}),
		cfg:   cfg,
		node:  node,
		frame: make([]float64, node.Channels()),
	}
}

// Serve connects to the broker and runs the bridge until ctx is cancelled.
func (b *Bridge) Serve(ctx context.Context) error {
	if b.log.GetLevel() == "debug" {
		mqtt.ERROR = b.log.With(logger.Fields{"source": "paho"})
		mqtt.CRITICAL = b.log.With(logger.Fields{"source": "paho"})
		mqtt.WARN = b.log.With(logger.Fields{"source": "paho"})
	}

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", b.cfg.Schema, b.cfg.Host, b.cfg.Port)).
		SetUsername(b.cfg.User).
		SetPassword(b.cfg.Password).
		SetOnConnectHandler(b.connectHandler).
		SetConnectionLostHandler(b.connectLostHandler).
		SetClientID(b.cfg.ClientID).
		SetOrderMatters(false).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	b.client = mqtt.NewClient(opts)

	token := b.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	defer b.client.Disconnect(500)

	b.log.Infof("Status: %v", b.client.IsConnected())

	poll := time.NewTicker(b.cfg.PollInterval)
	defer poll.Stop()
	peers := time.NewTicker(peersInterval)
	defer peers.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-poll.C:
			for _, m := range b.collect() {
				b.publish(ctx, m)
			}
		case <-peers.C:
			if m, err := b.peersMessage(); err == nil {
				b.publish(ctx, m)
			}
		}
	}
}

func (b *Bridge) connectHandler(c mqtt.Client) {
	b.log.Info("client connected to server")
	topic := b.topic("out", "+")
	token := c.Subscribe(topic, b.cfg.Qos, b.messageHandler)
	go func() {
		<-token.Done()
		if token.Error() != nil {
			b.log.Errorf("topic %s subscription error. %v", topic, token.Error())
			return
		}
		b.log.Debugf("topic %s subscribed", topic)
	}()
}

func (b *Bridge) connectLostHandler(_ mqtt.Client, err error) {
	b.log.Errorf("server connect lost: %v", err)
}

func (b *Bridge) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	b.log.Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	if err := b.apply(msg.Topic(), msg.Payload()); err != nil {
		b.log.Errorf("message from %s rejected: %v", msg.Topic(), err)
	}
}

func (b *Bridge) publish(ctx context.Context, m message) {
	token := b.client.Publish(m.topic, b.cfg.Qos, false, m.payload)
	go func() {
		select {
		case <-ctx.Done():
		case <-token.Done():
			if token.Error() != nil {
				b.log.Errorf("error publish topic %s. %v", m.topic, token.Error())
			}
		}
	}()
}

// apply sets the channels of one universe from a JSON command list and
// publishes the resulting frame. Nothing changes if a command is invalid.
func (b *Bridge) apply(topic string, payload []byte) error {
	u, err := b.universeFromTopic(topic)
	if err != nil {
		return err
	}
	var data Payload
	if err := json.Unmarshal(payload, &data); err != nil {
		return fmt.Errorf("message could not be parsed: %w", err)
	}
	for _, cmd := range data {
		if int(cmd.Channel) >= artnet.UniverseSize {
			return fmt.Errorf("channel %d out of range", cmd.Channel)
		}
	}

	b.mu.Lock()
	for _, cmd := range data {
		b.frame[u*artnet.UniverseSize+int(cmd.Channel)] = float64(cmd.Value) / 255
	}
	frame := slices.Clone(b.frame)
	b.mu.Unlock()

	return b.node.Publish(frame)
}

func (b *Bridge) universeFromTopic(topic string) (int, error) {
	prefix := b.topic("out", "")
	if !strings.HasPrefix(topic, prefix) {
		return 0, fmt.Errorf("unexpected topic %q", topic)
	}
	u, err := strconv.Atoi(strings.TrimPrefix(topic, prefix))
	if err != nil {
		return 0, fmt.Errorf("invalid universe in topic %q: %w", topic, err)
	}
	if u < 0 || u >= len(b.frame)/artnet.UniverseSize {
		return 0, fmt.Errorf("universe %d is not an output of this node", u)
	}
	return u, nil
}

// collect returns a message for every universe that changed since the last
// call. All universes are sent on the first call.
func (b *Bridge) collect() []message {
	addr := b.node.Address()
	var out []message
	for u := 0; u < artnet.UniverseCount; u++ {
		data := b.node.ReadUniverse(u)
		if b.seen[u] && data == b.last[u] {
			continue
		}
		b.seen[u] = true
		b.last[u] = data

		frame := UniverseFrame{
			Universe: u,
			Address:  addr.String(),
			Data:     make([]int, len(data)),
		}
		for i, v := range data {
			frame.Data[i] = int(v)
		}
		payload, err := json.Marshal(frame)
		if err != nil {
			b.log.Errorf("universe %d: %v", u, err)
			continue
		}
		out = append(out, message{
			topic:   b.topic("in", fmt.Sprintf("%d.%d.%d", addr.Net, addr.Subnet, u)),
			payload: payload,
		})
	}
	return out
}

func (b *Bridge) peersMessage() (message, error) {
	peers := b.node.ListPeers()
	list := make([]string, len(peers))
	for i, p := range peers {
		list[i] = p.String()
	}
	payload, err := json.Marshal(list)
	if err != nil {
		return message{}, errors.New("peers could not be encoded")
	}
	return message{topic: b.topic("peers"), payload: payload}, nil
}

func (b *Bridge) topic(parts ...string) string {
	return strings.Join(append([]string{b.cfg.TopicPrefix}, parts...), "/")
}

func (b *Bridge) String() string {
	return "bridge@" + b.cfg.Host
}
