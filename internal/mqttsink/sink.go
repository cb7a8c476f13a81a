// Package mqttsink mirrors dispatched semantic events onto an optional MQTT
// broker. It is not part of the Hue/Alexa protocol surface; it exists
// purely so a hub's activity can be observed by the rest of a home
// automation stack, and it is entirely inert when no broker is configured.
package mqttsink

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"

	"log/slog"

	"github.com/wiredhome/huebridge/internal/conf"
	"github.com/wiredhome/huebridge/internal/events"
)

// Sink publishes events.DispatchEvent occurrences to topics of the form
// "huebridge/<hubID>/<deviceID>/<topic>".
type Sink struct {
	broker   string
	clientID string
	username string
	password string
	hubID    string

	log *slog.Logger

	mu             sync.Mutex
	client         mqtt.Client
	reconnectTimer *time.Timer
	reconnectStop  chan struct{}
	lastAttempt    time.Time

	// logLimiter throttles "failed to reconnect" lines so a prolonged
	// broker outage doesn't flood the log.
	logLimiter *rate.Limiter
}

// New builds a Sink from MQTT settings. Call Connect to actually dial the
// broker; an unconfigured (empty Broker) sink is safe to keep around and
// simply drops everything published to it.
func New(cfg conf.Settings, hubID string, log *slog.Logger) *Sink {
	if log == nil {
		log = slog.Default()
	}
	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = "huebridge"
	}
	return &Sink{
		broker:        cfg.MQTT.Broker,
		clientID:      clientID,
		username:      cfg.MQTT.Username,
		password:      cfg.MQTT.Password,
		hubID:         hubID,
		log:           log.With("component", "mqttsink"),
		reconnectStop: make(chan struct{}),
		logLimiter:    rate.NewLimiter(rate.Every(time.Minute), 1),
	}
}

// Enabled reports whether a broker address was configured.
func (s *Sink) Enabled() bool { return s.broker != "" }

// Connect dials the broker. It is a no-op when the sink is disabled.
func (s *Sink) Connect(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastAttempt) < 1*time.Minute && s.client != nil {
		return fmt.Errorf("connection attempt too recent")
	}
	s.lastAttempt = time.Now()

	if err := s.resolveBrokerHostname(); err != nil {
		return fmt.Errorf("resolve broker hostname: %w", err)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.broker)
	opts.SetClientID(s.clientID)
	opts.SetUsername(s.username)
	opts.SetPassword(s.password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetOnConnectHandler(s.onConnect)
	opts.SetConnectionLostHandler(s.onConnectionLost)

	s.client = mqtt.NewClient(opts)

	token := s.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return fmt.Errorf("connection timeout")
	}
	return token.Error()
}

func (s *Sink) resolveBrokerHostname() error {
	u, err := url.Parse(s.broker)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("broker url %q has no host", s.broker)
	}
	if _, err := net.LookupHost(host); err != nil {
		return fmt.Errorf("resolve hostname %s: %w", host, err)
	}
	return nil
}

// Name satisfies events.Consumer.
func (s *Sink) Name() string { return "mqttsink" }

// Handle satisfies events.Consumer, translating dispatch events into MQTT
// publishes. Non-dispatch events are ignored.
func (s *Sink) Handle(ev events.Event) {
	de, ok := ev.(events.DispatchEvent)
	if !ok || !s.Enabled() {
		return
	}
	if !s.isConnected() {
		return
	}
	topic := fmt.Sprintf("huebridge/%s/%s/%s", s.hubID, de.DeviceID, de.Topic)
	payload := fmt.Sprintf("%v", de.Payload)

	s.mu.Lock()
	client := s.client
	s.mu.Unlock()
	if client == nil {
		return
	}
	token := client.Publish(topic, 0, false, payload)
	if !token.WaitTimeout(5 * time.Second) {
		s.log.Warn("publish timeout", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		s.log.Warn("publish failed", "topic", topic, "error", err)
	}
}

func (s *Sink) isConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil && s.client.IsConnected()
}

// Close disconnects from the broker and stops any pending reconnect.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
	}
	select {
	case <-s.reconnectStop:
	default:
		close(s.reconnectStop)
	}
}

func (s *Sink) onConnect(mqtt.Client) {
	s.log.Info("connected to mqtt broker", "broker", s.broker)
}

func (s *Sink) onConnectionLost(_ mqtt.Client, err error) {
	s.log.Warn("mqtt connection lost", "broker", s.broker, "error", err)
	s.startReconnectTimer()
}

func (s *Sink) startReconnectTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconnectTimer = time.AfterFunc(time.Minute, func() {
		select {
		case <-s.reconnectStop:
			return
		default:
			s.reconnectWithBackoff()
		}
	})
}

func (s *Sink) reconnectWithBackoff() {
	backoff := time.Second
	const maxBackoff = 5 * time.Minute

	for {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := s.Connect(ctx)
		cancel()

		if err == nil {
			s.log.Info("reconnected to mqtt broker", "broker", s.broker)
			s.startReconnectTimer()
			return
		}

		if s.logLimiter.Allow() {
			s.log.Warn("mqtt reconnect failed", "broker", s.broker, "error", err, "retry_in", backoff)
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		case <-s.reconnectStop:
			return
		}
	}
}
