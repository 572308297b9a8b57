// Package broker wraps an MQTT v5 client behind the capability set spec.md
// §4.1 requires of a room's transport: Connect, Subscribe, Publish, Stream,
// Disconnect, Reconnect. It is deliberately narrow — the room runtime is
// written only against this interface, never against paho directly.
package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sony/gobreaker"

	"github.com/gala377/Auster/internal/v1/logging"
	"github.com/gala377/Auster/internal/v1/metrics"
	"go.uber.org/zap"
)

// QoS is fixed at "exactly once" for every room topic (spec.md §6).
const QoS = byte(2)

const (
	reconnectAttempts = 12
	reconnectWait     = 5000 * time.Millisecond
	keepAlive         = 20 * time.Second
)

var (
	ErrBrokerUnavailable = errors.New("broker: unavailable")
	ErrAuthFailed        = errors.New("broker: auth failed")
	ErrSubscribeFailed   = errors.New("broker: subscribe failed")
	ErrPublishFailed     = errors.New("broker: publish failed")
	ErrNotConnected      = errors.New("broker: not connected")
	ErrConnectionReset   = errors.New("broker: connection reset")
)

// Message is one payload delivered on a subscribed topic.
type Message struct {
	Topic   string
	Payload []byte
}

// LastWill describes the LWT published on the client's behalf if it
// disconnects uncleanly.
type LastWill struct {
	Topic   string
	Payload string
}

// Client adapts a single MQTT v5 session for one room.
type Client struct {
	host     string
	user     string
	password string

	paho paho.Client
	cb   *gobreaker.CircuitBreaker

	stream chan *Message
}

// NewClient builds an unconnected Client. Call Connect to establish the
// session.
func NewClient(host, user, password string) *Client {
	return &Client{
		host:     host,
		user:     user,
		password: password,
		stream:   make(chan *Message, 256),
	}
}

// Connect establishes a session with clean_session=true, a 20s keep-alive,
// and the given LWT. Each call installs a fresh circuit breaker named after
// the client id; that breaker guards later Publish calls on the session. A
// single Connect attempt runs through the new breaker and is never
// short-circuited by earlier failures.
func (c *Client) Connect(ctx context.Context, clientID string, lwt LastWill) error {
	opts := paho.NewClientOptions().
		AddBroker(c.host).
		SetClientID(clientID).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetAutoReconnect(false).
		SetWill(lwt.Topic, lwt.Payload, QoS, false)

	if c.user != "" {
		opts.SetUsername(c.user)
		opts.SetPassword(c.password)
	}

	opts.SetDefaultPublishHandler(func(_ paho.Client, m paho.Message) {
		payload := append([]byte(nil), m.Payload()...)
		c.push(&Message{Topic: m.Topic(), Payload: payload})
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logging.Warn(context.Background(), "broker connection lost", zap.Error(err), zap.String("client_id", clientID))
		c.push(nil)
	})

	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        clientID,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     reconnectWait,
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	pc := paho.NewClient(opts)
	_, err := c.cb.Execute(func() (any, error) {
		token := pc.Connect()
		if !token.WaitTimeout(10 * time.Second) {
			return nil, ErrBrokerUnavailable
		}
		if err := token.Error(); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrAuthFailed, err)
		}
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			return ErrBrokerUnavailable
		}
		return err
	}

	c.paho = pc
	return nil
}

// Subscribe bulk-subscribes to topics at QoS 2. On any per-topic failure
// it disconnects and returns ErrSubscribeFailed, per spec.md §4.1.
func (c *Client) Subscribe(topics []string) error {
	if c.paho == nil || !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}

	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = QoS
	}

	token := c.paho.SubscribeMultiple(filters, nil)
	if !token.WaitTimeout(10 * time.Second) {
		c.paho.Disconnect(0)
		return ErrSubscribeFailed
	}
	if err := token.Error(); err != nil {
		c.paho.Disconnect(0)
		return fmt.Errorf("%w: %s", ErrSubscribeFailed, err)
	}
	return nil
}

// Publish fires-and-forgets payload at QoS 2; delivery is guaranteed by
// the broker, not by waiting on this call beyond handshake completion.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if c.paho == nil || !c.paho.IsConnectionOpen() {
		return ErrNotConnected
	}

	_, err := c.cb.Execute(func() (any, error) {
		token := c.paho.Publish(topic, QoS, false, payload)
		if !token.WaitTimeout(10 * time.Second) {
			return nil, ErrPublishFailed
		}
		return nil, token.Error()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) {
			metrics.BrokerMessages.WithLabelValues("publish", "circuit_open").Inc()
			return ErrPublishFailed
		}
		metrics.BrokerMessages.WithLabelValues("publish", "failure").Inc()
		return fmt.Errorf("%w: %s", ErrPublishFailed, err)
	}
	metrics.BrokerMessages.WithLabelValues("publish", "success").Inc()
	return nil
}

// Stream returns the channel of inbound messages. A nil value denotes the
// broker's "connection reset" signal (spec.md §4.1's "yielded None"); the
// channel itself is never closed.
func (c *Client) Stream() <-chan *Message {
	return c.stream
}

func (c *Client) push(m *Message) {
	select {
	case c.stream <- m:
	default:
		// Stream is full: drop the oldest pending message rather than
		// block the paho callback goroutine.
		select {
		case <-c.stream:
		default:
		}
		c.stream <- m
	}
}

// IsConnected reports whether the underlying session is currently live.
func (c *Client) IsConnected() bool {
	return c.paho != nil && c.paho.IsConnectionOpen()
}

// Reconnect retries up to 12 times, 5000ms apart, returning success on the
// first attempt that connects.
func (c *Client) Reconnect(ctx context.Context, clientID string, lwt LastWill) error {
	for attempt := 1; attempt <= reconnectAttempts; attempt++ {
		if err := c.Connect(ctx, clientID, lwt); err == nil {
			metrics.BrokerReconnects.WithLabelValues("success").Inc()
			return nil
		}

		select {
		case <-ctx.Done():
			metrics.BrokerReconnects.WithLabelValues("cancelled").Inc()
			return ctx.Err()
		case <-time.After(reconnectWait):
		}
	}
	metrics.BrokerReconnects.WithLabelValues("exhausted").Inc()
	return ErrConnectionReset
}

// Disconnect closes the session if it is open; safe to call more than once.
// The message stream is left open.
func (c *Client) Disconnect() {
	if c.paho != nil && c.paho.IsConnectionOpen() {
		c.paho.Disconnect(250)
	}
}

// Ping satisfies health.Pinger: a broker adapter is healthy if it is
// currently connected.
func (c *Client) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}
