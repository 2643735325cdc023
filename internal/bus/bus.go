// Package bus wraps NATS JetStream as the durable message bus for C6:
// publish/consume with ack/nack-requeue/nack-no-requeue semantics over the
// metrics, discovery, alerts, and dead_letter streams. Grounded on
// packages/go-core/natsclient, adapted from a generic domain-events stream
// to this collector's fixed subject set.
package bus

import (
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subject names, one per durable queue spec.md §4.6 names.
const (
	SubjectMetrics    = "optilab.metrics"
	SubjectDiscovery  = "optilab.discovery"
	SubjectAlerts     = "optilab.alerts"
	SubjectDeadLetter = "optilab.dead_letter"

	streamName = "OPTILAB"

	// messageTTL and maxMessages implement spec.md §4.6's "message TTL 24h
	// and max length 100000" per declared queue.
	messageTTL  = 24 * time.Hour
	maxMessages = 100_000
)

// Client owns a NATS connection and its JetStream context. The retry
// backoff used by Publish is built per call, not held here.
type Client struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	log  *zap.Logger
	url  string
}

// Connect dials url (ping interval 600s, connect timeout 300s, unlimited
// automatic reconnects) and provisions the OPTILAB stream if absent.
func Connect(url string, logger *zap.Logger) (*Client, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.PingInterval(600*time.Second),
		nats.Timeout(300*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream context: %w", err)
	}

	c := &Client{conn: nc, js: js, log: logger, url: url}
	if err := c.provisionStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) provisionStream() error {
	_, err := c.js.StreamInfo(streamName)
	if err == nil {
		return nil
	}
	if err != nats.ErrStreamNotFound {
		return fmt.Errorf("bus: stream info: %w", err)
	}

	_, err = c.js.AddStream(&nats.StreamConfig{
		Name:      streamName,
		Subjects:  []string{SubjectMetrics, SubjectDiscovery, SubjectAlerts, SubjectDeadLetter},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    messageTTL,
		// Per-subject cap, so each queue gets its own 100000-message limit.
		MaxMsgsPerSubject: maxMessages,
	})
	if err != nil {
		return fmt.Errorf("bus: create stream: %w", err)
	}
	c.log.Info("message bus stream provisioned", zap.String("stream", streamName))
	return nil
}

// Publish sends a persisted message to subject. On failure it retries the
// publish once after 200ms and returns the error if that also fails; it
// does not reconnect itself, reconnection being left to the NATS client's
// automatic reconnect set up in Connect. The caller may drop or buffer on
// failure.
func (c *Client) Publish(subject string, payload []byte) error {
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(200*time.Millisecond), 1)
	return backoff.Retry(func() error {
		_, err := c.js.Publish(subject, payload)
		return err
	}, bo)
}

// Close drains in-flight publishes and subscriptions before disconnecting,
// the same pattern go-core/natsclient uses: Close() alone would drop
// in-flight messages.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
}
