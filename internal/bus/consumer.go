package bus

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	defaultPrefetch = 10
	fetchWait       = 2 * time.Second
)

// Handler processes one message's payload and reports whether it was
// handled successfully. true -> ack; false -> nack with requeue, per
// spec.md §4.6.
type Handler func(payload []byte) bool

// Consumer is a durable pull subscription on a single subject. Each
// consumer owns its own JetStream subscription; per spec.md §5, "the
// channel is not thread-safe and must not be shared across threads", so a
// Consumer must not be used from more than one goroutine concurrently.
type Consumer struct {
	sub      *nats.Subscription
	client   *Client
	log      *zap.Logger
	subject  string
	prefetch int
}

// NewConsumer declares a durable pull consumer named durableName on
// subject, with the given prefetch window (default 10 if <= 0).
func (c *Client) NewConsumer(subject, durableName string, prefetch int) (*Consumer, error) {
	if prefetch <= 0 {
		prefetch = defaultPrefetch
	}
	sub, err := c.js.PullSubscribe(subject, durableName, nats.ManualAck(), nats.AckWait(30*time.Second))
	if err != nil {
		return nil, err
	}
	return &Consumer{sub: sub, client: c, log: c.log, subject: subject, prefetch: prefetch}, nil
}

// Run fetches and dispatches messages to handler until ctx is cancelled.
// Before calling handler, Run checks each payload with IsMalformed: a
// payload that is not a JSON object is republished to SubjectDeadLetter and
// terminated without requeue, and handler never sees it. For the rest, a
// false result from handler or a panic inside it nacks with requeue.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		msgs, err := c.sub.Fetch(c.prefetch, nats.MaxWait(fetchWait))
		if err != nil {
			if err == nats.ErrTimeout || err == context.DeadlineExceeded {
				continue
			}
			return err
		}

		for _, m := range msgs {
			c.dispatch(m, handler)

			select {
			case <-ctx.Done():
				return nil
			default:
			}
		}
	}
}

func (c *Consumer) dispatch(m *nats.Msg, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("handler panicked, nacking with requeue",
				zap.String("subject", c.subject), zap.Any("panic", r))
			_ = m.Nak()
		}
	}()

	if IsMalformed(m.Data) {
		c.log.Warn("malformed message, routing to dead letter", zap.String("subject", c.subject))
		if err := c.client.Publish(SubjectDeadLetter, m.Data); err != nil {
			c.log.Error("dead letter publish failed", zap.String("subject", c.subject), zap.Error(err))
		}
		_ = m.Term()
		return
	}

	if handler(m.Data) {
		_ = m.Ack()
	} else {
		_ = m.Nak()
	}
}

// IsMalformed does the minimal structural check the consumer needs before
// handing a payload to its handler: it must be a JSON object. Deeper schema
// validation is the handler's job.
func IsMalformed(payload []byte) bool {
	for _, b := range payload {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return false
		default:
			return true
		}
	}
	return true
}
