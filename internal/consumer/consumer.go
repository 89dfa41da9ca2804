package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/notify"
	"github.com/safar/storefront/internal/receipts"
)

var (
	ErrBrokerUnavailable = errors.New("broker unavailable")
	errDeliveriesClosed  = errors.New("delivery channel closed")
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateConsuming
	StateDisconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConsuming:
		return "consuming"
	case StateDisconnecting:
		return "disconnecting"
	default:
		return "idle"
	}
}

// Outcome is what happened to one message. Every outcome ends in an ack.
type Outcome int

const (
	OutcomeInvalidPayload Outcome = iota
	OutcomeIgnored
	OutcomeStored
	OutcomeStoreFailed
	OutcomeNotified
	OutcomeNotifyFailed
	OutcomePanicked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalidPayload:
		return "invalid_payload"
	case OutcomeIgnored:
		return "ignored"
	case OutcomeStored:
		return "stored"
	case OutcomeStoreFailed:
		return "store_failed"
	case OutcomeNotified:
		return "notified"
	case OutcomeNotifyFailed:
		return "notify_failed"
	default:
		return "panicked"
	}
}

type Options struct {
	DocumentType string
	Queue        string
	Attempts     int
	RetryDelay   time.Duration
}

// Consumer reads one document type's queue, stores a receipt per event and
// mails it when the event names a destination.
type Consumer struct {
	opts   Options
	dial   DialFunc
	store  receipts.Store
	mailer notify.Mailer
	logger *slog.Logger
	state  atomic.Int32
}

func New(opts Options, dial DialFunc, store receipts.Store, mailer notify.Mailer, logger *slog.Logger) *Consumer {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	return &Consumer{
		opts:   opts,
		dial:   dial,
		store:  store,
		mailer: mailer,
		logger: logger.With("component", "consumer", "tipo_comprobante", opts.DocumentType, "queue", opts.Queue),
	}
}

func (c *Consumer) State() State {
	return State(c.state.Load())
}

func (c *Consumer) setState(s State) {
	c.state.Store(int32(s))
}

// Run consumes until ctx is cancelled. A lost connection is re-dialed with a
// fresh attempt budget; running out of attempts returns ErrBrokerUnavailable.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.setState(StateIdle)

	for {
		sess, deliveries, err := c.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = c.consume(ctx, sess, deliveries)

		c.setState(StateDisconnecting)
		if cerr := sess.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			c.logger.Debug("close session", "error", cerr)
		}

		if ctx.Err() != nil {
			c.logger.Info("consumer stopped")
			return nil
		}
		c.logger.Warn("broker connection lost, reconnecting", "error", err)
	}
}

func (c *Consumer) connect(ctx context.Context) (Session, <-chan amqp.Delivery, error) {
	var lastErr error

	for attempt := 1; attempt <= c.opts.Attempts; attempt++ {
		c.setState(StateConnecting)
		c.logger.Info("connecting to broker", "attempt", attempt, "max_attempts", c.opts.Attempts)

		sess, err := c.dial()
		if err == nil {
			var deliveries <-chan amqp.Delivery
			deliveries, err = sess.Consume(c.opts.Queue, "")
			if err == nil {
				c.setState(StateConsuming)
				c.logger.Info("waiting for messages")
				return sess, deliveries, nil
			}
			sess.Close()
		}

		lastErr = err
		c.logger.Warn("broker connection failed", "attempt", attempt, "error", err)

		if attempt == c.opts.Attempts {
			break
		}

		t := time.NewTimer(c.opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, nil, ctx.Err()
		case <-t.C:
		}
	}

	return nil, nil, fmt.Errorf("%w after %d attempts: %v", ErrBrokerUnavailable, c.opts.Attempts, lastErr)
}

func (c *Consumer) consume(ctx context.Context, sess Session, deliveries <-chan amqp.Delivery) error {
	closed := sess.NotifyClose()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case amqpErr := <-closed:
			if amqpErr == nil {
				return amqp.ErrClosed
			}
			return amqpErr
		case d, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.process(ctx, d)
		}
	}
}

func (c *Consumer) process(ctx context.Context, d amqp.Delivery) Outcome {
	out := c.HandleMessage(context.WithoutCancel(ctx), d)

	if err := d.Ack(false); err != nil {
		c.logger.Error("ack failed", "delivery_tag", d.DeliveryTag, "error", err)
	}
	return out
}

// HandleMessage never returns an error and never panics; the caller acks
// whatever the outcome.
func (c *Consumer) HandleMessage(ctx context.Context, d amqp.Delivery) (out Outcome) {
	log := c.logger.With("message_id", d.MessageId, "delivery_tag", d.DeliveryTag, "redelivered", d.Redelivered)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling message", "panic", r)
			out = OutcomePanicked
		}
	}()

	ev, err := events.Decode(d.Body)
	if err != nil {
		log.Error("discarding message", "error", err, "body", string(d.Body))
		return OutcomeInvalidPayload
	}
	log = log.With("compra_id", ev.OrderID)

	if ev.DocumentType != c.opts.DocumentType {
		log.Warn("ignoring message for another document type", "got", ev.DocumentType)
		return OutcomeIgnored
	}

	out = OutcomeStored
	err = c.store.Save(ctx, receipts.Receipt{
		DocumentType: ev.DocumentType,
		OrderID:      ev.OrderID,
		MessageID:    d.MessageId,
		Email:        ev.DestinationEmail,
		Payload:      d.Body,
	})
	if err != nil {
		log.Error("receipt not stored", "error", err)
		out = OutcomeStoreFailed
	} else {
		log.Info("receipt stored")
	}

	if ev.DestinationEmail == "" {
		log.Info("no email_destino, skipping notification")
		return out
	}

	subject, body, err := notify.FormatReceipt(ev)
	if err == nil {
		err = c.mailer.Send(ctx, ev.DestinationEmail, subject, body)
	}
	if err != nil {
		log.Error("notification failed", "to", ev.DestinationEmail, "error", err)
		return OutcomeNotifyFailed
	}

	log.Info("notification sent", "to", ev.DestinationEmail)
	return OutcomeNotified
}
