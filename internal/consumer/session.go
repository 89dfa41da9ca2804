package consumer

import (
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/storefront/internal/config"
)

const dialTimeout = 10 * time.Second

// Session is one broker connection with a consuming channel.
type Session interface {
	// Consume declares queue as durable and starts a manual-ack consumer
	// with a prefetch of one.
	Consume(queue, tag string) (<-chan amqp.Delivery, error)
	NotifyClose() <-chan *amqp.Error
	Close() error
}

type DialFunc func() (Session, error)

type amqpSession struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

func AMQPDialer(cfg config.BrokerConfig) DialFunc {
	return func() (Session, error) {
		conn, err := amqp.DialConfig(cfg.URL(), amqp.Config{
			Heartbeat: cfg.Heartbeat,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}

		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("open channel: %w", err)
		}

		return &amqpSession{conn: conn, ch: ch}, nil
	}
}

func (s *amqpSession) Consume(queue, tag string) (<-chan amqp.Delivery, error) {
	if _, err := s.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	if err := s.ch.Qos(1, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := s.ch.Consume(queue, tag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", queue, err)
	}
	return deliveries, nil
}

func (s *amqpSession) NotifyClose() <-chan *amqp.Error {
	return s.conn.NotifyClose(make(chan *amqp.Error, 1))
}

func (s *amqpSession) Close() error {
	return s.conn.Close()
}
