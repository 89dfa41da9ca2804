package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/storefront/internal/config"
)

const (
	contentTypeJSON   = "application/json"
	headerDocType     = "document_type"
	dialTimeout       = 10 * time.Second
	defaultPublishTTL = 10 * time.Second
)

// AMQPPublisher publishes purchase events as persistent messages on the
// default exchange. One connection and channel are cached and re-dialed
// after any failure; a failed publish is never retried here.
type AMQPPublisher struct {
	url    string
	cfg    amqp.Config
	router Router
	logger *slog.Logger

	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	declared map[string]bool
}

func NewAMQPPublisher(cfg config.BrokerConfig, logger *slog.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		url: cfg.URL(),
		cfg: amqp.Config{
			Heartbeat: cfg.Heartbeat,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		},
		router:   NewRouter(cfg),
		logger:   logger.With("component", "publisher"),
		declared: make(map[string]bool),
	}
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev *PurchaseEvent) error {
	queue, err := p.router.QueueFor(ev.DocumentType)
	if err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultPublishTTL)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(queue)
	if err != nil {
		p.reset()
		return err
	}

	msgID := uuid.NewString()
	err = ch.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    msgID,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{headerDocType: ev.DocumentType},
		Body:         body,
	})
	if err != nil {
		p.reset()
		return fmt.Errorf("publish to %s: %w", queue, err)
	}

	p.logger.Info("purchase event published",
		"queue", queue,
		"message_id", msgID,
		"compra_id", ev.OrderID,
	)
	return nil
}

func (p *AMQPPublisher) channel(queue string) (*amqp.Channel, error) {
	if p.conn == nil || p.conn.IsClosed() {
		conn, err := amqp.DialConfig(p.url, p.cfg)
		if err != nil {
			return nil, fmt.Errorf("dial broker: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("open channel: %w", err)
		}
		p.conn, p.ch = conn, ch
		p.declared = make(map[string]bool)
	}

	if !p.declared[queue] {
		if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		p.declared[queue] = true
	}

	return p.ch, nil
}

func (p *AMQPPublisher) reset() {
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn, p.ch = nil, nil
	return err
}
