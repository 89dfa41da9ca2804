package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/testutil"
)

func testBrokerConfig() config.BrokerConfig {
	return config.BrokerConfig{
		Host:         "127.0.0.1",
		Port:         1,
		User:         "guest",
		Password:     "guest",
		Heartbeat:    10 * time.Second,
		BoletaQueue:  "cola_boletas",
		FacturaQueue: "cola_facturas",
	}
}

func TestPublishBrokerDown(t *testing.T) {
	p := NewAMQPPublisher(testBrokerConfig(), logger.Discard())
	defer p.Close()

	err := p.Publish(context.Background(), NewPurchaseEvent(boletaSummary()))
	if err == nil {
		t.Fatal("Expected error when broker is unreachable")
	}
}

func TestPublishUnroutable(t *testing.T) {
	p := NewAMQPPublisher(testBrokerConfig(), logger.Discard())

	ev := NewPurchaseEvent(boletaSummary())
	ev.DocumentType = "nota"
	if err := p.Publish(context.Background(), ev); err == nil {
		t.Fatal("Expected routing error")
	}
}

func TestPublishPersistentMessage(t *testing.T) {
	url, cleanup := testutil.SetupRabbitMQ(t)
	defer cleanup()

	p := NewAMQPPublisher(testBrokerConfig(), logger.Discard())
	p.url = url
	defer p.Close()

	ctx := context.Background()
	if err := p.Publish(ctx, NewPurchaseEvent(boletaSummary())); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}

	msg, ok, err := ch.Get("cola_boletas", true)
	if err != nil || !ok {
		t.Fatalf("Expected a message on cola_boletas, ok=%v err=%v", ok, err)
	}

	if msg.DeliveryMode != amqp.Persistent {
		t.Errorf("Expected persistent delivery, got %d", msg.DeliveryMode)
	}
	if msg.ContentType != "application/json" || msg.MessageId == "" {
		t.Errorf("Unexpected properties %q %q", msg.ContentType, msg.MessageId)
	}
	if msg.Headers["document_type"] != "boleta" {
		t.Errorf("Expected document_type header, got %v", msg.Headers)
	}

	var ev PurchaseEvent
	if err := json.Unmarshal(msg.Body, &ev); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if ev.OrderID != 31 || len(ev.Lines) != 1 || ev.Lines[0].Subtotal != 20.0 {
		t.Errorf("Unexpected body %+v", ev)
	}

	if _, ok, _ := ch.Get("cola_facturas", true); ok {
		t.Error("Nothing should be routed to cola_facturas")
	}
}
