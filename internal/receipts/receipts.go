package receipts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/safar/storefront/internal/config"
)

var ErrNotFound = errors.New("receipt not found")

// Receipt is the consumer's record of one purchase event. Saving the same
// (DocumentType, OrderID) again replaces the payload and bumps
// DeliveryCount; ReceivedAt keeps the first arrival.
type Receipt struct {
	DocumentType  string          `json:"tipo_comprobante"`
	OrderID       int64           `json:"compra_id"`
	MessageID     string          `json:"message_id,omitempty"`
	Email         string          `json:"email_destino,omitempty"`
	Payload       json.RawMessage `json:"payload"`
	DeliveryCount int             `json:"delivery_count"`
	ReceivedAt    time.Time       `json:"received_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type Store interface {
	Save(ctx context.Context, r Receipt) error
	Get(ctx context.Context, docType string, orderID int64) (*Receipt, error)
}

// New builds the store selected by RECEIPT_STORE. db is only used by the
// postgres backend. The returned func releases backend connections.
func New(ctx context.Context, cfg config.ReceiptsConfig, db *sql.DB) (Store, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.ReceiptStorePostgres:
		if db == nil {
			return nil, noop, fmt.Errorf("postgres receipt store needs a database")
		}
		return NewPostgresStore(db), noop, nil
	case config.ReceiptStoreMemory:
		return NewMemoryStore(cfg.MemoryLimit), noop, nil
	case config.ReceiptStoreDynamoDB:
		client, err := NewDynamoClient(ctx, cfg.AWSRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, noop, err
		}
		s := NewDynamoStore(client, cfg.DynamoTable)
		if cfg.DynamoEndpoint != "" {
			if err := s.EnsureTable(ctx); err != nil {
				return nil, noop, err
			}
		}
		return s, noop, nil
	case config.ReceiptStoreMongoDB:
		s, err := ConnectMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { s.Close(context.Background()) }, nil
	default:
		return nil, noop, fmt.Errorf("%w: RECEIPT_STORE %q", config.ErrInvalidConfig, cfg.Backend)
	}
}
