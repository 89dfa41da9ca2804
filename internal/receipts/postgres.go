package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, r Receipt) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO receipts (document_type, order_id, message_id, email, payload, delivery_count, received_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 1, NOW(), NOW())
		 ON CONFLICT (document_type, order_id)
		 DO UPDATE SET message_id = EXCLUDED.message_id,
		               email = EXCLUDED.email,
		               payload = EXCLUDED.payload,
		               delivery_count = receipts.delivery_count + 1,
		               updated_at = NOW()`,
		r.DocumentType, r.OrderID, r.MessageID, r.Email, string(r.Payload))
	if err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, docType string, orderID int64) (*Receipt, error) {
	r := &Receipt{}
	var payload []byte

	err := s.db.QueryRowContext(ctx,
		`SELECT document_type, order_id, message_id, email, payload, delivery_count, received_at, updated_at
		 FROM receipts
		 WHERE document_type = $1 AND order_id = $2`,
		docType, orderID).Scan(
		&r.DocumentType,
		&r.OrderID,
		&r.MessageID,
		&r.Email,
		&payload,
		&r.DeliveryCount,
		&r.ReceivedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	r.Payload = payload
	return r, nil
}
