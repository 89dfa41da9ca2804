package receipts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoCollection = "receipts"

type receiptDoc struct {
	DocumentType  string    `bson:"document_type"`
	OrderID       int64     `bson:"order_id"`
	MessageID     string    `bson:"message_id"`
	Email         string    `bson:"email"`
	Payload       string    `bson:"payload"`
	DeliveryCount int       `bson:"delivery_count"`
	ReceivedAt    time.Time `bson:"received_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

func ConnectMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	s := &MongoStore{
		client:     client,
		collection: client.Database(database).Collection(mongoCollection),
	}

	_, err = s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "document_type", Value: 1}, {Key: "order_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("create receipts index: %w", err)
	}

	return s, nil
}

func (s *MongoStore) Save(ctx context.Context, r Receipt) error {
	now := time.Now().UTC()
	filter := bson.M{"document_type": r.DocumentType, "order_id": r.OrderID}
	update := bson.M{
		"$set": bson.M{
			"message_id": r.MessageID,
			"email":      r.Email,
			"payload":    string(r.Payload),
			"updated_at": now,
		},
		"$setOnInsert": bson.M{"received_at": now},
		"$inc":         bson.M{"delivery_count": 1},
	}

	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *MongoStore) Get(ctx context.Context, docType string, orderID int64) (*Receipt, error) {
	var doc receiptDoc
	err := s.collection.FindOne(ctx, bson.M{"document_type": docType, "order_id": orderID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	return &Receipt{
		DocumentType:  doc.DocumentType,
		OrderID:       doc.OrderID,
		MessageID:     doc.MessageID,
		Email:         doc.Email,
		Payload:       []byte(doc.Payload),
		DeliveryCount: doc.DeliveryCount,
		ReceivedAt:    doc.ReceivedAt,
		UpdatedAt:     doc.UpdatedAt,
	}, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
