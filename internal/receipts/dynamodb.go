package receipts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type receiptItem struct {
	DocumentType  string `dynamodbav:"document_type"`
	OrderID       int64  `dynamodbav:"order_id"`
	MessageID     string `dynamodbav:"message_id"`
	Email         string `dynamodbav:"email"`
	Payload       string `dynamodbav:"payload"`
	DeliveryCount int    `dynamodbav:"delivery_count"`
	ReceivedAt    string `dynamodbav:"received_at"`
	UpdatedAt     string `dynamodbav:"updated_at"`
}

// NewDynamoClient builds a client for region. A non-empty endpoint targets
// DynamoDB Local, which ignores credentials but still needs some.
func NewDynamoClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if endpoint != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

// DynamoStore keeps receipts in a table keyed by document_type (hash) and
// order_id (range).
type DynamoStore struct {
	ddb       *dynamodb.Client
	tableName string
}

func NewDynamoStore(ddb *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{ddb: ddb, tableName: tableName}
}

func (s *DynamoStore) key(docType string, orderID int64) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"document_type": &types.AttributeValueMemberS{Value: docType},
		"order_id":      &types.AttributeValueMemberN{Value: strconv.FormatInt(orderID, 10)},
	}
}

func (s *DynamoStore) Save(ctx context.Context, r Receipt) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.tableName),
		Key:              s.key(r.DocumentType, r.OrderID),
		UpdateExpression: aws.String("SET #message_id = :message_id, #email = :email, #payload = :payload, #updated_at = :now, #received_at = if_not_exists(#received_at, :now) ADD #delivery_count :one"),
		ExpressionAttributeNames: map[string]string{
			"#message_id":     "message_id",
			"#email":          "email",
			"#payload":        "payload",
			"#updated_at":     "updated_at",
			"#received_at":    "received_at",
			"#delivery_count": "delivery_count",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":message_id": &types.AttributeValueMemberS{Value: r.MessageID},
			":email":      &types.AttributeValueMemberS{Value: r.Email},
			":payload":    &types.AttributeValueMemberS{Value: string(r.Payload)},
			":now":        &types.AttributeValueMemberS{Value: now},
			":one":        &types.AttributeValueMemberN{Value: "1"},
		},
	})
	if err != nil {
		return fmt.Errorf("save receipt: %w", err)
	}
	return nil
}

func (s *DynamoStore) Get(ctx context.Context, docType string, orderID int64) (*Receipt, error) {
	out, err := s.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            s.key(docType, orderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}

	var it receiptItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal receipt: %w", err)
	}

	r := &Receipt{
		DocumentType:  it.DocumentType,
		OrderID:       it.OrderID,
		MessageID:     it.MessageID,
		Email:         it.Email,
		Payload:       []byte(it.Payload),
		DeliveryCount: it.DeliveryCount,
	}
	r.ReceivedAt, _ = time.Parse(time.RFC3339Nano, it.ReceivedAt)
	r.UpdatedAt, _ = time.Parse(time.RFC3339Nano, it.UpdatedAt)
	return r, nil
}

// EnsureTable creates the receipts table when it does not exist yet.
func (s *DynamoStore) EnsureTable(ctx context.Context) error {
	_, err := s.ddb.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err == nil {
		return nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table %s: %w", s.tableName, err)
	}

	_, err = s.ddb.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("document_type"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("order_id"), AttributeType: types.ScalarAttributeTypeN},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("document_type"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("order_id"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(s.ddb)
	return waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)}, 30*time.Second)
}
