package checkout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

var ErrPublishFailed = errors.New("order saved but event publish failed")

//go:generate mockgen -source=service.go -destination=mocks/mock_service.go -package=mocks

type OrderCreator interface {
	CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.OrderSummary, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev *events.PurchaseEvent) error
}

type sqlOrders struct {
	db *sql.DB
}

// NewSQLOrders adapts store.CreateOrder to OrderCreator.
func NewSQLOrders(db *sql.DB) OrderCreator {
	return sqlOrders{db: db}
}

func (s sqlOrders) CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.OrderSummary, error) {
	return store.CreateOrder(ctx, s.db, req)
}

type Request struct {
	CustomerID       int64
	DocumentType     string
	TaxID            string
	CustomerName     string
	DestinationEmail string
	// Cart nil checks out the server-side cart.
	Cart []models.CartItem
}

type Result struct {
	Order *models.OrderSummary
	Event *events.PurchaseEvent
	// PublishWarning is set when the order committed but the event could
	// not be handed to the broker. It wraps ErrPublishFailed.
	PublishWarning error
}

type Service struct {
	orders    OrderCreator
	publisher Publisher
	logger    *slog.Logger
}

func NewService(orders OrderCreator, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{
		orders:    orders,
		publisher: publisher,
		logger:    logger.With("component", "checkout"),
	}
}

func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	if err := ValidateDocumentType(req.DocumentType); err != nil {
		return nil, err
	}
	if req.DocumentType == models.DocumentTypeFactura {
		if err := ValidateTaxID(req.TaxID); err != nil {
			return nil, err
		}
	}

	// Quantities are checked by the store after the customer lookup, so an
	// inactive customer is reported before a bad cart.
	var items []store.OrderItemRequest
	if req.Cart != nil {
		items = make([]store.OrderItemRequest, 0, len(req.Cart))
		for _, ci := range req.Cart {
			items = append(items, store.OrderItemRequest{ProductID: ci.ProductID, Quantity: ci.Quantity})
		}
	}

	summary, err := s.orders.CreateOrder(ctx, store.CreateOrderRequest{
		CustomerID:       req.CustomerID,
		DocumentType:     req.DocumentType,
		TaxID:            req.TaxID,
		CustomerName:     req.CustomerName,
		DestinationEmail: req.DestinationEmail,
		Items:            items,
	})
	if err != nil {
		if errors.Is(err, database.ErrEmptyCart) || errors.Is(err, database.ErrInvalidQuantity) {
			return nil, fmt.Errorf("%w: %w", ErrMalformedCart, err)
		}
		return nil, err
	}

	result := &Result{
		Order: summary,
		Event: events.NewPurchaseEvent(summary),
	}

	if err := s.publisher.Publish(ctx, result.Event); err != nil {
		s.logger.Warn("order committed without event",
			"compra_id", summary.OrderID,
			"tipo_comprobante", summary.DocumentType,
			"error", err,
		)
		result.PublishWarning = fmt.Errorf("%w: %w", ErrPublishFailed, err)
		return result, nil
	}

	s.logger.Info("checkout completed",
		"compra_id", summary.OrderID,
		"cliente_id", summary.CustomerID,
		"total", summary.Total.String(),
	)
	return result, nil
}
