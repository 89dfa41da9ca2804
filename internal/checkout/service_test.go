package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/checkout/mocks"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

func summary() *models.OrderSummary {
	return &models.OrderSummary{
		OrderID:          10,
		CustomerID:       1,
		DocumentType:     models.DocumentTypeBoleta,
		CustomerName:     "Ana Torres",
		DestinationEmail: "ana@example.com",
		Total:            decimal.NewFromInt(20),
		Lines: []models.OrderSummaryLine{{
			ProductID: 7,
			Quantity:  2,
			UnitPrice: decimal.NewFromInt(10),
			Subtotal:  decimal.NewFromInt(20),
		}},
	}
}

func TestCheckout_Validations(t *testing.T) {
	tests := []struct {
		name string
		req  checkout.Request
		want error
	}{
		{"bad document type", checkout.Request{CustomerID: 1, DocumentType: "nota"}, checkout.ErrInvalidDocumentType},
		{"factura without ruc", checkout.Request{CustomerID: 1, DocumentType: "factura"}, checkout.ErrInvalidTaxID},
		{"factura short ruc", checkout.Request{CustomerID: 1, DocumentType: "factura", TaxID: "123"}, checkout.ErrInvalidTaxID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			orders := mocks.NewMockOrderCreator(ctrl)
			publisher := mocks.NewMockPublisher(ctrl)
			svc := checkout.NewService(orders, publisher, logger.Discard())

			_, err := svc.Checkout(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCheckout_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	orders := mocks.NewMockOrderCreator(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	svc := checkout.NewService(orders, publisher, logger.Discard())

	orders.EXPECT().
		CreateOrder(gomock.Any(), store.CreateOrderRequest{
			CustomerID:   1,
			DocumentType: "boleta",
			CustomerName: "Ana Torres",
			Items:        []store.OrderItemRequest{{ProductID: 7, Quantity: 1}, {ProductID: 7, Quantity: 1}},
		}).
		Return(summary(), nil)

	var published *events.PurchaseEvent
	publisher.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev *events.PurchaseEvent) error {
			published = ev
			return nil
		})

	res, err := svc.Checkout(context.Background(), checkout.Request{
		CustomerID:   1,
		DocumentType: "boleta",
		CustomerName: "Ana Torres",
		Cart:         []models.CartItem{{ProductID: 7, Quantity: 1}, {ProductID: 7, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if res.PublishWarning != nil {
		t.Fatalf("expected no warning, got %v", res.PublishWarning)
	}
	if published == nil || published.OrderID != 10 || published.Lines[0].Subtotal != 20.0 {
		t.Fatalf("unexpected published event %+v", published)
	}
	if res.Event != published {
		t.Error("result should carry the published event")
	}
}

func TestCheckout_ServerSideCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	orders := mocks.NewMockOrderCreator(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	svc := checkout.NewService(orders, publisher, logger.Discard())

	orders.EXPECT().
		CreateOrder(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, req store.CreateOrderRequest) (*models.OrderSummary, error) {
			if req.Items != nil {
				t.Errorf("expected nil items to select the stored cart, got %+v", req.Items)
			}
			return nil, database.ErrEmptyCart
		})

	_, err := svc.Checkout(context.Background(), checkout.Request{CustomerID: 1, DocumentType: "boleta"})
	if !errors.Is(err, checkout.ErrMalformedCart) || !errors.Is(err, database.ErrEmptyCart) {
		t.Fatalf("expected ErrMalformedCart wrapping ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_CartRejectedByStore(t *testing.T) {
	tests := []struct {
		name     string
		cart     []models.CartItem
		storeErr error
	}{
		{"empty explicit cart", []models.CartItem{}, database.ErrEmptyCart},
		{"zero quantity", []models.CartItem{{ProductID: 7}}, fmt.Errorf("item 0: %w: 0", database.ErrInvalidQuantity)},
		{"merged overflow", []models.CartItem{{ProductID: 7, Quantity: models.MaxLineQuantity}, {ProductID: 7, Quantity: 1}}, fmt.Errorf("product 7: %w", database.ErrInvalidQuantity)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			orders := mocks.NewMockOrderCreator(ctrl)
			publisher := mocks.NewMockPublisher(ctrl)
			svc := checkout.NewService(orders, publisher, logger.Discard())

			orders.EXPECT().
				CreateOrder(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, req store.CreateOrderRequest) (*models.OrderSummary, error) {
					if req.Items == nil || len(req.Items) != len(tt.cart) {
						t.Errorf("expected %d explicit items, got %#v", len(tt.cart), req.Items)
					}
					return nil, tt.storeErr
				})

			_, err := svc.Checkout(context.Background(), checkout.Request{CustomerID: 1, DocumentType: "boleta", Cart: tt.cart})
			if !errors.Is(err, checkout.ErrMalformedCart) || !errors.Is(err, tt.storeErr) {
				t.Fatalf("expected ErrMalformedCart wrapping %v, got %v", tt.storeErr, err)
			}
		})
	}
}

func TestCheckout_InactiveCustomerBeforeEmptyCart(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	orders := mocks.NewMockOrderCreator(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	svc := checkout.NewService(orders, publisher, logger.Discard())

	orders.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil, database.ErrCustomerInactive)

	_, err := svc.Checkout(context.Background(), checkout.Request{CustomerID: 1, DocumentType: "boleta", Cart: []models.CartItem{}})
	if !errors.Is(err, database.ErrCustomerInactive) {
		t.Fatalf("expected %v, got %v", database.ErrCustomerInactive, err)
	}
	if errors.Is(err, checkout.ErrMalformedCart) {
		t.Fatalf("expected customer error only, got %v", err)
	}
}

func TestCheckout_StoreErrorsPassThrough(t *testing.T) {
	for _, storeErr := range []error{
		database.ErrInsufficientStock,
		database.ErrCustomerInactive,
		database.ErrProductNotFound,
		errors.New("connection reset"),
	} {
		t.Run(storeErr.Error(), func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			orders := mocks.NewMockOrderCreator(ctrl)
			publisher := mocks.NewMockPublisher(ctrl)
			svc := checkout.NewService(orders, publisher, logger.Discard())

			orders.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(nil, storeErr)

			_, err := svc.Checkout(context.Background(), checkout.Request{
				CustomerID:   1,
				DocumentType: "factura",
				TaxID:        "20123456789",
				Cart:         []models.CartItem{{ProductID: 7, Quantity: 2}},
			})
			if !errors.Is(err, storeErr) {
				t.Fatalf("expected %v, got %v", storeErr, err)
			}
		})
	}
}

func TestCheckout_PublishFailureKeepsOrder(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	orders := mocks.NewMockOrderCreator(ctrl)
	publisher := mocks.NewMockPublisher(ctrl)
	svc := checkout.NewService(orders, publisher, logger.Discard())

	orders.EXPECT().CreateOrder(gomock.Any(), gomock.Any()).Return(summary(), nil).Times(1)
	publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("dial broker: connection refused"))

	res, err := svc.Checkout(context.Background(), checkout.Request{
		CustomerID:   1,
		DocumentType: "boleta",
		Cart:         []models.CartItem{{ProductID: 7, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the sale, got %v", err)
	}
	if !errors.Is(res.PublishWarning, checkout.ErrPublishFailed) {
		t.Fatalf("expected ErrPublishFailed warning, got %v", res.PublishWarning)
	}
	if res.Order == nil || res.Order.OrderID != 10 {
		t.Fatalf("expected committed order 10, got %+v", res.Order)
	}
}
