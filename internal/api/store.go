package api

import (
	"context"
	"database/sql"

	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_api.go -package=mocks

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)
}

// Store is the read and cart surface the handlers need from PostgreSQL.
type Store interface {
	Ping(ctx context.Context) error
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error)
	AddCartItem(ctx context.Context, customerID, productID int64, quantity int) error
	GetCart(ctx context.Context, customerID int64) ([]models.CartItem, error)
	ClearCart(ctx context.Context, customerID int64) error
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage, error)
	ListSalesHistory(ctx context.Context, customerID int64, page, pageSize int) (*store.OffsetPage, error)
}

type sqlStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) Store {
	return sqlStore{db: db}
}

func (s sqlStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s sqlStore) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	return store.GetProduct(ctx, s.db, id)
}

func (s sqlStore) ListProducts(ctx context.Context, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListProducts(ctx, s.db, page, pageSize)
}

func (s sqlStore) AddCartItem(ctx context.Context, customerID, productID int64, quantity int) error {
	return store.AddCartItem(ctx, s.db, customerID, productID, quantity)
}

func (s sqlStore) GetCart(ctx context.Context, customerID int64) ([]models.CartItem, error) {
	return store.GetCart(ctx, s.db, customerID)
}

func (s sqlStore) ClearCart(ctx context.Context, customerID int64) error {
	return store.ClearCart(ctx, s.db, customerID)
}

func (s sqlStore) GetOrder(ctx context.Context, id int64) (*models.Order, error) {
	return store.GetOrder(ctx, s.db, id)
}

func (s sqlStore) ListOrders(ctx context.Context, customerID int64, cursor string, limit int) (*store.CursorPage, error) {
	return store.ListOrdersCursor(ctx, s.db, customerID, cursor, limit)
}

func (s sqlStore) ListSalesHistory(ctx context.Context, customerID int64, page, pageSize int) (*store.OffsetPage, error) {
	return store.ListSalesHistory(ctx, s.db, customerID, page, pageSize)
}
