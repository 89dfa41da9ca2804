package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type CreateOrderRequest struct {
	CustomerID       int64
	DocumentType     string
	TaxID            string
	CustomerName     string
	DestinationEmail string
	// Items nil means "check out the customer's server-side cart".
	Items []OrderItemRequest
}

type OrderItemRequest struct {
	ProductID int64
	Quantity  int
}

// CreateOrder reserves stock and persists the order, its lines and the
// sales-history rows in one transaction, then clears the customer's cart.
// Nothing is written unless every line fits in stock.
func CreateOrder(ctx context.Context, db *sql.DB, req CreateOrderRequest) (*models.OrderSummary, error) {
	var summary *models.OrderSummary

	err := database.WithRetry(ctx, db, database.CheckoutTxOptions(), func(tx *sql.Tx) error {
		summary = nil

		docTypeID, err := ResolveDocumentType(ctx, tx, req.DocumentType)
		if err != nil {
			return err
		}

		customer, err := GetActiveCustomer(ctx, tx, req.CustomerID)
		if err != nil {
			return err
		}

		items := req.Items
		if items == nil {
			cart, err := GetCart(ctx, tx, req.CustomerID)
			if err != nil {
				return err
			}
			for _, ci := range cart {
				items = append(items, OrderItemRequest{ProductID: ci.ProductID, Quantity: ci.Quantity})
			}
		}

		items, err = mergeItems(items)
		if err != nil {
			return err
		}

		s := &models.OrderSummary{
			CustomerID:       customer.ID,
			DocumentType:     req.DocumentType,
			DestinationEmail: req.DestinationEmail,
			Total:            decimal.Zero,
		}
		if s.DestinationEmail == "" {
			s.DestinationEmail = customer.Email
		}

		var taxID, fullName sql.NullString
		switch req.DocumentType {
		case models.DocumentTypeFactura:
			s.TaxID = req.TaxID
			taxID = sql.NullString{String: req.TaxID, Valid: true}
		case models.DocumentTypeBoleta:
			s.CustomerName = req.CustomerName
			fullName = sql.NullString{String: req.CustomerName, Valid: true}
		}

		for _, item := range items {
			product, err := ReserveStock(ctx, tx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}

			subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			s.Total = s.Total.Add(subtotal)
			s.Lines = append(s.Lines, models.OrderSummaryLine{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				Brand:     product.Brand,
				Name:      product.Name,
				UnitPrice: product.Price,
				Subtotal:  subtotal,
			})
		}

		err = tx.QueryRowContext(ctx,
			`INSERT INTO orders (customer_id, document_type_id, tax_id, total, destination_email, customer_full_name, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NOW())
			 RETURNING id`,
			customer.ID, docTypeID, taxID, s.Total, s.DestinationEmail, fullName).Scan(&s.OrderID)
		if err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		for _, line := range s.Lines {
			if err := DecrementStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO order_lines (order_id, product_id, quantity, unit_price, subtotal)
				 VALUES ($1, $2, $3, $4, $5)`,
				s.OrderID, line.ProductID, line.Quantity, line.UnitPrice, line.Subtotal)
			if err != nil {
				return fmt.Errorf("create order line: %w", err)
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO sales_history (customer_id, product_id, quantity, sale_total, document_type_id, sold_at)
				 VALUES ($1, $2, $3, $4, $5, NOW())`,
				customer.ID, line.ProductID, line.Quantity, line.Subtotal, docTypeID)
			if err != nil {
				return fmt.Errorf("create sales history: %w", err)
			}
		}

		if err := ClearCart(ctx, tx, customer.ID); err != nil {
			return err
		}

		summary = s
		return nil
	})

	if err != nil {
		return nil, err
	}

	return summary, nil
}

// mergeItems folds repeated products into one line and orders lines by
// product id so concurrent checkouts always lock rows in the same order.
func mergeItems(items []OrderItemRequest) ([]OrderItemRequest, error) {
	if len(items) == 0 {
		return nil, database.ErrEmptyCart
	}

	byProduct := make(map[int64]int, len(items))
	for i, item := range items {
		if item.Quantity <= 0 || item.Quantity > models.MaxLineQuantity {
			return nil, fmt.Errorf("item %d: %w: %d", i, database.ErrInvalidQuantity, item.Quantity)
		}
		if byProduct[item.ProductID] > models.MaxLineQuantity-item.Quantity {
			return nil, fmt.Errorf("product %d: %w: total exceeds %d", item.ProductID, database.ErrInvalidQuantity, models.MaxLineQuantity)
		}
		byProduct[item.ProductID] += item.Quantity
	}

	merged := make([]OrderItemRequest, 0, len(byProduct))
	for id, qty := range byProduct {
		merged = append(merged, OrderItemRequest{ProductID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })

	return merged, nil
}

const orderColumns = `o.id, o.customer_id, dt.name, COALESCE(o.tax_id, ''), o.total, o.destination_email, COALESCE(o.customer_full_name, ''), o.created_at`

func scanOrder(row interface{ Scan(...any) error }, o *models.Order) error {
	return row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.DocumentType,
		&o.TaxID,
		&o.Total,
		&o.DestinationEmail,
		&o.CustomerFullName,
		&o.CreatedAt,
	)
}

func GetOrder(ctx context.Context, db DBTX, id int64) (*models.Order, error) {
	order := &models.Order{}

	err := scanOrder(db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 JOIN document_types dt ON dt.id = o.document_type_id
		 WHERE o.id = $1`, id), order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, order_id, product_id, quantity, unit_price, subtotal
		 FROM order_lines
		 WHERE order_id = $1
		 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var line models.OrderLine
		err := rows.Scan(
			&line.ID,
			&line.OrderID,
			&line.ProductID,
			&line.Quantity,
			&line.UnitPrice,
			&line.Subtotal,
		)
		if err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		order.Lines = append(order.Lines, line)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return order, nil
}

func ListOrdersCursor(ctx context.Context, db DBTX, customerID int64, cursor string, limit int) (*CursorPage, error) {
	cursorData, err := DecodeCursor(cursor)
	if err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o
		 JOIN document_types dt ON dt.id = o.document_type_id
		 WHERE o.customer_id = $1
		   AND (o.created_at, o.id) < ($2, $3)
		 ORDER BY o.created_at DESC, o.id DESC
		 LIMIT $4`,
		customerID, cursorData.CreatedAt, cursorData.ID, limit+1)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	for rows.Next() {
		var order models.Order
		if err := scanOrder(rows, &order); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	hasMore := len(orders) > limit
	if hasMore {
		orders = orders[:limit]
	}

	var nextCursor string
	if hasMore && len(orders) > 0 {
		last := orders[len(orders)-1]
		nextCursor = EncodeCursor(OrderCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	return &CursorPage{
		Items:      orders,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}
