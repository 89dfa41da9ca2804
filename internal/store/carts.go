package store

import (
	"context"
	"fmt"

	"github.com/safar/storefront/internal/models"
)

// AddCartItem adds quantity units of a product to the customer's server-side
// cart, summing with any quantity already there.
func AddCartItem(ctx context.Context, db DBTX, customerID, productID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("add cart item: quantity must be positive, got %d", quantity)
	}

	if _, err := GetProduct(ctx, db, productID); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO cart_items (customer_id, product_id, quantity, added_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (customer_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		customerID, productID, quantity)
	if err != nil {
		return fmt.Errorf("add cart item: %w", err)
	}

	return nil
}

func GetCart(ctx context.Context, db DBTX, customerID int64) ([]models.CartItem, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT product_id, quantity
		 FROM cart_items
		 WHERE customer_id = $1
		 ORDER BY product_id`,
		customerID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	defer rows.Close()

	items := []models.CartItem{}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

func ClearCart(ctx context.Context, db DBTX, customerID int64) error {
	if _, err := db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE customer_id = $1`, customerID); err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}
