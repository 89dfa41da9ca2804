package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
	"github.com/shopspring/decimal"
)

type NewProduct struct {
	OwnerID     int64
	Name        string
	Brand       string
	Description string
	ImageURL    string
	Price       decimal.Decimal
	Stock       int
}

const productColumns = `id, COALESCE(owner_id, 0), name, brand, description, image_url, price, stock, created_at, updated_at, version`

func scanProduct(row interface{ Scan(...any) error }, p *models.Product) error {
	return row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Brand,
		&p.Description,
		&p.ImageURL,
		&p.Price,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
		&p.Version,
	)
}

func CreateProduct(ctx context.Context, db DBTX, np NewProduct) (*models.Product, error) {
	if np.Price.IsNegative() || np.Stock < 0 {
		return nil, fmt.Errorf("create product: price and stock must be non-negative")
	}

	var owner any
	if np.OwnerID != 0 {
		owner = np.OwnerID
	}

	product := &models.Product{}
	query := `
		INSERT INTO products (owner_id, name, brand, description, image_url, price, stock, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW(), 1)
		RETURNING ` + productColumns

	err := scanProduct(db.QueryRowContext(ctx, query,
		owner, np.Name, np.Brand, np.Description, np.ImageURL, np.Price, np.Stock), product)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func GetProduct(ctx context.Context, db DBTX, id int64) (*models.Product, error) {
	product := &models.Product{}

	err := scanProduct(db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id), product)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

// ReserveStock row-locks the product and checks that quantity units are
// available. The lock is held until tx ends; callers decrement with
// DecrementStock inside the same transaction. A session lock_timeout that
// expires while waiting surfaces as database.ErrLockTimeout.
func ReserveStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) (*models.Product, error) {
	product := &models.Product{}
	err := scanProduct(tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, productID), product)
	if err != nil {
		if database.IsLockNotAvailable(err) {
			return nil, database.ErrLockTimeout
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrProductNotFound
		}
		return nil, fmt.Errorf("lock product %d: %w", productID, err)
	}

	if product.Stock < quantity {
		return nil, database.ErrInsufficientStock
	}

	return product, nil
}

// DecrementStock removes quantity units only if that many are available.
func DecrementStock(ctx context.Context, tx *sql.Tx, productID int64, quantity int) error {
	result, err := tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1,
		     updated_at = NOW()
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, productID)
	if err != nil {
		if database.IsCheckViolation(err) {
			return database.ErrInsufficientStock
		}
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return database.ErrInsufficientStock
	}

	return nil
}

func ListProducts(ctx context.Context, db DBTX, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count products: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		pageSize, offset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		var product models.Product
		if err := scanProduct(rows, &product); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(products, total, page, pageSize), nil
}
