package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const customerColumns = `id, name, email, role, status, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }, c *models.Customer) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Email,
		&c.Role,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func CreateCustomer(ctx context.Context, db DBTX, name, email string) (*models.Customer, error) {
	customer := &models.Customer{}

	query := `
		INSERT INTO customers (name, email, role, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + customerColumns

	err := scanCustomer(db.QueryRowContext(ctx, query,
		name, email, models.RoleCustomer, models.CustomerStatusActive), customer)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return customer, nil
}

func GetCustomer(ctx context.Context, db DBTX, id int64) (*models.Customer, error) {
	customer := &models.Customer{}

	err := scanCustomer(db.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, id), customer)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}

	return customer, nil
}

// GetActiveCustomer is the checkout precondition: the customer exists and is "activo".
func GetActiveCustomer(ctx context.Context, db DBTX, id int64) (*models.Customer, error) {
	customer, err := GetCustomer(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if !customer.IsActive() {
		return nil, database.ErrCustomerInactive
	}
	return customer, nil
}

func SetCustomerStatus(ctx context.Context, db DBTX, id int64, status string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE customers SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("set customer status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return database.ErrCustomerNotFound
	}

	return nil
}
