package store

import (
	"context"
	"fmt"

	"github.com/safar/storefront/internal/models"
)

func ListSalesHistory(ctx context.Context, db DBTX, customerID int64, page, pageSize int) (*OffsetPage, error) {
	var total int64
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sales_history WHERE customer_id = $1`, customerID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("count sales history: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT sh.id, sh.customer_id, sh.product_id, sh.quantity, sh.sale_total, dt.name, sh.sold_at
		 FROM sales_history sh
		 JOIN document_types dt ON dt.id = sh.document_type_id
		 WHERE sh.customer_id = $1
		 ORDER BY sh.sold_at DESC, sh.id DESC
		 LIMIT $2 OFFSET $3`,
		customerID, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("list sales history: %w", err)
	}
	defer rows.Close()

	records := []models.SalesHistoryRecord{}
	for rows.Next() {
		var r models.SalesHistoryRecord
		err := rows.Scan(
			&r.ID,
			&r.CustomerID,
			&r.ProductID,
			&r.Quantity,
			&r.SaleTotal,
			&r.DocumentType,
			&r.SoldAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan sales history: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return NewOffsetPage(records, total, page, pageSize), nil
}
