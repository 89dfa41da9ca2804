package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/database"
)

// ResolveDocumentType maps a document-type name to its configured row id.
func ResolveDocumentType(ctx context.Context, db DBTX, name string) (int, error) {
	var id int
	err := db.QueryRowContext(ctx,
		`SELECT id FROM document_types WHERE name = $1`, name).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %q", database.ErrUnknownDocumentType, name)
		}
		return 0, fmt.Errorf("resolve document type: %w", err)
	}
	return id, nil
}
