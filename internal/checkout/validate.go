package checkout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/safar/storefront/internal/models"
)

var (
	ErrInvalidDocumentType = errors.New("invalid document type")
	ErrInvalidTaxID        = errors.New("invalid tax id")
	ErrMalformedCart       = errors.New("malformed cart")
)

const taxIDLength = 11

func ValidateDocumentType(docType string) error {
	if !models.IsDocumentType(docType) {
		return fmt.Errorf("%w: %q", ErrInvalidDocumentType, docType)
	}
	return nil
}

// ValidateTaxID accepts exactly 11 ASCII digits.
func ValidateTaxID(taxID string) error {
	if len(taxID) != taxIDLength {
		return fmt.Errorf("%w: must be %d digits", ErrInvalidTaxID, taxIDLength)
	}
	for i := 0; i < len(taxID); i++ {
		if taxID[i] < '0' || taxID[i] > '9' {
			return fmt.Errorf("%w: must be %d digits", ErrInvalidTaxID, taxIDLength)
		}
	}
	return nil
}

type cartLine struct {
	ProductID *int64 `json:"product_id"`
	Quantity  *int   `json:"cantidad"`
}

// ParseCart decodes either a JSON array of {"product_id", "cantidad"} lines or
// a single such object. Repeated products are merged in first-seen order.
func ParseCart(raw []byte) ([]models.CartItem, error) {
	items, err := DecodeCart(raw)
	if err != nil {
		return nil, err
	}
	return ValidateCart(items)
}

// DecodeCart checks only the shape of raw: an array or a single object whose
// lines carry both product_id and cantidad. An empty array decodes to an
// empty non-nil slice. Quantities are left for ValidateCart or the order store.
func DecodeCart(raw []byte) ([]models.CartItem, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedCart)
	}

	var lines []cartLine
	var err error
	switch raw[0] {
	case '[':
		err = decodeStrict(raw, &lines)
	case '{':
		var line cartLine
		err = decodeStrict(raw, &line)
		lines = []cartLine{line}
	default:
		err = errors.New("expected an object or an array")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCart, err)
	}

	items := make([]models.CartItem, 0, len(lines))
	for i, line := range lines {
		if line.ProductID == nil || line.Quantity == nil {
			return nil, fmt.Errorf("%w: line %d needs product_id and cantidad", ErrMalformedCart, i)
		}
		items = append(items, models.CartItem{ProductID: *line.ProductID, Quantity: *line.Quantity})
	}
	return items, nil
}

// ValidateCart applies the same rules as ParseCart to already-decoded lines.
func ValidateCart(items []models.CartItem) ([]models.CartItem, error) {
	lines := make([]cartLine, len(items))
	for i := range items {
		lines[i] = cartLine{ProductID: &items[i].ProductID, Quantity: &items[i].Quantity}
	}
	return normalizeCart(lines)
}

func normalizeCart(lines []cartLine) ([]models.CartItem, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: cart is empty", ErrMalformedCart)
	}

	items := make([]models.CartItem, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for i, line := range lines {
		if line.ProductID == nil || line.Quantity == nil {
			return nil, fmt.Errorf("%w: line %d needs product_id and cantidad", ErrMalformedCart, i)
		}
		if *line.ProductID <= 0 {
			return nil, fmt.Errorf("%w: line %d has invalid product_id %d", ErrMalformedCart, i, *line.ProductID)
		}
		if *line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: line %d has non-positive cantidad %d", ErrMalformedCart, i, *line.Quantity)
		}
		if *line.Quantity > models.MaxLineQuantity {
			return nil, fmt.Errorf("%w: line %d cantidad %d exceeds %d", ErrMalformedCart, i, *line.Quantity, models.MaxLineQuantity)
		}

		if j, ok := index[*line.ProductID]; ok {
			if items[j].Quantity > models.MaxLineQuantity-*line.Quantity {
				return nil, fmt.Errorf("%w: product %d total cantidad exceeds %d", ErrMalformedCart, *line.ProductID, models.MaxLineQuantity)
			}
			items[j].Quantity += *line.Quantity
			continue
		}
		index[*line.ProductID] = len(items)
		items = append(items, models.CartItem{ProductID: *line.ProductID, Quantity: *line.Quantity})
	}

	return items, nil
}

func decodeStrict(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("trailing data after cart")
	}
	return nil
}
