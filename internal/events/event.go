package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/safar/storefront/internal/models"
)

var ErrInvalidPayload = errors.New("invalid payload")

// PurchaseEvent is the queue payload for one committed order. Money fields
// travel as JSON numbers.
type PurchaseEvent struct {
	OrderID          int64               `json:"compra_id"`
	DocumentType     string              `json:"tipo_comprobante"`
	DestinationEmail string              `json:"email_destino"`
	TaxID            string              `json:"ruc,omitempty"`
	CustomerName     string              `json:"nombre_apellidos,omitempty"`
	Lines            []PurchaseEventLine `json:"productos"`
	Total            float64             `json:"total"`
}

type PurchaseEventLine struct {
	ProductID int64   `json:"producto_id"`
	Quantity  int     `json:"cantidad"`
	Brand     string  `json:"marca"`
	Name      string  `json:"nombre"`
	UnitPrice float64 `json:"precio_unitario"`
	Subtotal  float64 `json:"subtotal"`
}

func NewPurchaseEvent(s *models.OrderSummary) *PurchaseEvent {
	ev := &PurchaseEvent{
		OrderID:          s.OrderID,
		DocumentType:     s.DocumentType,
		DestinationEmail: s.DestinationEmail,
		Lines:            make([]PurchaseEventLine, 0, len(s.Lines)),
		Total:            s.Total.InexactFloat64(),
	}

	switch s.DocumentType {
	case models.DocumentTypeFactura:
		ev.TaxID = s.TaxID
	case models.DocumentTypeBoleta:
		ev.CustomerName = s.CustomerName
	}

	for _, l := range s.Lines {
		ev.Lines = append(ev.Lines, PurchaseEventLine{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Brand:     l.Brand,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.InexactFloat64(),
			Subtotal:  l.Subtotal.InexactFloat64(),
		})
	}

	return ev
}

type wireEvent struct {
	OrderID          *int64               `json:"compra_id"`
	DocumentType     *string              `json:"tipo_comprobante"`
	DestinationEmail string               `json:"email_destino"`
	TaxID            string               `json:"ruc"`
	CustomerName     string               `json:"nombre_apellidos"`
	Lines            *[]PurchaseEventLine `json:"productos"`
	Total            float64              `json:"total"`
}

// Decode parses a queue payload. compra_id, tipo_comprobante and productos
// are required; anything else missing is left zero.
func Decode(body []byte) (*PurchaseEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	switch {
	case w.OrderID == nil:
		return nil, fmt.Errorf("%w: missing compra_id", ErrInvalidPayload)
	case w.DocumentType == nil || *w.DocumentType == "":
		return nil, fmt.Errorf("%w: missing tipo_comprobante", ErrInvalidPayload)
	case w.Lines == nil:
		return nil, fmt.Errorf("%w: missing productos", ErrInvalidPayload)
	}

	return &PurchaseEvent{
		OrderID:          *w.OrderID,
		DocumentType:     *w.DocumentType,
		DestinationEmail: w.DestinationEmail,
		TaxID:            w.TaxID,
		CustomerName:     w.CustomerName,
		Lines:            *w.Lines,
		Total:            w.Total,
	}, nil
}
