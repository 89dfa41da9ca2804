package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Customer struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Email     string    `json:"email"`
	Role      string    `json:"rol"`
	Status    string    `json:"estado"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Customer) IsActive() bool {
	return c.Status == CustomerStatusActive
}

type Product struct {
	ID          int64           `json:"id"`
	OwnerID     int64           `json:"cliente_id"`
	Name        string          `json:"nombre"`
	Brand       string          `json:"marca,omitempty"`
	Description string          `json:"descripcion,omitempty"`
	ImageURL    string          `json:"imagen_url,omitempty"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	Version     int             `json:"version"`
}

// Order is immutable once created; Total is the sum of its line subtotals.
type Order struct {
	ID               int64           `json:"id"`
	CustomerID       int64           `json:"cliente_id"`
	DocumentType     string          `json:"tipo_comprobante"`
	TaxID            string          `json:"ruc,omitempty"`
	Total            decimal.Decimal `json:"total"`
	DestinationEmail string          `json:"email_destino"`
	CustomerFullName string          `json:"nombre_apellidos,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	Lines            []OrderLine     `json:"productos,omitempty"`
}

type OrderLine struct {
	ID        int64           `json:"id"`
	OrderID   int64           `json:"compra_id"`
	ProductID int64           `json:"producto_id"`
	Quantity  int             `json:"cantidad"`
	UnitPrice decimal.Decimal `json:"precio_unitario"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type SalesHistoryRecord struct {
	ID           int64           `json:"id"`
	CustomerID   int64           `json:"cliente_id"`
	ProductID    int64           `json:"producto_id"`
	Quantity     int             `json:"cantidad"`
	SaleTotal    decimal.Decimal `json:"total_venta"`
	DocumentType string          `json:"tipo_comprobante"`
	SoldAt       time.Time       `json:"fecha"`
}

// MaxLineQuantity bounds one cart or order line, merged duplicates included.
// quantity and stock are INTEGER columns.
const MaxLineQuantity = math.MaxInt32

type CartItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"cantidad"`
}

const (
	CustomerStatusActive   = "activo"
	CustomerStatusInactive = "inactivo"
)

const (
	RoleCustomer = "cliente"
	RoleAdmin    = "administrador"
)

const (
	DocumentTypeBoleta  = "boleta"
	DocumentTypeFactura = "factura"
)

// DocumentTypes lists the closed set of sale-document kinds.
var DocumentTypes = []string{DocumentTypeBoleta, DocumentTypeFactura}

func IsDocumentType(name string) bool {
	for _, dt := range DocumentTypes {
		if dt == name {
			return true
		}
	}
	return false
}

// OrderSummary is what a committed checkout hands to the event publisher.
type OrderSummary struct {
	OrderID          int64
	CustomerID       int64
	DocumentType     string
	TaxID            string
	CustomerName     string
	DestinationEmail string
	Total            decimal.Decimal
	Lines            []OrderSummaryLine
}

type OrderSummaryLine struct {
	ProductID int64
	Quantity  int
	Brand     string
	Name      string
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}
