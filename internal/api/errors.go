package api

import (
	"errors"
	"net/http"

	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/store"
)

type apiError struct {
	status int
	msg    string
}

var errorTable = []struct {
	target error
	apiError
}{
	{checkout.ErrInvalidDocumentType, apiError{http.StatusBadRequest, "Tipo de comprobante inválido"}},
	{checkout.ErrInvalidTaxID, apiError{http.StatusBadRequest, "RUC inválido (11 dígitos numéricos)"}},
	{checkout.ErrMalformedCart, apiError{http.StatusBadRequest, "El carrito está vacío o tiene formato inválido"}},
	{database.ErrInvalidQuantity, apiError{http.StatusBadRequest, "El carrito está vacío o tiene formato inválido"}},
	{store.ErrInvalidCursor, apiError{http.StatusBadRequest, "Cursor inválido"}},
	{database.ErrUnknownDocumentType, apiError{http.StatusBadRequest, "Tipo de comprobante no existe"}},
	{database.ErrProductNotFound, apiError{http.StatusBadRequest, "Producto no existe"}},
	{database.ErrInsufficientStock, apiError{http.StatusBadRequest, "Stock insuficiente"}},
	{database.ErrCustomerInactive, apiError{http.StatusForbidden, "Usuario inactivo"}},
	{database.ErrCustomerNotFound, apiError{http.StatusNotFound, "Usuario no encontrado"}},
	{database.ErrOrderNotFound, apiError{http.StatusNotFound, "Compra no encontrada"}},
}

// mapError turns a domain error into a status and message. Anything
// unrecognized is a generic 500 so internals never reach the client.
func mapError(err error) apiError {
	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.apiError
		}
	}
	return apiError{http.StatusInternalServerError, "Error procesando la solicitud"}
}
