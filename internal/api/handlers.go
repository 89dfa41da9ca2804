package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
)

const (
	msgPurchaseConfirmed   = "Compra confirmada correctamente"
	msgPurchaseNotQueued   = "Compra guardada, pero falló envío a cola RabbitMQ"
	msgInvalidBody         = "Cuerpo de la solicitud inválido"
	defaultPageSize        = 20
	maxPageSize            = 100
	defaultOrdersPageLimit = 10
)

type Handler struct {
	checkout CheckoutService
	store    Store
	logger   *slog.Logger
}

func NewHandler(svc CheckoutService, st Store, logger *slog.Logger) *Handler {
	return &Handler{
		checkout: svc,
		store:    st,
		logger:   logger.With("component", "api"),
	}
}

type purchaseRequest struct {
	DocumentType     string          `json:"tipo_comprobante"`
	TaxID            string          `json:"ruc"`
	FullName         string          `json:"nombre_completo"`
	DestinationEmail string          `json:"email_destino"`
	Cart             json.RawMessage `json:"carrito"`
}

type purchaseResponse struct {
	Msg string `json:"msg"`
	*events.PurchaseEvent
	Error string `json:"error,omitempty"`
}

// Purchase checks out the carrito in the body, or the caller's server-side
// cart when carrito is absent.
func (h *Handler) Purchase(c *gin.Context) {
	var payload purchaseRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgInvalidBody})
		return
	}

	req := checkout.Request{
		CustomerID:       customerID(c),
		DocumentType:     payload.DocumentType,
		TaxID:            payload.TaxID,
		CustomerName:     payload.FullName,
		DestinationEmail: payload.DestinationEmail,
	}

	if raw := bytes.TrimSpace(payload.Cart); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		cart, err := checkout.DecodeCart(raw)
		if err != nil {
			h.respondError(c, err)
			return
		}
		req.Cart = cart
	}

	result, err := h.checkout.Checkout(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if result.PublishWarning != nil {
		c.JSON(http.StatusAccepted, purchaseResponse{
			Msg:           msgPurchaseNotQueued,
			PurchaseEvent: result.Event,
			Error:         result.PublishWarning.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, purchaseResponse{
		Msg:           msgPurchaseConfirmed,
		PurchaseEvent: result.Event,
	})
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "ID de compra inválido"})
		return
	}

	order, err := h.store.GetOrder(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	if order.CustomerID != customerID(c) {
		c.JSON(http.StatusForbidden, gin.H{"msg": "La compra pertenece a otro usuario"})
		return
	}

	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultOrdersPageLimit)))
	if err != nil || limit < 1 || limit > maxPageSize {
		limit = defaultOrdersPageLimit
	}

	page, err := h.store.ListOrders(c.Request.Context(), customerID(c), c.Query("cursor"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// AddToCart accepts one {"product_id", "cantidad"} line or an array of them.
func (h *Handler) AddToCart(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": msgInvalidBody})
		return
	}

	items, err := checkout.ParseCart(raw)
	if err != nil {
		h.respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	for _, item := range items {
		if err := h.store.AddCartItem(ctx, customerID(c), item.ProductID, item.Quantity); err != nil {
			h.respondError(c, err)
			return
		}
	}

	cart, err := h.store.GetCart(ctx, customerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"carrito": cart})
}

func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.store.GetCart(c.Request.Context(), customerID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"carrito": cart})
}

func (h *Handler) ClearCart(c *gin.Context) {
	if err := h.store.ClearCart(c.Request.Context(), customerID(c)); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ListProducts(c *gin.Context) {
	page, pageSize := pagination(c)

	result, err := h.store.ListProducts(c.Request.Context(), page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "ID de producto inválido"})
		return
	}

	product, err := h.store.GetProduct(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"msg": "Producto no encontrado"})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) SalesHistory(c *gin.Context) {
	page, pageSize := pagination(c)

	result, err := h.store.ListSalesHistory(c.Request.Context(), customerID(c), page, pageSize)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	apiErr := mapError(err)
	if apiErr.status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			"path", c.FullPath(),
			"request_id", c.GetString(ctxKeyRequestID),
			"error", err,
		)
	}
	c.JSON(apiErr.status, gin.H{"msg": apiErr.msg})
}

func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.Query("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ = strconv.Atoi(c.Query("page_size"))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}
