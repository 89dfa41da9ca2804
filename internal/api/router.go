package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), RequestLogger(logger))

	r.GET("/healthz", h.Health)

	authed := r.Group("/", RequireCustomer())
	authed.GET("/cliente/ventas", h.SalesHistory)

	api := authed.Group("/api")
	api.POST("/comprar", h.Purchase)
	api.GET("/compras", h.ListOrders)
	api.GET("/compras/:id", h.GetOrder)
	api.POST("/carrito", h.AddToCart)
	api.GET("/carrito", h.GetCart)
	api.DELETE("/carrito", h.ClearCart)
	api.GET("/productos", h.ListProducts)
	api.GET("/productos/:id", h.GetProduct)

	return r
}
