package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/safar/storefront/internal/api/mocks"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/logger"
	"github.com/safar/storefront/internal/models"
	"github.com/safar/storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/mock/gomock"
)

type testServer struct {
	router   *gin.Engine
	checkout *mocks.MockCheckoutService
	store    *mocks.MockStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	svc := mocks.NewMockCheckoutService(ctrl)
	st := mocks.NewMockStore(ctrl)

	return &testServer{
		router:   NewRouter(NewHandler(svc, st, logger.Discard()), logger.Discard()),
		checkout: svc,
		store:    st,
	}
}

func (s *testServer) do(method, path, body, customer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if customer != "" {
		req.Header.Set(HeaderCustomerID, customer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v (%s)", err, w.Body.String())
	}
	return body
}

func boletaEvent() *events.PurchaseEvent {
	return &events.PurchaseEvent{
		OrderID:          42,
		DocumentType:     models.DocumentTypeBoleta,
		DestinationEmail: "ana@example.com",
		CustomerName:     "Ana Pérez",
		Lines: []events.PurchaseEventLine{
			{ProductID: 7, Quantity: 2, Brand: "Acme", Name: "Taza", UnitPrice: 10, Subtotal: 20},
		},
		Total: 20,
	}
}

func TestPurchase(t *testing.T) {
	t.Run("confirmed", func(t *testing.T) {
		s := newTestServer(t)

		want := checkout.Request{
			CustomerID:   5,
			DocumentType: models.DocumentTypeBoleta,
			CustomerName: "Ana Pérez",
			Cart:         []models.CartItem{{ProductID: 7, Quantity: 1}, {ProductID: 7, Quantity: 1}},
		}
		s.checkout.EXPECT().Checkout(gomock.Any(), want).Return(&checkout.Result{Event: boletaEvent()}, nil)

		w := s.do(http.MethodPost, "/api/comprar",
			`{"tipo_comprobante":"boleta","nombre_completo":"Ana Pérez","carrito":[{"product_id":7,"cantidad":1},{"product_id":7,"cantidad":1}]}`, "5")

		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d (%s)", w.Code, w.Body.String())
		}
		body := decodeBody(t, w)
		if body["msg"] != msgPurchaseConfirmed {
			t.Errorf("Expected confirmation message, got %v", body["msg"])
		}
		if body["compra_id"] != float64(42) {
			t.Errorf("Expected compra_id 42, got %v", body["compra_id"])
		}
		if body["total"] != float64(20) {
			t.Errorf("Expected total 20, got %v", body["total"])
		}
		if _, ok := body["error"]; ok {
			t.Errorf("Expected no error field, got %v", body["error"])
		}
		if w.Header().Get(HeaderRequestID) == "" {
			t.Error("Expected a request id header")
		}
	})

	t.Run("server side cart", func(t *testing.T) {
		s := newTestServer(t)

		s.checkout.EXPECT().Checkout(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req checkout.Request) (*checkout.Result, error) {
				if req.Cart != nil {
					t.Errorf("Expected nil cart, got %v", req.Cart)
				}
				return &checkout.Result{Event: boletaEvent()}, nil
			})

		w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"boleta","carrito":null}`, "5")
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", w.Code)
		}
	})

	t.Run("empty carrito is left to checkout", func(t *testing.T) {
		s := newTestServer(t)

		s.checkout.EXPECT().Checkout(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, req checkout.Request) (*checkout.Result, error) {
				if req.Cart == nil || len(req.Cart) != 0 {
					t.Errorf("Expected empty non-nil cart, got %#v", req.Cart)
				}
				return nil, database.ErrCustomerInactive
			})

		w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"boleta","carrito":[]}`, "5")
		if w.Code != http.StatusForbidden {
			t.Fatalf("Expected 403, got %d", w.Code)
		}
	})

	t.Run("publish failure", func(t *testing.T) {
		s := newTestServer(t)

		warning := fmt.Errorf("%w: %w", checkout.ErrPublishFailed, errors.New("connection refused"))
		s.checkout.EXPECT().Checkout(gomock.Any(), gomock.Any()).
			Return(&checkout.Result{Event: boletaEvent(), PublishWarning: warning}, nil)

		w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"boleta","carrito":{"product_id":7,"cantidad":2}}`, "5")

		if w.Code != http.StatusAccepted {
			t.Fatalf("Expected 202, got %d", w.Code)
		}
		body := decodeBody(t, w)
		if body["msg"] != msgPurchaseNotQueued {
			t.Errorf("Expected queue failure message, got %v", body["msg"])
		}
		if body["compra_id"] != float64(42) {
			t.Errorf("Expected compra_id 42, got %v", body["compra_id"])
		}
		if body["error"] != warning.Error() {
			t.Errorf("Expected error %q, got %v", warning.Error(), body["error"])
		}
	})

	t.Run("malformed cart never reaches checkout", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"boleta","carrito":"7x2"}`, "5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/comprar", `{`, "5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"boleta"}`, "")
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("Expected 401, got %d", w.Code)
		}
	})
}

func TestPurchaseErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"bad tax id", fmt.Errorf("%w: must be 11 digits", checkout.ErrInvalidTaxID), http.StatusBadRequest},
		{"bad document type", checkout.ErrInvalidDocumentType, http.StatusBadRequest},
		{"empty cart", fmt.Errorf("%w: %w", checkout.ErrMalformedCart, database.ErrEmptyCart), http.StatusBadRequest},
		{"unknown product", database.ErrProductNotFound, http.StatusBadRequest},
		{"insufficient stock", fmt.Errorf("product 7: %w", database.ErrInsufficientStock), http.StatusBadRequest},
		{"inactive customer", database.ErrCustomerInactive, http.StatusForbidden},
		{"missing customer", database.ErrCustomerNotFound, http.StatusNotFound},
		{"persistence failure", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t)
			s.checkout.EXPECT().Checkout(gomock.Any(), gomock.Any()).Return(nil, tc.err)

			w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"factura","ruc":"123"}`, "5")
			if w.Code != tc.status {
				t.Fatalf("Expected %d, got %d", tc.status, w.Code)
			}
			if msg, _ := decodeBody(t, w)["msg"].(string); msg == "" {
				t.Error("Expected a msg field")
			}
		})
	}
}

func TestPersistenceErrorsStayGeneric(t *testing.T) {
	s := newTestServer(t)
	s.checkout.EXPECT().Checkout(gomock.Any(), gomock.Any()).Return(nil, errors.New("pq: password authentication failed"))

	w := s.do(http.MethodPost, "/api/comprar", `{"tipo_comprobante":"boleta"}`, "5")
	if bytes.Contains(w.Body.Bytes(), []byte("pq:")) {
		t.Errorf("Expected driver error to be hidden, got %s", w.Body.String())
	}
}

func TestListOrders(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().ListOrders(gomock.Any(), int64(5), "", defaultOrdersPageLimit).
			Return(&store.CursorPage{Items: []models.Order{}}, nil)

		w := s.do(http.MethodGet, "/api/compras?limit=0", "", "5")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
	})

	t.Run("invalid cursor", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().ListOrders(gomock.Any(), int64(5), "%%%", 3).
			Return(nil, fmt.Errorf("decode cursor: %w", store.ErrInvalidCursor))

		w := s.do(http.MethodGet, "/api/compras?cursor=%25%25%25&limit=3", "", "5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
		if body := decodeBody(t, w); body["msg"] != "Cursor inválido" {
			t.Errorf("Expected cursor message, got %v", body["msg"])
		}
	})

	t.Run("store failure", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().ListOrders(gomock.Any(), int64(5), "", defaultOrdersPageLimit).
			Return(nil, errors.New("pq: connection reset"))

		w := s.do(http.MethodGet, "/api/compras", "", "5")
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("Expected 500, got %d", w.Code)
		}
		if body := decodeBody(t, w); body["msg"] == "Cursor inválido" {
			t.Errorf("Expected generic message, got %v", body["msg"])
		}
	})
}

func TestGetOrder(t *testing.T) {
	order := &models.Order{
		ID:           9,
		CustomerID:   5,
		DocumentType: models.DocumentTypeFactura,
		TaxID:        "20123456789",
		Total:        decimal.NewFromInt(30),
	}

	t.Run("owner", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().GetOrder(gomock.Any(), int64(9)).Return(order, nil)

		w := s.do(http.MethodGet, "/api/compras/9", "", "5")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		if body := decodeBody(t, w); body["ruc"] != "20123456789" {
			t.Errorf("Expected ruc in body, got %v", body["ruc"])
		}
	})

	t.Run("other customer", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().GetOrder(gomock.Any(), int64(9)).Return(order, nil)

		w := s.do(http.MethodGet, "/api/compras/9", "", "6")
		if w.Code != http.StatusForbidden {
			t.Fatalf("Expected 403, got %d", w.Code)
		}
	})

	t.Run("missing", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().GetOrder(gomock.Any(), int64(10)).Return(nil, database.ErrOrderNotFound)

		w := s.do(http.MethodGet, "/api/compras/10", "", "5")
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
	})

	t.Run("bad id", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodGet, "/api/compras/abc", "", "5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})
}

func TestCartEndpoints(t *testing.T) {
	t.Run("add merges lines", func(t *testing.T) {
		s := newTestServer(t)
		gomock.InOrder(
			s.store.EXPECT().AddCartItem(gomock.Any(), int64(5), int64(3), 4).Return(nil),
			s.store.EXPECT().AddCartItem(gomock.Any(), int64(5), int64(1), 1).Return(nil),
			s.store.EXPECT().GetCart(gomock.Any(), int64(5)).Return([]models.CartItem{
				{ProductID: 1, Quantity: 1},
				{ProductID: 3, Quantity: 4},
			}, nil),
		)

		w := s.do(http.MethodPost, "/api/carrito",
			`[{"product_id":3,"cantidad":1},{"product_id":1,"cantidad":1},{"product_id":3,"cantidad":3}]`, "5")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d (%s)", w.Code, w.Body.String())
		}
	})

	t.Run("add unknown product", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().AddCartItem(gomock.Any(), int64(5), int64(99), 1).Return(database.ErrProductNotFound)

		w := s.do(http.MethodPost, "/api/carrito", `{"product_id":99,"cantidad":1}`, "5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("add rejects zero quantity", func(t *testing.T) {
		s := newTestServer(t)

		w := s.do(http.MethodPost, "/api/carrito", `{"product_id":1,"cantidad":0}`, "5")
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("clear", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().ClearCart(gomock.Any(), int64(5)).Return(nil)

		w := s.do(http.MethodDelete, "/api/carrito", "", "5")
		if w.Code != http.StatusNoContent {
			t.Fatalf("Expected 204, got %d", w.Code)
		}
	})
}

func TestProductEndpoints(t *testing.T) {
	t.Run("pagination defaults", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().ListProducts(gomock.Any(), 1, defaultPageSize).Return(nil, nil)

		w := s.do(http.MethodGet, "/api/productos?page=0&page_size=500", "", "5")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
	})

	t.Run("missing product", func(t *testing.T) {
		s := newTestServer(t)
		s.store.EXPECT().GetProduct(gomock.Any(), int64(77)).Return(nil, database.ErrProductNotFound)

		w := s.do(http.MethodGet, "/api/productos/77", "", "5")
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
	})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	s.store.EXPECT().Ping(gomock.Any()).Return(errors.New("down"))

	w := s.do(http.MethodGet, "/healthz", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("Expected 503, got %d", w.Code)
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t)
	s.store.EXPECT().Ping(gomock.Any()).Return(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if got := w.Header().Get(HeaderRequestID); got != "req-123" {
		t.Errorf("Expected req-123, got %q", got)
	}
}
