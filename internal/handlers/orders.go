package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/httpx"
	"github.com/shelfmarket/api/internal/services"
)

// OrderHandlers serves the buyer's direct purchases and order history.
type OrderHandlers struct {
	authn      *auth.Authenticator
	checkout   services.CheckoutService
	orders     services.BuyerOrderService
	idempotent func(http.Handler) http.Handler
}

// NewOrderHandlers constructs the /orders handlers. idempotent guards POST /orders and may be nil.
func NewOrderHandlers(authn *auth.Authenticator, checkout services.CheckoutService, orders services.BuyerOrderService, idempotent func(http.Handler) http.Handler) *OrderHandlers {
	return &OrderHandlers{
		authn:      authn,
		checkout:   checkout,
		orders:     orders,
		idempotent: idempotent,
	}
}

// Routes wires the /orders endpoints onto the provided router.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleBuyer))
	}
	create := r.With()
	if h.idempotent != nil {
		create = r.With(h.idempotent)
	}
	create.Post("/", h.placeOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderId}", h.getOrder)
}

type placeOrderRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
	shippingRequest
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	var req placeOrderRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		BuyerID:  identity.UID,
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
		Shipping: req.toDetails(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}
	pager, ok := pageFromRequest(w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListMyOrders(ctx, identity.UID, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPage(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	order, err := h.orders.GetMyOrder(ctx, identity.UID, strings.TrimSpace(chi.URLParam(r, "orderId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
