package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/httpx"
	"github.com/shelfmarket/api/internal/services"
)

// SellerOrderHandlers lets sellers read and progress orders for their own books.
type SellerOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.SellerOrderAuthority
}

// NewSellerOrderHandlers constructs the /seller handlers.
func NewSellerOrderHandlers(authn *auth.Authenticator, orders services.SellerOrderAuthority) *SellerOrderHandlers {
	return &SellerOrderHandlers{authn: authn, orders: orders}
}

// Routes wires the /seller endpoints onto the provided router.
func (h *SellerOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleSeller))
	}
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{orderId}", h.getOrder)
	r.Put("/orders/{orderId}/status", h.updateStatus)
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (h *SellerOrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleSeller)
	if !ok {
		return
	}
	pager, ok := pageFromRequest(w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListOrders(ctx, identity.UID, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPage(page))
}

func (h *SellerOrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleSeller)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, identity.UID, strings.TrimSpace(chi.URLParam(r, "orderId")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *SellerOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleSeller)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	status := services.OrderStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status must be one of placed, processing, shipped, delivered, cancelled", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.SellerStatusCommand{
		SellerID:     identity.UID,
		OrderID:      strings.TrimSpace(chi.URLParam(r, "orderId")),
		TargetStatus: status,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
