package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/httpx"
	"github.com/shelfmarket/api/internal/services"
)

// AdminOrderHandlers exposes the platform administrator's delivery queue.
type AdminOrderHandlers struct {
	authn  *auth.Authenticator
	orders services.AdminOrderAuthority
}

// NewAdminOrderHandlers constructs the /admin handlers.
func NewAdminOrderHandlers(authn *auth.Authenticator, orders services.AdminOrderAuthority) *AdminOrderHandlers {
	return &AdminOrderHandlers{authn: authn, orders: orders}
}

// Routes wires the /admin endpoints onto the provided router.
func (h *AdminOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleAdmin))
	}
	r.Get("/orders/shipped", h.listByStatus(domain.OrderStatusShipped))
	r.Get("/orders/delivered", h.listByStatus(domain.OrderStatusDelivered))
	r.Post("/orders/{orderId}/deliver", h.markDelivered)
}

func (h *AdminOrderHandlers) listByStatus(status services.OrderStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if h.orders == nil {
			httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
			return
		}
		identity, ok := requireRole(ctx, w, auth.RoleAdmin)
		if !ok {
			return
		}
		pager, ok := pageFromRequest(w, r)
		if !ok {
			return
		}

		list := h.orders.ListShippedOrders
		if status == domain.OrderStatusDelivered {
			list = h.orders.ListDeliveredOrders
		}
		page, err := list(ctx, identity.UID, pager)
		if err != nil {
			writeServiceError(ctx, w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, buildOrderPage(page))
	}
}

func (h *AdminOrderHandlers) markDelivered(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleAdmin)
	if !ok {
		return
	}

	order, err := h.orders.MarkDelivered(ctx, services.MarkDeliveredCommand{
		AdminID: identity.UID,
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderId")),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}
