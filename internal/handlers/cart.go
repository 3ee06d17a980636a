package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/httpx"
	"github.com/shelfmarket/api/internal/services"
)

// CartHandlers exposes the buyer's cart and cart checkout.
type CartHandlers struct {
	authn      *auth.Authenticator
	carts      services.CartService
	checkout   services.CheckoutService
	idempotent func(http.Handler) http.Handler
}

// NewCartHandlers constructs the /cart handlers. idempotent guards POST /cart/checkout and may be nil.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService, checkout services.CheckoutService, idempotent func(http.Handler) http.Handler) *CartHandlers {
	return &CartHandlers{
		authn:      authn,
		carts:      carts,
		checkout:   checkout,
		idempotent: idempotent,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.RoleBuyer))
	}
	r.Get("/", h.getCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{itemId}", h.setItemQuantity)
	r.Delete("/items/{itemId}", h.removeItem)

	checkout := r.With()
	if h.idempotent != nil {
		checkout = r.With(h.idempotent)
	}
	checkout.Post("/checkout", h.placeOrderFromCart)
}

type addCartItemRequest struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type setCartItemQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type cartCheckoutResponse struct {
	Orders []orderPayload `json:"orders"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	var req addCartItemRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	cart, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		BuyerID:  identity.UID,
		ItemID:   req.ItemID,
		Quantity: req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) setItemQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	var req setCartItemQuantityRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Quantity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
		return
	}

	cart, err := h.carts.SetItemQuantity(ctx, services.SetCartItemQuantityCommand{
		BuyerID:  identity.UID,
		ItemID:   strings.TrimSpace(chi.URLParam(r, "itemId")),
		Quantity: *req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		httpx.WriteError(ctx, w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		BuyerID: identity.UID,
		ItemID:  strings.TrimSpace(chi.URLParam(r, "itemId")),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCartPayload(cart))
}

func (h *CartHandlers) placeOrderFromCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		httpx.WriteError(ctx, w, httpx.NewError("checkout_service_unavailable", "checkout service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireRole(ctx, w, auth.RoleBuyer)
	if !ok {
		return
	}

	var req shippingRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	orders, err := h.checkout.PlaceOrderFromCart(ctx, services.CartCheckoutCommand{
		BuyerID:  identity.UID,
		Shipping: req.toDetails(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, cartCheckoutResponse{Orders: buildOrderList(orders)})
}
