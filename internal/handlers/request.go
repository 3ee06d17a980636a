package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/platform/httpx"
	"github.com/shelfmarket/api/internal/platform/pagination"
	"github.com/shelfmarket/api/internal/services"
)

const maxRequestBodySize = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded JSON object into dst and writes the 4xx response itself when the
// body is unusable.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		if errors.Is(err, errBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}

	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest))
		return false
	}
	if decoder.More() {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must contain a single JSON object", http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// requireRole resolves the authenticated caller and checks the role the route needs. The
// authenticator already enforces roles when mounted; this keeps handlers safe when it is not.
func requireRole(ctx context.Context, w http.ResponseWriter, role string) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	if !identity.HasRole(role) {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", fmt.Sprintf("%s role required", role), http.StatusForbidden))
		return nil, false
	}
	return identity, true
}

func pageFromRequest(w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.Pagination{}, false
	}
	return services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken}, true
}

type addressRequest struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
}

type shippingRequest struct {
	ShippingAddress *addressRequest `json:"shippingAddress"`
	ContactPhone    *string         `json:"contactPhone,omitempty"`
	Notes           *string         `json:"notes,omitempty"`
}

func (s shippingRequest) toDetails() services.ShippingDetails {
	details := services.ShippingDetails{
		ContactPhone: s.ContactPhone,
		Notes:        s.Notes,
	}
	if addr := s.ShippingAddress; addr != nil {
		details.Address = services.Address{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		}
	}
	return details
}

// writeServiceError renders the service sentinels. Unknown errors are reported as 500 without
// leaking their text.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	var apiErr httpx.Error
	switch {
	case errors.Is(err, services.ErrInvalidQuantity):
		apiErr = httpx.NewError("invalid_quantity", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidAddress):
		apiErr = httpx.NewError("invalid_address", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrInvalidInput):
		apiErr = httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrItemNotFound):
		apiErr = httpx.NewError("item_not_found", err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrOrderNotFound):
		apiErr = httpx.NewError("order_not_found", "order not found", http.StatusNotFound)
	case errors.Is(err, services.ErrEmptyCart):
		apiErr = httpx.NewError("empty_cart", "cart is empty", http.StatusConflict)
	case errors.Is(err, services.ErrItemsUnavailable):
		apiErr = httpx.NewError("items_unavailable", err.Error(), http.StatusUnprocessableEntity)
		var unavailable *services.UnavailableItemsError
		if errors.As(err, &unavailable) {
			apiErr = apiErr.WithDetails(map[string]any{"itemIds": unavailable.ItemIDs})
		}
	case errors.Is(err, services.ErrInvalidTransition):
		apiErr = httpx.NewError("invalid_transition", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrCheckoutInProgress):
		apiErr = httpx.NewError("checkout_in_progress", "another checkout for this cart is in progress", http.StatusConflict)
	case errors.Is(err, services.ErrOrderConflict):
		apiErr = httpx.NewError("order_conflict", "order changed concurrently; reload and retry", http.StatusConflict)
	case errors.Is(err, services.ErrCartConflict):
		apiErr = httpx.NewError("cart_conflict", "cart changed concurrently; retry", http.StatusConflict)
	case errors.Is(err, services.ErrUnavailable):
		apiErr = httpx.NewError("unavailable", "service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		apiErr = httpx.NewError("internal", "internal server error", http.StatusInternalServerError)
	}
	httpx.WriteError(ctx, w, apiErr)
}
