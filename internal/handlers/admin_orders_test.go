package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/services"
)

func newAdminRouter(orders services.AdminOrderAuthority) chi.Router {
	router := chi.NewRouter()
	router.Route("/admin", NewAdminOrderHandlers(nil, orders).Routes)
	return router
}

func TestAdminOrderHandlersListQueues(t *testing.T) {
	var shippedCalls, deliveredCalls int
	orders := &stubAdminAuthority{
		shippedFn: func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error) {
			shippedCalls++
			return domain.CursorPage[services.Order]{Items: []services.Order{{ID: "ord_s", Status: domain.OrderStatusShipped}}}, nil
		},
		deliveredFn: func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error) {
			deliveredCalls++
			return domain.CursorPage[services.Order]{Items: []services.Order{{ID: "ord_d", Status: domain.OrderStatusDelivered}}}, nil
		},
	}
	router := newAdminRouter(orders)

	for path, want := range map[string]string{"/admin/orders/shipped": "ord_s", "/admin/orders/delivered": "ord_d"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, path, "", "admin-1", auth.RoleAdmin))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		var body orderListPayload
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(body.Items) != 1 || body.Items[0].ID != want {
			t.Fatalf("%s: unexpected items %#v", path, body.Items)
		}
	}
	if shippedCalls != 1 || deliveredCalls != 1 {
		t.Fatalf("expected one call per queue, got shipped=%d delivered=%d", shippedCalls, deliveredCalls)
	}
}

func TestAdminOrderHandlersMarkDelivered(t *testing.T) {
	orders := &stubAdminAuthority{
		deliverFn: func(_ context.Context, cmd services.MarkDeliveredCommand) (services.Order, error) {
			switch cmd.OrderID {
			case "ord_shipped":
				return services.Order{ID: cmd.OrderID, Status: domain.OrderStatusDelivered}, nil
			case "ord_placed":
				return services.Order{}, fmt.Errorf("%w: placed -> delivered", services.ErrInvalidTransition)
			default:
				return services.Order{}, services.ErrOrderNotFound
			}
		},
	}
	router := newAdminRouter(orders)

	cases := map[string]int{
		"ord_shipped": http.StatusOK,
		"ord_placed":  http.StatusConflict,
		"ord_missing": http.StatusNotFound,
	}
	for id, want := range cases {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/orders/"+id+"/deliver", "", "admin-1", auth.RoleAdmin))
		if rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", id, want, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/orders/ord_shipped/deliver", "", "seller-1", auth.RoleSeller))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for seller, got %d", rr.Code)
	}
}
