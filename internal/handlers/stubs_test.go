package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/auth"
	"github.com/shelfmarket/api/internal/services"
)

var errNotImplemented = errors.New("not implemented")

type stubCartService struct {
	getFn    func(context.Context, string) (services.Cart, error)
	addFn    func(context.Context, services.AddCartItemCommand) (services.Cart, error)
	setFn    func(context.Context, services.SetCartItemQuantityCommand) (services.Cart, error)
	removeFn func(context.Context, services.RemoveCartItemCommand) (services.Cart, error)
}

func (s *stubCartService) GetCart(ctx context.Context, buyerID string) (services.Cart, error) {
	if s.getFn != nil {
		return s.getFn(ctx, buyerID)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.Cart, error) {
	if s.addFn != nil {
		return s.addFn(ctx, cmd)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) SetItemQuantity(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.Cart, error) {
	if s.setFn != nil {
		return s.setFn(ctx, cmd)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.Cart, error) {
	if s.removeFn != nil {
		return s.removeFn(ctx, cmd)
	}
	return services.Cart{}, errNotImplemented
}

func (s *stubCartService) Clear(context.Context, string) error {
	return nil
}

type stubCheckoutService struct {
	placeFn    func(context.Context, services.PlaceOrderCommand) (services.Order, error)
	fromCartFn func(context.Context, services.CartCheckoutCommand) ([]services.Order, error)
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	if s.placeFn != nil {
		return s.placeFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubCheckoutService) PlaceOrderFromCart(ctx context.Context, cmd services.CartCheckoutCommand) ([]services.Order, error) {
	if s.fromCartFn != nil {
		return s.fromCartFn(ctx, cmd)
	}
	return nil, errNotImplemented
}

type stubBuyerOrderService struct {
	listFn func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
	getFn  func(context.Context, string, string) (services.Order, error)
}

func (s *stubBuyerOrderService) ListMyOrders(ctx context.Context, buyerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, buyerID, pager)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubBuyerOrderService) GetMyOrder(ctx context.Context, buyerID, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, buyerID, orderID)
	}
	return services.Order{}, errNotImplemented
}

type stubSellerAuthority struct {
	listFn       func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
	getFn        func(context.Context, string, string) (services.Order, error)
	transitionFn func(context.Context, services.SellerStatusCommand) (services.Order, error)
}

func (s *stubSellerAuthority) ListOrders(ctx context.Context, sellerID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, sellerID, pager)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubSellerAuthority) GetOrder(ctx context.Context, sellerID, orderID string) (services.Order, error) {
	if s.getFn != nil {
		return s.getFn(ctx, sellerID, orderID)
	}
	return services.Order{}, errNotImplemented
}

func (s *stubSellerAuthority) TransitionStatus(ctx context.Context, cmd services.SellerStatusCommand) (services.Order, error) {
	if s.transitionFn != nil {
		return s.transitionFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

type stubAdminAuthority struct {
	shippedFn   func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
	deliveredFn func(context.Context, string, services.Pagination) (domain.CursorPage[services.Order], error)
	deliverFn   func(context.Context, services.MarkDeliveredCommand) (services.Order, error)
}

func (s *stubAdminAuthority) ListShippedOrders(ctx context.Context, adminID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.shippedFn != nil {
		return s.shippedFn(ctx, adminID, pager)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubAdminAuthority) ListDeliveredOrders(ctx context.Context, adminID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	if s.deliveredFn != nil {
		return s.deliveredFn(ctx, adminID, pager)
	}
	return domain.CursorPage[services.Order]{}, nil
}

func (s *stubAdminAuthority) MarkDelivered(ctx context.Context, cmd services.MarkDeliveredCommand) (services.Order, error) {
	if s.deliverFn != nil {
		return s.deliverFn(ctx, cmd)
	}
	return services.Order{}, errNotImplemented
}

func newAuthedRequest(method, target, body, uid string, roles ...string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if uid == "" {
		return req
	}
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: roles}))
}
