package services

import (
	"context"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/repositories"
)

type adminOrderAuthority struct {
	access *orderAccess
}

// NewAdminOrderAuthority constructs the platform administrator facade.
func NewAdminOrderAuthority(deps OrderServiceDeps) (AdminOrderAuthority, error) {
	access, err := newOrderAccess(deps)
	if err != nil {
		return nil, err
	}
	return &adminOrderAuthority{access: access}, nil
}

func (s *adminOrderAuthority) ListShippedOrders(ctx context.Context, adminID string, pager Pagination) (domain.CursorPage[Order], error) {
	return s.listByStatus(ctx, adminID, domain.OrderStatusShipped, pager)
}

func (s *adminOrderAuthority) ListDeliveredOrders(ctx context.Context, adminID string, pager Pagination) (domain.CursorPage[Order], error) {
	return s.listByStatus(ctx, adminID, domain.OrderStatusDelivered, pager)
}

// MarkDelivered confirms delivery. Only an order that is currently shipped may be delivered.
func (s *adminOrderAuthority) MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Order, error) {
	admin, err := requireID(cmd.AdminID, "admin id")
	if err != nil {
		return Order{}, err
	}
	order, err := s.access.find(ctx, cmd.OrderID, nil)
	if err != nil {
		return Order{}, err
	}
	return s.access.transition(ctx, order, domain.OrderStatusDelivered, actorAdmin, admin, adminTransitions)
}

func (s *adminOrderAuthority) listByStatus(ctx context.Context, adminID string, status OrderStatus, pager Pagination) (domain.CursorPage[Order], error) {
	if _, err := requireID(adminID, "admin id"); err != nil {
		return domain.CursorPage[Order]{}, err
	}
	return s.access.list(ctx, repositories.OrderListFilter{
		Status:     []OrderStatus{status},
		Pagination: pager,
	})
}
