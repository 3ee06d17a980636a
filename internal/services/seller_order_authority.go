package services

import (
	"context"
	"fmt"
	"strings"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/repositories"
)

type sellerOrderAuthority struct {
	access *orderAccess
}

// NewSellerOrderAuthority constructs the seller facade. Every operation is scoped to orders whose
// sellerId equals the caller.
func NewSellerOrderAuthority(deps OrderServiceDeps) (SellerOrderAuthority, error) {
	access, err := newOrderAccess(deps)
	if err != nil {
		return nil, err
	}
	return &sellerOrderAuthority{access: access}, nil
}

func (s *sellerOrderAuthority) ListOrders(ctx context.Context, sellerID string, pager Pagination) (domain.CursorPage[Order], error) {
	seller, err := requireID(sellerID, "seller id")
	if err != nil {
		return domain.CursorPage[Order]{}, err
	}
	return s.access.list(ctx, repositories.OrderListFilter{SellerID: seller, Pagination: pager})
}

func (s *sellerOrderAuthority) GetOrder(ctx context.Context, sellerID, orderID string) (Order, error) {
	seller, err := requireID(sellerID, "seller id")
	if err != nil {
		return Order{}, err
	}
	return s.access.find(ctx, orderID, func(o Order) bool { return sameActor(o.SellerID, seller) })
}

// TransitionStatus moves one of the seller's orders along the fulfilment path: placed to
// processing or shipped, processing to shipped, and any non-terminal status to cancelled.
func (s *sellerOrderAuthority) TransitionStatus(ctx context.Context, cmd SellerStatusCommand) (Order, error) {
	seller, err := requireID(cmd.SellerID, "seller id")
	if err != nil {
		return Order{}, err
	}
	target := OrderStatus(strings.ToLower(strings.TrimSpace(string(cmd.TargetStatus))))
	if !target.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, cmd.TargetStatus)
	}

	order, err := s.access.find(ctx, cmd.OrderID, func(o Order) bool { return sameActor(o.SellerID, seller) })
	if err != nil {
		return Order{}, err
	}
	return s.access.transition(ctx, order, target, actorSeller, seller, sellerTransitions)
}
