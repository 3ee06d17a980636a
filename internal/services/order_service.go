package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/pagination"
	"github.com/shelfmarket/api/internal/repositories"
)

const (
	actorSeller = "seller"
	actorAdmin  = "admin"
)

var errOrderRepositoryRequired = errors.New("order service: order repository is required")

// OrderServiceDeps bundles collaborators shared by the buyer, seller, and admin order facades.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	UnitOfWork repositories.UnitOfWork
	Events     OrderEventPublisher
	Metrics    OrderMetrics
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

// orderAccess holds the machinery every facade uses: scoped reads, listings, and guarded
// compare-and-set status updates.
type orderAccess struct {
	orders  repositories.OrderRepository
	unit    repositories.UnitOfWork
	events  eventSink
	metrics OrderMetrics
	now     func() time.Time
	logger  func(context.Context, string, map[string]any)
}

func newOrderAccess(deps OrderServiceDeps) (*orderAccess, error) {
	if deps.Orders == nil {
		return nil, errOrderRepositoryRequired
	}
	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &orderAccess{
		orders:  deps.Orders,
		unit:    unit,
		events:  eventSink{publisher: deps.Events, logger: logger},
		metrics: metrics,
		now:     func() time.Time { return clock().UTC() },
		logger:  logger,
	}, nil
}

// find loads an order and applies the caller's scope. Orders outside the scope are reported as
// not found so callers learn nothing about other actors' orders.
func (a *orderAccess) find(ctx context.Context, orderID string, inScope func(Order) bool) (Order, error) {
	id, err := requireID(orderID, "order id")
	if err != nil {
		return Order{}, err
	}
	order, err := a.orders.FindByID(ctx, id)
	if err != nil {
		return Order{}, translateRepoError(err, ErrOrderNotFound, nil)
	}
	if inScope != nil && !inScope(order) {
		return Order{}, ErrOrderNotFound
	}
	return order, nil
}

func (a *orderAccess) list(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := a.orders.List(ctx, filter)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return domain.CursorPage[Order]{}, translateRepoError(err, nil, nil)
	}
	if page.Items == nil {
		page.Items = []Order{}
	}
	return page, nil
}

// transition writes the status change if policy allows it. The store update is conditioned on the
// status that was read, so a concurrent change surfaces as ErrOrderConflict and nothing is written.
func (a *orderAccess) transition(ctx context.Context, order Order, target OrderStatus, actor, actorID string, policy transitionPolicy) (Order, error) {
	from := order.Status
	if !policy.allows(from, target) {
		return Order{}, fmt.Errorf("%w: %s cannot move order from %s to %s (%s)", ErrInvalidTransition, actor, from, target, policy.describeTargets(from))
	}

	var updated Order
	err := a.unit.RunInTx(ctx, func(txCtx context.Context) error {
		out, err := a.orders.UpdateStatus(txCtx, order.ID, from, target)
		if err != nil {
			return translateRepoError(err, ErrOrderNotFound, ErrOrderConflict)
		}
		updated = out
		return nil
	})
	if err != nil {
		err = translateRepoError(err, ErrOrderNotFound, ErrOrderConflict)
		a.logger(ctx, "order.transition.failed", map[string]any{
			"order": order.ID,
			"actor": actor,
			"from":  string(from),
			"to":    string(target),
			"error": err.Error(),
		})
		return Order{}, err
	}

	a.metrics.StatusChanged(actor, from, target)
	a.events.publish(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		BuyerID:        updated.BuyerID,
		SellerID:       updated.SellerID,
		PreviousStatus: from,
		CurrentStatus:  updated.Status,
		ActorID:        actorID,
		OccurredAt:     a.now(),
	})
	return updated, nil
}

type buyerOrderService struct {
	access *orderAccess
}

// NewBuyerOrderService constructs the buyer's read-only view over their own orders.
func NewBuyerOrderService(deps OrderServiceDeps) (BuyerOrderService, error) {
	access, err := newOrderAccess(deps)
	if err != nil {
		return nil, err
	}
	return &buyerOrderService{access: access}, nil
}

func (s *buyerOrderService) ListMyOrders(ctx context.Context, buyerID string, pager Pagination) (domain.CursorPage[Order], error) {
	buyer, err := requireID(buyerID, "buyer id")
	if err != nil {
		return domain.CursorPage[Order]{}, err
	}
	return s.access.list(ctx, repositories.OrderListFilter{BuyerID: buyer, Pagination: pager})
}

func (s *buyerOrderService) GetMyOrder(ctx context.Context, buyerID, orderID string) (Order, error) {
	buyer, err := requireID(buyerID, "buyer id")
	if err != nil {
		return Order{}, err
	}
	return s.access.find(ctx, orderID, func(o Order) bool { return sameActor(o.BuyerID, buyer) })
}

func sameActor(a, b string) bool {
	return strings.TrimSpace(a) == strings.TrimSpace(b)
}
