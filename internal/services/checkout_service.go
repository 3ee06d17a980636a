package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shelfmarket/api/internal/repositories"
)

const (
	checkoutKindDirect = "direct"
	checkoutKindCart   = "cart"
)

var (
	errCheckoutCartsRequired   = errors.New("checkout service: cart service is required")
	errCheckoutCatalogRequired = errors.New("checkout service: catalog lookup is required")
	errCheckoutOrdersRequired  = errors.New("checkout service: order repository is required")
)

// cartStore is the subset of the cart service the orchestrator needs.
type cartStore interface {
	GetCart(ctx context.Context, buyerID string) (Cart, error)
	Clear(ctx context.Context, buyerID string) error
}

// CheckoutServiceDeps bundles collaborators required to construct the checkout service.
type CheckoutServiceDeps struct {
	Carts       cartStore
	Catalog     CatalogLookup
	Orders      repositories.OrderRepository
	UnitOfWork  repositories.UnitOfWork
	Locker      CheckoutLocker
	Events      OrderEventPublisher
	Metrics     OrderMetrics
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type checkoutService struct {
	carts   cartStore
	catalog CatalogLookup
	orders  repositories.OrderRepository
	unit    repositories.UnitOfWork
	locker  CheckoutLocker
	factory *OrderFactory
	events  eventSink
	metrics OrderMetrics
	logger  func(context.Context, string, map[string]any)
}

// NewCheckoutService wires the orchestrator. Without a locker, checkouts for the same buyer are
// serialised in-process only.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errCheckoutCartsRequired
	}
	if deps.Catalog == nil {
		return nil, errCheckoutCatalogRequired
	}
	if deps.Orders == nil {
		return nil, errCheckoutOrdersRequired
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewLocalCheckoutLocker()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &checkoutService{
		carts:   deps.Carts,
		catalog: deps.Catalog,
		orders:  deps.Orders,
		unit:    unit,
		locker:  locker,
		factory: NewOrderFactory(deps.Clock, deps.IDGenerator),
		events:  eventSink{publisher: deps.Events, logger: logger},
		metrics: metrics,
		logger:  logger,
	}, nil
}

// PlaceOrder purchases a single item directly. The cart is not read or modified.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	order, err := s.placeOrder(ctx, cmd)
	if err != nil {
		s.fail(ctx, checkoutKindDirect, cmd.BuyerID, err)
		return Order{}, err
	}
	s.metrics.CheckoutSucceeded(checkoutKindDirect, 1)
	s.events.publish(ctx, placedEvent(order))
	return order, nil
}

func (s *checkoutService) placeOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	buyerID, err := requireID(cmd.BuyerID, "buyer id")
	if err != nil {
		return Order{}, err
	}
	itemID, err := requireID(cmd.ItemID, "item id")
	if err != nil {
		return Order{}, err
	}
	if err := validateQuantity(cmd.Quantity); err != nil {
		return Order{}, err
	}
	shipping, err := normalizeShipping(cmd.Shipping)
	if err != nil {
		return Order{}, err
	}

	resolved, err := s.catalog.LookupItems(ctx, []string{itemID})
	if err != nil {
		return Order{}, translateRepoError(err, ErrItemNotFound, nil)
	}
	snapshot, ok := resolved[itemID]
	if !ok {
		return Order{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	orders, err := s.factory.BuildOrders(buyerID, []OrderLine{{ItemID: itemID, Quantity: cmd.Quantity, Snapshot: snapshot}}, shipping)
	if err != nil {
		return Order{}, err
	}
	if err := s.orders.InsertBatch(ctx, orders); err != nil {
		return Order{}, translateRepoError(err, nil, nil)
	}
	return orders[0], nil
}

// PlaceOrderFromCart converts every cart line into an order. The orders are written as one batch
// and the cart is cleared only after that write succeeds; both happen inside one unit of work so a
// failure at any step leaves the cart and the order store untouched.
func (s *checkoutService) PlaceOrderFromCart(ctx context.Context, cmd CartCheckoutCommand) ([]Order, error) {
	orders, err := s.placeOrderFromCart(ctx, cmd)
	if err != nil {
		s.fail(ctx, checkoutKindCart, cmd.BuyerID, err)
		return nil, err
	}
	s.metrics.CheckoutSucceeded(checkoutKindCart, len(orders))
	for _, order := range orders {
		s.events.publish(ctx, placedEvent(order))
	}
	return orders, nil
}

func (s *checkoutService) placeOrderFromCart(ctx context.Context, cmd CartCheckoutCommand) ([]Order, error) {
	buyerID, err := requireID(cmd.BuyerID, "buyer id")
	if err != nil {
		return nil, err
	}
	shipping, err := normalizeShipping(cmd.Shipping)
	if err != nil {
		return nil, err
	}

	release, err := s.locker.Acquire(ctx, buyerID)
	if err != nil {
		if errors.Is(err, ErrCheckoutInProgress) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: acquire checkout lock: %v", ErrUnavailable, err)
	}
	defer release()

	var placed []Order
	err = s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		placed = nil

		cart, err := s.carts.GetCart(txCtx, buyerID)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return ErrEmptyCart
		}

		itemIDs := cart.ItemIDs()
		resolved, err := s.catalog.LookupItems(txCtx, itemIDs)
		if err != nil {
			return translateRepoError(err, ErrItemsUnavailable, nil)
		}
		if missing := missingItems(itemIDs, resolved); len(missing) > 0 {
			return &UnavailableItemsError{ItemIDs: missing}
		}

		lines := make([]OrderLine, 0, len(cart.Items))
		for _, item := range cart.Items {
			lines = append(lines, OrderLine{
				ItemID:   item.ItemID,
				Quantity: item.Quantity,
				Snapshot: resolved[item.ItemID],
			})
		}

		orders, err := s.factory.BuildOrders(buyerID, lines, shipping)
		if err != nil {
			return err
		}
		if err := s.orders.InsertBatch(txCtx, orders); err != nil {
			return translateRepoError(err, nil, ErrCartConflict)
		}
		if err := s.carts.Clear(txCtx, buyerID); err != nil {
			return err
		}
		placed = orders
		return nil
	})
	if err != nil {
		return nil, translateRepoError(err, nil, ErrCartConflict)
	}
	return placed, nil
}

func (s *checkoutService) fail(ctx context.Context, kind, buyerID string, err error) {
	reason := failureReason(err)
	s.metrics.CheckoutFailed(kind, reason)
	if reason == "unavailable" || reason == "conflict" {
		s.logger(ctx, "checkout.failed", map[string]any{
			"kind":    kind,
			"buyerId": strings.TrimSpace(buyerID),
			"error":   err.Error(),
		})
	}
}

// missingItems lists the requested identifiers the catalog did not resolve, preserving request order.
func missingItems(requested []string, resolved map[string]CatalogItem) []string {
	var missing []string
	for _, id := range requested {
		if _, ok := resolved[id]; !ok && !slices.Contains(missing, id) {
			missing = append(missing, id)
		}
	}
	return missing
}
