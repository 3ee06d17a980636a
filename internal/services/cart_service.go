package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shelfmarket/api/internal/repositories"
)

var (
	errCartRepositoryRequired = errors.New("cart service: repository is required")
	errCartClockRequired      = errors.New("cart service: clock is required")
)

// CartServiceDeps wires the repository and transactional boundary for cart operations.
type CartServiceDeps struct {
	Repository repositories.CartRepository
	UnitOfWork repositories.UnitOfWork
	Clock      func() time.Time
	Logger     func(context.Context, string, map[string]any)
}

type cartService struct {
	repo   repositories.CartRepository
	unit   repositories.UnitOfWork
	now    func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Repository == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Clock == nil {
		return nil, errCartClockRequired
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &cartService{
		repo:   deps.Repository,
		unit:   unit,
		now:    func() time.Time { return deps.Clock().UTC() },
		logger: logger,
	}, nil
}

// GetCart returns the buyer's cart. A buyer who never added anything gets an empty cart.
func (s *cartService) GetCart(ctx context.Context, buyerID string) (Cart, error) {
	buyer, err := requireID(buyerID, "buyer id")
	if err != nil {
		return Cart{}, err
	}
	return s.load(ctx, buyer)
}

// AddItem merges the quantity into an existing line or appends a new line.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error) {
	buyer, err := requireID(cmd.BuyerID, "buyer id")
	if err != nil {
		return Cart{}, err
	}
	itemID, err := requireID(cmd.ItemID, "item id")
	if err != nil {
		return Cart{}, err
	}
	if err := validateQuantity(cmd.Quantity); err != nil {
		return Cart{}, err
	}

	return s.mutate(ctx, buyer, func(cart *Cart) error {
		if idx := cart.Find(itemID); idx >= 0 {
			merged, err := mergeQuantity(cart.Items[idx].Quantity, cmd.Quantity)
			if err != nil {
				return err
			}
			cart.Items[idx].Quantity = merged
			return nil
		}
		cart.Items = append(cart.Items, CartItem{ItemID: itemID, Quantity: cmd.Quantity})
		return nil
	})
}

// SetItemQuantity overwrites a line's quantity. Zero removes the line; setting a quantity for an
// item not yet in the cart appends it.
func (s *cartService) SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (Cart, error) {
	buyer, err := requireID(cmd.BuyerID, "buyer id")
	if err != nil {
		return Cart{}, err
	}
	itemID, err := requireID(cmd.ItemID, "item id")
	if err != nil {
		return Cart{}, err
	}
	if cmd.Quantity < 0 {
		return Cart{}, fmt.Errorf("%w: quantity must not be negative", ErrInvalidQuantity)
	}
	if cmd.Quantity > 0 {
		if err := validateQuantity(cmd.Quantity); err != nil {
			return Cart{}, err
		}
	}

	return s.mutate(ctx, buyer, func(cart *Cart) error {
		idx := cart.Find(itemID)
		switch {
		case cmd.Quantity == 0:
			if idx >= 0 {
				cart.Items = removeCartItem(cart.Items, idx)
			}
		case idx >= 0:
			cart.Items[idx].Quantity = cmd.Quantity
		default:
			cart.Items = append(cart.Items, CartItem{ItemID: itemID, Quantity: cmd.Quantity})
		}
		return nil
	})
}

// RemoveItem drops the line for the item. Removing an absent item is a no-op.
func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error) {
	buyer, err := requireID(cmd.BuyerID, "buyer id")
	if err != nil {
		return Cart{}, err
	}
	itemID, err := requireID(cmd.ItemID, "item id")
	if err != nil {
		return Cart{}, err
	}

	return s.mutate(ctx, buyer, func(cart *Cart) error {
		if idx := cart.Find(itemID); idx >= 0 {
			cart.Items = removeCartItem(cart.Items, idx)
		}
		return nil
	})
}

// Clear empties the cart while keeping the cart document. It writes without reading first so it
// can run after other writes in the same transaction.
func (s *cartService) Clear(ctx context.Context, buyerID string) error {
	buyer, err := requireID(buyerID, "buyer id")
	if err != nil {
		return err
	}
	err = s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := s.repo.SaveCart(txCtx, Cart{BuyerID: buyer, Items: []CartItem{}, UpdatedAt: s.now()})
		return err
	})
	return s.failed(ctx, buyer, err)
}

func (s *cartService) load(ctx context.Context, buyerID string) (Cart, error) {
	cart, err := s.repo.GetCart(ctx, buyerID)
	if err != nil {
		if isRepoNotFound(err) {
			return Cart{BuyerID: buyerID, Items: []CartItem{}}, nil
		}
		return Cart{}, translateRepoError(err, nil, ErrCartConflict)
	}
	return normaliseCart(cart, buyerID), nil
}

func (s *cartService) mutate(ctx context.Context, buyerID string, apply func(cart *Cart) error) (Cart, error) {
	var saved Cart
	err := s.unit.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.load(txCtx, buyerID)
		if err != nil {
			return err
		}
		if err := apply(&cart); err != nil {
			return err
		}
		cart.UpdatedAt = s.now()
		out, err := s.repo.SaveCart(txCtx, cart)
		if err != nil {
			return translateRepoError(err, nil, ErrCartConflict)
		}
		saved = normaliseCart(out, buyerID)
		return nil
	})
	if err != nil {
		return Cart{}, s.failed(ctx, buyerID, err)
	}
	return saved, nil
}

func (s *cartService) failed(ctx context.Context, buyerID string, err error) error {
	if err == nil {
		return nil
	}
	err = translateRepoError(err, nil, ErrCartConflict)
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrCartConflict) {
		s.logger(ctx, "cart.update.failed", map[string]any{
			"buyerId": buyerID,
			"error":   err.Error(),
		})
	}
	return err
}

// normaliseCart restores the invariants a stored cart must satisfy: one line per item, positive
// quantities, and a non-nil item slice.
func normaliseCart(cart Cart, buyerID string) Cart {
	cart.BuyerID = buyerID
	items := make([]CartItem, 0, len(cart.Items))
	index := make(map[string]int, len(cart.Items))
	for _, item := range cart.Items {
		if item.ItemID == "" || item.Quantity < 1 {
			continue
		}
		if pos, ok := index[item.ItemID]; ok {
			items[pos].Quantity += item.Quantity
			continue
		}
		index[item.ItemID] = len(items)
		items = append(items, item)
	}
	cart.Items = items
	return cart
}

func removeCartItem(items []CartItem, idx int) []CartItem {
	out := make([]CartItem, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}
