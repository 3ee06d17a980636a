package memory

import (
	"context"
	"slices"
	"strings"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/pagination"
	"github.com/shelfmarket/api/internal/repositories"
)

type cartRepository struct {
	store *Store
}

func (r cartRepository) GetCart(ctx context.Context, buyerID string) (domain.Cart, error) {
	var cart domain.Cart
	err := r.store.read(ctx, func(st *state) error {
		stored, ok := st.carts[buyerID]
		if !ok {
			return repositories.NotFound("memory.cart.get", "cart not found")
		}
		cart = copyCart(stored)
		return nil
	})
	return cart, err
}

func (r cartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if strings.TrimSpace(cart.BuyerID) == "" {
		return domain.Cart{}, repositories.NewStoreError("memory.cart.save", repositories.StoreErrorUnknown, "buyer id is required", nil)
	}
	saved := copyCart(cart)
	err := r.store.write(ctx, func(st *state) error {
		st.carts[cart.BuyerID] = saved
		return nil
	})
	if err != nil {
		return domain.Cart{}, err
	}
	return copyCart(saved), nil
}

type orderRepository struct {
	store *Store
}

func (r orderRepository) InsertBatch(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	return r.store.write(ctx, func(st *state) error {
		seen := make(map[string]struct{}, len(orders))
		for _, order := range orders {
			if _, dup := st.orders[order.ID]; dup {
				return repositories.Conflict("memory.order.insert", "order "+order.ID+" already exists")
			}
			if _, dup := seen[order.ID]; dup {
				return repositories.Conflict("memory.order.insert", "duplicate order id "+order.ID)
			}
			seen[order.ID] = struct{}{}
		}
		for _, order := range orders {
			st.orders[order.ID] = order
		}
		return nil
	})
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var order domain.Order
	err := r.store.read(ctx, func(st *state) error {
		stored, ok := st.orders[orderID]
		if !ok {
			return repositories.NotFound("memory.order.find", "order not found")
		}
		order = stored
		return nil
	})
	return order, err
}

func (r orderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (domain.Order, error) {
	var updated domain.Order
	err := r.store.write(ctx, func(st *state) error {
		stored, ok := st.orders[orderID]
		if !ok {
			return repositories.NotFound("memory.order.update_status", "order not found")
		}
		if stored.Status != from {
			return repositories.Conflict("memory.order.update_status", "status is "+string(stored.Status))
		}
		stored.Status = to
		st.orders[orderID] = stored
		updated = stored
		return nil
	})
	return updated, err
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pagination.NormalizePageSize(filter.Pagination.PageSize)

	var matched []domain.Order
	err = r.store.read(ctx, func(st *state) error {
		for _, order := range st.orders {
			if matches(order, filter) && cursor.Before(order.PlacedAt, order.ID) {
				matched = append(matched, order)
			}
		}
		return nil
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	slices.SortFunc(matched, newestFirst)

	page := domain.CursorPage[domain.Order]{Items: []domain.Order{}}
	if len(matched) > size {
		last := matched[size-1]
		token, err := pagination.EncodeToken(pagination.Cursor{PlacedAt: last.PlacedAt, ID: last.ID})
		if err != nil {
			return domain.CursorPage[domain.Order]{}, err
		}
		page.NextPageToken = token
		matched = matched[:size]
	}
	page.Items = append(page.Items, matched...)
	return page, nil
}

func matches(order domain.Order, filter repositories.OrderListFilter) bool {
	if filter.BuyerID != "" && order.BuyerID != filter.BuyerID {
		return false
	}
	if filter.SellerID != "" && order.SellerID != filter.SellerID {
		return false
	}
	if len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status) {
		return false
	}
	return true
}

func newestFirst(a, b domain.Order) int {
	if c := b.PlacedAt.Compare(a.PlacedAt); c != 0 {
		return c
	}
	return strings.Compare(b.ID, a.ID)
}

type catalogRepository struct {
	store *Store
}

func (r catalogRepository) LookupItems(ctx context.Context, itemIDs []string) (map[string]domain.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, repositories.Unavailable("memory.catalog.lookup", err)
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := make(map[string]domain.CatalogItem, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := r.store.catalog[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}
