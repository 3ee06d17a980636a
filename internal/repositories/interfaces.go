package repositories

import (
	"context"

	domain "github.com/shelfmarket/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Carts() CartRepository
	Orders() OrderRepository
	Catalog() CatalogRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories invoked with the context passed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CartRepository persists one cart document per buyer.
type CartRepository interface {
	// GetCart returns a not-found RepositoryError when the buyer has never stored a cart.
	GetCart(ctx context.Context, buyerID string) (domain.Cart, error)
	// SaveCart replaces the stored item list for the buyer.
	SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
}

// OrderRepository persists immutable order documents. Status is the only field that may be updated.
type OrderRepository interface {
	// InsertBatch writes every order or none of them.
	InsertBatch(ctx context.Context, orders []domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// UpdateStatus sets the status only when the stored status still equals from. A mismatch is a
	// conflict RepositoryError.
	UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// CatalogRepository resolves listed books. Identifiers that no longer exist are omitted from the
// result rather than reported as errors.
type CatalogRepository interface {
	LookupItems(ctx context.Context, itemIDs []string) (map[string]domain.CatalogItem, error)
}

// OrderListFilter narrows order listings. Empty fields are ignored.
type OrderListFilter struct {
	BuyerID    string
	SellerID   string
	Status     []domain.OrderStatus
	Pagination domain.Pagination
}

// HealthRepository reports the readiness of backing dependencies.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
