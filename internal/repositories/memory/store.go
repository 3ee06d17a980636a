// Package memory provides process-local repositories used for development and tests. State is lost
// on restart.
package memory

import (
	"context"
	"sync"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/repositories"
)

type txKey struct{}

// Store holds carts, orders, and the catalog in maps guarded by one mutex. Writes made through
// RunInTx are applied to a working copy that replaces the live state only when fn succeeds.
type Store struct {
	// txMu serialises transactions and standalone writes.
	txMu sync.Mutex

	mu      sync.RWMutex
	state   *state
	catalog map[string]domain.CatalogItem
	health  repositories.HealthRepository
}

type state struct {
	carts  map[string]domain.Cart
	orders map[string]domain.Order
}

// Option configures the store.
type Option func(*Store)

// WithCatalogItems seeds the catalog.
func WithCatalogItems(items ...domain.CatalogItem) Option {
	return func(s *Store) {
		for _, item := range items {
			s.catalog[item.ID] = item
		}
	}
}

// WithHealth replaces the default always-ok health repository.
func WithHealth(repo repositories.HealthRepository) Option {
	return func(s *Store) {
		if repo != nil {
			s.health = repo
		}
	}
}

var _ repositories.Registry = (*Store)(nil)

// NewStore returns an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state: &state{
			carts:  make(map[string]domain.Cart),
			orders: make(map[string]domain.Order),
		},
		catalog: make(map[string]domain.CatalogItem),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.health == nil {
		health, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
			Name:  "memory",
			Check: func(context.Context) error { return nil },
		}})
		s.health = health
	}
	return s
}

func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Carts() repositories.CartRepository { return cartRepository{store: s} }
func (s *Store) Orders() repositories.OrderRepository { return orderRepository{store: s} }
func (s *Store) Catalog() repositories.CatalogRepository { return catalogRepository{store: s} }
func (s *Store) Health() repositories.HealthRepository { return s.health }
func (s *Store) UnitOfWork() repositories.UnitOfWork { return s }

// PutCatalogItem adds or replaces a listed book.
func (s *Store) PutCatalogItem(item domain.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog[item.ID] = item
}

// RemoveCatalogItem unlists a book.
func (s *Store) RemoveCatalogItem(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.catalog, itemID)
}

// RunInTx runs fn against a private copy of the state and publishes the copy when fn returns nil.
// A nested call joins the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	working := s.state.clone()
	s.mu.RUnlock()

	if err := fn(context.WithValue(ctx, txKey{}, working)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = working
	s.mu.Unlock()
	return nil
}

// read runs fn against the transaction copy when ctx carries one, otherwise against live state.
func (s *Store) read(ctx context.Context, fn func(*state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if working, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(working)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// write applies fn either inside the caller's transaction or as its own single-step transaction.
func (s *Store) write(ctx context.Context, fn func(*state) error) error {
	if working, ok := ctx.Value(txKey{}).(*state); ok {
		return fn(working)
	}
	return s.RunInTx(ctx, func(txCtx context.Context) error {
		return fn(txCtx.Value(txKey{}).(*state))
	})
}

func (st *state) clone() *state {
	out := &state{
		carts:  make(map[string]domain.Cart, len(st.carts)),
		orders: make(map[string]domain.Order, len(st.orders)),
	}
	for id, cart := range st.carts {
		out.carts[id] = copyCart(cart)
	}
	for id, order := range st.orders {
		out.orders[id] = order
	}
	return out
}

func copyCart(cart domain.Cart) domain.Cart {
	cart.Items = append([]domain.CartItem(nil), cart.Items...)
	return cart
}
