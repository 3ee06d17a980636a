package firestore

import (
	"context"
	"errors"

	pfirestore "github.com/shelfmarket/api/internal/platform/firestore"
	"github.com/shelfmarket/api/internal/repositories"
)

// Registry wires the Firestore repositories around a shared provider.
type Registry struct {
	*pfirestore.UnitOfWork

	provider *pfirestore.Provider
	carts    *CartRepository
	orders   *OrderRepository
	catalog  *CatalogRepository
	health   repositories.HealthRepository
}

// NewRegistry builds every repository on the provider. Health may be nil, in which case only the
// Firestore ping is reported. txOpts apply to every transaction the registry starts.
func NewRegistry(provider *pfirestore.Provider, health repositories.HealthRepository, txOpts ...pfirestore.TxOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry requires provider")
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider, txOpts...)
	if err != nil {
		return nil, err
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		return nil, err
	}
	if health == nil {
		health, err = repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
			Name:     "firestore",
			Critical: true,
			Check:    provider.Ping,
		}})
		if err != nil {
			return nil, err
		}
	}
	return &Registry{
		UnitOfWork: pfirestore.NewUnitOfWork(provider, txOpts...),
		provider:   provider,
		carts:      carts,
		orders:     orders,
		catalog:    catalog,
		health:     health,
	}, nil
}

func (r *Registry) Carts() repositories.CartRepository { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Close releases the Firestore client.
func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
