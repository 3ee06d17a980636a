package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/shelfmarket/api/internal/repositories"
)

// Registry wires the MongoDB repositories around one database handle.
type Registry struct {
	db      *mongo.Database
	carts   cartRepository
	orders  orderRepository
	catalog catalogRepository
	health  repositories.HealthRepository
}

// NewRegistry builds the repositories. Health may be nil, in which case only a primary ping is
// reported.
func NewRegistry(db *mongo.Database, health repositories.HealthRepository) (*Registry, error) {
	if db == nil {
		return nil, errors.New("mongo registry requires database")
	}
	r := &Registry{db: db}
	r.carts = cartRepository{collection: db.Collection(cartCollection)}
	r.orders = orderRepository{collection: db.Collection(orderCollection), unit: r}
	r.catalog = catalogRepository{collection: db.Collection(catalogCollection)}

	if health == nil {
		var err error
		health, err = repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
			Name:     "mongo",
			Critical: true,
			Check:    r.Ping,
		}})
		if err != nil {
			return nil, err
		}
	}
	r.health = health
	return r, nil
}

func (r *Registry) Carts() repositories.CartRepository { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository { return r.orders }
func (r *Registry) Catalog() repositories.CatalogRepository { return r.catalog }
func (r *Registry) Health() repositories.HealthRepository { return r.health }

// Ping checks that the primary answers.
func (r *Registry) Ping(ctx context.Context) error {
	return wrapError("mongo.ping", r.db.Client().Ping(ctx, readpref.Primary()))
}

// RunInTx runs fn in a multi-document transaction. The driver retries fn on transient transaction
// errors, so fn must tolerate re-execution. Calls made with a context that already carries a
// session join it.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if mongo.SessionFromContext(ctx) != nil {
		return fn(ctx)
	}
	session, err := r.db.Client().StartSession()
	if err != nil {
		return wrapError("mongo.transaction", err)
	}
	defer session.EndSession(context.WithoutCancel(ctx))

	var fnErr error
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		fnErr = fn(sc)
		return nil, fnErr
	})
	if fnErr != nil {
		return fnErr
	}
	return wrapError("mongo.transaction", err)
}

// Close disconnects the client.
func (r *Registry) Close(ctx context.Context) error {
	return r.db.Client().Disconnect(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
