//go:build integration

package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/bson"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/config"
	"github.com/shelfmarket/api/internal/repositories"
)

func setupRegistry(t *testing.T) *Registry {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7", mongodb.WithReplicaSet("rs0"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := Connect(ctx, config.MongoConfig{URI: uri, Database: "shelfmarket_test"})
	require.NoError(t, err)
	require.NoError(t, EnsureIndexes(ctx, db))

	_, err = db.Collection(catalogCollection).InsertMany(ctx, []any{
		bson.M{"_id": "bk_1", "title": "Dune", "author": "Herbert", "price": int64(1200), "sellerId": "s1"},
		bson.M{"_id": "bk_2", "title": "Emma", "author": "Austen", "price": int64(800), "sellerId": "s2"},
	})
	require.NoError(t, err)

	registry, err := NewRegistry(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	return registry
}

func testOrder(id, seller string, placedAt time.Time) domain.Order {
	return domain.Order{
		ID:         id,
		BuyerID:    "buyer-1",
		SellerID:   seller,
		ItemID:     "bk_1",
		ItemName:   "Dune",
		ItemAuthor: "Herbert",
		UnitPrice:  1200,
		Quantity:   2,
		TotalPrice: 2400,
		ShippingAddress: domain.Address{
			Line1:      "1 Main St",
			City:       "Springfield",
			State:      "IL",
			PostalCode: "62701",
			Country:    "US",
		},
		Status:   domain.OrderStatusPlaced,
		PlacedAt: placedAt,
	}
}

func TestRegistryIntegration(t *testing.T) {
	registry := setupRegistry(t)
	ctx := context.Background()

	t.Run("catalog lookup omits unknown ids", func(t *testing.T) {
		items, err := registry.Catalog().LookupItems(ctx, []string{"bk_1", "bk_missing", "bk_2"})
		require.NoError(t, err)
		assert.Len(t, items, 2)
		assert.Equal(t, int64(1200), items["bk_1"].Price)
		assert.Equal(t, "s2", items["bk_2"].SellerID)
	})

	t.Run("cart round trip", func(t *testing.T) {
		_, err := registry.Carts().GetCart(ctx, "buyer-1")
		assert.True(t, repositories.IsNotFound(err), "expected not found, got %v", err)

		_, err = registry.Carts().SaveCart(ctx, domain.Cart{
			BuyerID: "buyer-1",
			Items:   []domain.CartItem{{ItemID: "bk_1", Quantity: 2}},
		})
		require.NoError(t, err)

		cart, err := registry.Carts().GetCart(ctx, "buyer-1")
		require.NoError(t, err)
		require.Len(t, cart.Items, 1)
		assert.Equal(t, 2, cart.Items[0].Quantity)
	})

	placedAt := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("insert batch is all or nothing", func(t *testing.T) {
		require.NoError(t, registry.Orders().InsertBatch(ctx, []domain.Order{
			testOrder("ord_a", "s1", placedAt),
			testOrder("ord_b", "s2", placedAt),
			testOrder("ord_c", "s1", placedAt.Add(-time.Minute)),
		}))

		err := registry.Orders().InsertBatch(ctx, []domain.Order{
			testOrder("ord_d", "s1", placedAt),
			testOrder("ord_a", "s1", placedAt),
		})
		assert.True(t, repositories.IsConflict(err), "expected conflict, got %v", err)

		_, err = registry.Orders().FindByID(ctx, "ord_d")
		assert.True(t, repositories.IsNotFound(err), "expected ord_d rolled back, got %v", err)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		err := registry.RunInTx(ctx, func(txCtx context.Context) error {
			if _, err := registry.Carts().SaveCart(txCtx, domain.Cart{BuyerID: "buyer-1", Items: []domain.CartItem{}}); err != nil {
				return err
			}
			return registry.Orders().InsertBatch(txCtx, []domain.Order{testOrder("ord_a", "s1", placedAt)})
		})
		require.Error(t, err)

		cart, err := registry.Carts().GetCart(ctx, "buyer-1")
		require.NoError(t, err)
		assert.Len(t, cart.Items, 1, "cart clear should have been rolled back")
	})

	t.Run("update status compare and set", func(t *testing.T) {
		updated, err := registry.Orders().UpdateStatus(ctx, "ord_a", domain.OrderStatusPlaced, domain.OrderStatusProcessing)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusProcessing, updated.Status)
		assert.Equal(t, int64(2400), updated.TotalPrice)

		_, err = registry.Orders().UpdateStatus(ctx, "ord_a", domain.OrderStatusPlaced, domain.OrderStatusCancelled)
		assert.True(t, repositories.IsConflict(err), "expected conflict, got %v", err)

		_, err = registry.Orders().UpdateStatus(ctx, "ord_missing", domain.OrderStatusPlaced, domain.OrderStatusCancelled)
		assert.True(t, repositories.IsNotFound(err), "expected not found, got %v", err)
	})

	t.Run("list pages newest first", func(t *testing.T) {
		filter := repositories.OrderListFilter{SellerID: "s1", Pagination: domain.Pagination{PageSize: 1}}
		first, err := registry.Orders().List(ctx, filter)
		require.NoError(t, err)
		require.Len(t, first.Items, 1)
		assert.Equal(t, "ord_a", first.Items[0].ID)
		require.NotEmpty(t, first.NextPageToken)

		filter.Pagination.PageToken = first.NextPageToken
		second, err := registry.Orders().List(ctx, filter)
		require.NoError(t, err)
		require.Len(t, second.Items, 1)
		assert.Equal(t, "ord_c", second.Items[0].ID)
		assert.Empty(t, second.NextPageToken)

		processing, err := registry.Orders().List(ctx, repositories.OrderListFilter{
			Status: []domain.OrderStatus{domain.OrderStatusProcessing},
		})
		require.NoError(t, err)
		require.Len(t, processing.Items, 1)
		assert.Equal(t, "ord_a", processing.Items[0].ID)
	})

	t.Run("health pings primary", func(t *testing.T) {
		report, err := registry.Health().Collect(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.HealthStatusOK, report.Status)
	})
}
