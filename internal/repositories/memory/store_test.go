package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/repositories"
)

func TestRunInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	carts := store.Carts()
	orders := store.Orders()

	if _, err := carts.SaveCart(ctx, domain.Cart{BuyerID: "buyer-1", Items: []domain.CartItem{{ItemID: "book-1", Quantity: 2}}}); err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	boom := errors.New("boom")
	err := store.RunInTx(ctx, func(txCtx context.Context) error {
		if err := orders.InsertBatch(txCtx, []domain.Order{{ID: "ord_1", BuyerID: "buyer-1", Status: domain.OrderStatusPlaced}}); err != nil {
			return err
		}
		if _, err := carts.SaveCart(txCtx, domain.Cart{BuyerID: "buyer-1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	cart, err := carts.GetCart(ctx, "buyer-1")
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("expected cart untouched, got %+v", cart.Items)
	}
	if _, err := orders.FindByID(ctx, "ord_1"); !repositories.IsNotFound(err) {
		t.Fatalf("expected order to be rolled back, got %v", err)
	}
}

func TestRunInTxNestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.RunInTx(ctx, func(outer context.Context) error {
		return store.RunInTx(outer, func(inner context.Context) error {
			_, err := store.Carts().SaveCart(inner, domain.Cart{BuyerID: "buyer-1", Items: []domain.CartItem{{ItemID: "b", Quantity: 1}}})
			return err
		})
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := store.Carts().GetCart(ctx, "buyer-1"); err != nil {
		t.Fatalf("expected committed cart: %v", err)
	}
}

func TestGetCartMissingIsNotFound(t *testing.T) {
	_, err := NewStore().Carts().GetCart(context.Background(), "nobody")
	if !repositories.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInsertBatchIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	orders := NewStore().Orders()

	if err := orders.InsertBatch(ctx, []domain.Order{{ID: "ord_1"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := orders.InsertBatch(ctx, []domain.Order{{ID: "ord_2"}, {ID: "ord_1"}})
	if !repositories.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if _, err := orders.FindByID(ctx, "ord_2"); !repositories.IsNotFound(err) {
		t.Fatalf("expected ord_2 not to be written, got %v", err)
	}
}

func TestUpdateStatusComparesAndSets(t *testing.T) {
	ctx := context.Background()
	orders := NewStore().Orders()
	if err := orders.InsertBatch(ctx, []domain.Order{{ID: "ord_1", Status: domain.OrderStatusPlaced}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	updated, err := orders.UpdateStatus(ctx, "ord_1", domain.OrderStatusPlaced, domain.OrderStatusProcessing)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != domain.OrderStatusProcessing {
		t.Fatalf("expected processing, got %s", updated.Status)
	}

	if _, err := orders.UpdateStatus(ctx, "ord_1", domain.OrderStatusPlaced, domain.OrderStatusShipped); !repositories.IsConflict(err) {
		t.Fatalf("expected conflict on stale from, got %v", err)
	}
	if _, err := orders.UpdateStatus(ctx, "missing", domain.OrderStatusPlaced, domain.OrderStatusShipped); !repositories.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListPagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	orders := NewStore().Orders()
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	batch := []domain.Order{
		{ID: "ord_a", BuyerID: "buyer-1", SellerID: "s1", Status: domain.OrderStatusPlaced, PlacedAt: base},
		{ID: "ord_b", BuyerID: "buyer-1", SellerID: "s2", Status: domain.OrderStatusShipped, PlacedAt: base},
		{ID: "ord_c", BuyerID: "buyer-1", SellerID: "s1", Status: domain.OrderStatusShipped, PlacedAt: base.Add(time.Minute)},
		{ID: "ord_d", BuyerID: "buyer-2", SellerID: "s1", Status: domain.OrderStatusShipped, PlacedAt: base.Add(2 * time.Minute)},
	}
	if err := orders.InsertBatch(ctx, batch); err != nil {
		t.Fatalf("seed: %v", err)
	}

	first, err := orders.List(ctx, repositories.OrderListFilter{BuyerID: "buyer-1", Pagination: domain.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got := ids(first.Items); got != "ord_c,ord_b" {
		t.Fatalf("unexpected first page %s", got)
	}
	if first.NextPageToken == "" {
		t.Fatalf("expected next page token")
	}

	second, err := orders.List(ctx, repositories.OrderListFilter{BuyerID: "buyer-1", Pagination: domain.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	if err != nil {
		t.Fatalf("list second: %v", err)
	}
	if got := ids(second.Items); got != "ord_a" {
		t.Fatalf("unexpected second page %s", got)
	}
	if second.NextPageToken != "" {
		t.Fatalf("expected last page, got token %q", second.NextPageToken)
	}

	shipped, err := orders.List(ctx, repositories.OrderListFilter{SellerID: "s1", Status: []domain.OrderStatus{domain.OrderStatusShipped}})
	if err != nil {
		t.Fatalf("list shipped: %v", err)
	}
	if got := ids(shipped.Items); got != "ord_d,ord_c" {
		t.Fatalf("unexpected shipped page %s", got)
	}
}

func TestLookupItemsOmitsUnknown(t *testing.T) {
	store := NewStore(WithCatalogItems(domain.CatalogItem{ID: "book-1", SellerID: "s1", Price: 100}))
	found, err := store.Catalog().LookupItems(context.Background(), []string{"book-1", "book-2"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected one item, got %d", len(found))
	}
	if _, ok := found["book-2"]; ok {
		t.Fatalf("unknown item must be omitted")
	}
}

func TestRemoveCatalogItemUnlistsBook(t *testing.T) {
	store := NewStore(WithCatalogItems(domain.CatalogItem{ID: "book-1", SellerID: "s1", Price: 100}))
	store.RemoveCatalogItem("book-1")

	found, err := store.Catalog().LookupItems(context.Background(), []string{"book-1"})
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(found) != 0 {
		t.Fatalf("expected unlisted book to be omitted, got %v", found)
	}
}

func TestReadsFailOnCancelledContext(t *testing.T) {
	store := NewStore(WithCatalogItems(domain.CatalogItem{ID: "book-1", SellerID: "s1", Price: 100}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Orders().List(ctx, repositories.OrderListFilter{BuyerID: "b1"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected list to fail with context error, got %v", err)
	}
	if _, err := store.Carts().GetCart(ctx, "b1"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cart read to fail with context error, got %v", err)
	}
}

func ids(orders []domain.Order) string {
	out := ""
	for i, o := range orders {
		if i > 0 {
			out += ","
		}
		out += o.ID
	}
	return out
}
