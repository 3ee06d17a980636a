package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/shelfmarket/api/internal/domain"
	pfirestore "github.com/shelfmarket/api/internal/platform/firestore"
	"github.com/shelfmarket/api/internal/repositories"
)

const (
	cartCollection = "carts"
)

// CartRepository persists one cart document per buyer, keyed by buyer ID.
type CartRepository struct {
	base *pfirestore.BaseRepository[cartDocument]
}

// NewCartRepository constructs a Firestore-backed cart repository.
func NewCartRepository(provider *pfirestore.Provider) (*CartRepository, error) {
	if provider == nil {
		return nil, errors.New("cart repository requires firestore provider")
	}
	return &CartRepository{
		base: pfirestore.NewBaseRepository[cartDocument](provider, cartCollection, nil, nil),
	}, nil
}

// GetCart loads the buyer's cart. A buyer without a document yields a not-found error.
func (r *CartRepository) GetCart(ctx context.Context, buyerID string) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(buyerID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: buyer id is required")
	}

	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// SaveCart replaces the stored items. The write is blind so it can follow reads in a transaction.
func (r *CartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if r == nil || r.base == nil {
		return domain.Cart{}, errors.New("cart repository not initialised")
	}
	uid := strings.TrimSpace(cart.BuyerID)
	if uid == "" {
		return domain.Cart{}, errors.New("cart repository: buyer id is required")
	}

	doc := newCartDocument(cart)
	if err := r.base.Set(ctx, uid, doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(uid), nil
}

type cartDocument struct {
	Items     []cartItemDocument `firestore:"items"`
	UpdatedAt time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ItemID   string `firestore:"itemId"`
	Quantity int    `firestore:"quantity"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	updatedAt := cart.UpdatedAt.UTC()
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	return cartDocument{Items: items, UpdatedAt: updatedAt}
}

func (d cartDocument) toDomain(buyerID string) domain.Cart {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	return domain.Cart{
		BuyerID:   buyerID,
		Items:     items,
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

var _ repositories.CartRepository = (*CartRepository)(nil)
