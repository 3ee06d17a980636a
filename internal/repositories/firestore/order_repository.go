package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/shelfmarket/api/internal/domain"
	pfirestore "github.com/shelfmarket/api/internal/platform/firestore"
	"github.com/shelfmarket/api/internal/platform/pagination"
	"github.com/shelfmarket/api/internal/repositories"
)

const (
	orderCollection = "orders"
)

// OrderRepository stores orders in a flat collection keyed by order ID. Listings need composite
// indexes on (buyerId|sellerId, status, placedAt desc, id desc).
type OrderRepository struct {
	provider *pfirestore.Provider
	base     *pfirestore.BaseRepository[orderDocument]
	txOpts   []pfirestore.TxOption
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider, txOpts ...pfirestore.TxOption) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		base:     pfirestore.NewBaseRepository[orderDocument](provider, orderCollection, nil, nil),
		txOpts:   txOpts,
	}, nil
}

// InsertBatch creates every order in one transaction. An existing ID aborts the whole batch.
func (r *OrderRepository) InsertBatch(ctx context.Context, orders []domain.Order) error {
	if r == nil || r.base == nil {
		return errors.New("order repository not initialised")
	}
	if len(orders) == 0 {
		return nil
	}
	return r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		for _, order := range orders {
			if err := r.base.Create(txCtx, order.ID, newOrderDocument(order)); err != nil {
				return err
			}
		}
		return nil
	}, r.txOpts...)
}

// FindByID loads a single order.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return domain.Order{}, err
	}
	return doc.Data.toDomain(), nil
}

// UpdateStatus compares and sets the status inside a transaction.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (domain.Order, error) {
	if r == nil || r.base == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(orderID)

	var updated domain.Order
	err := r.provider.RunTransaction(ctx, func(txCtx context.Context, _ *firestore.Transaction) error {
		doc, err := r.base.Get(txCtx, id)
		if err != nil {
			return err
		}
		if current := domain.OrderStatus(doc.Data.Status); current != from {
			return pfirestore.ConflictError("orders.update_status", fmt.Sprintf("order %s status is %s", id, current))
		}
		if err := r.base.Update(txCtx, id, []firestore.Update{{Path: "status", Value: string(to)}}); err != nil {
			return err
		}
		updated = doc.Data.toDomain()
		updated.Status = to
		return nil
	}, r.txOpts...)
	if err != nil {
		return domain.Order{}, err
	}
	return updated, nil
}

// List returns orders newest first using keyset pagination on (placedAt, id).
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Order]{}, errors.New("order repository not initialised")
	}
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pagination.NormalizePageSize(filter.Pagination.PageSize)

	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.BuyerID != "" {
			q = q.Where("buyerId", "==", filter.BuyerID)
		}
		if filter.SellerID != "" {
			q = q.Where("sellerId", "==", filter.SellerID)
		}
		switch len(filter.Status) {
		case 0:
		case 1:
			q = q.Where("status", "==", string(filter.Status[0]))
		default:
			statuses := make([]string, 0, len(filter.Status))
			for _, status := range filter.Status {
				statuses = append(statuses, string(status))
			}
			q = q.Where("status", "in", statuses)
		}
		q = q.OrderBy("placedAt", firestore.Desc).OrderBy("id", firestore.Desc)
		if !cursor.IsZero() {
			q = q.StartAfter(cursor.PlacedAt.UTC(), cursor.ID)
		}
		return q.Limit(size + 1)
	})
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}

	page := domain.CursorPage[domain.Order]{Items: make([]domain.Order, 0, min(len(docs), size))}
	for i, doc := range docs {
		if i == size {
			last := page.Items[size-1]
			token, err := pagination.EncodeToken(pagination.Cursor{PlacedAt: last.PlacedAt, ID: last.ID})
			if err != nil {
				return domain.CursorPage[domain.Order]{}, err
			}
			page.NextPageToken = token
			break
		}
		page.Items = append(page.Items, doc.Data.toDomain())
	}
	return page, nil
}

type orderDocument struct {
	ID              string          `firestore:"id"`
	BuyerID         string          `firestore:"buyerId"`
	SellerID        string          `firestore:"sellerId"`
	ItemID          string          `firestore:"itemId"`
	ItemName        string          `firestore:"itemName"`
	ItemAuthor      string          `firestore:"itemAuthor"`
	UnitPrice       int64           `firestore:"unitPrice"`
	Quantity        int             `firestore:"quantity"`
	TotalPrice      int64           `firestore:"totalPrice"`
	ShippingAddress addressDocument `firestore:"shippingAddress"`
	ContactPhone    *string         `firestore:"contactPhone,omitempty"`
	Notes           *string         `firestore:"notes,omitempty"`
	Status          string          `firestore:"status"`
	PlacedAt        time.Time       `firestore:"placedAt"`
}

type addressDocument struct {
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      string  `firestore:"state"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
}

func newOrderDocument(order domain.Order) orderDocument {
	addr := order.ShippingAddress
	return orderDocument{
		ID:         order.ID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		ItemID:     order.ItemID,
		ItemName:   order.ItemName,
		ItemAuthor: order.ItemAuthor,
		UnitPrice:  order.UnitPrice,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		ShippingAddress: addressDocument{
			Line1:      addr.Line1,
			Line2:      addr.Line2,
			City:       addr.City,
			State:      addr.State,
			PostalCode: addr.PostalCode,
			Country:    addr.Country,
		},
		ContactPhone: order.ContactPhone,
		Notes:        order.Notes,
		Status:       string(order.Status),
		PlacedAt:     order.PlacedAt.UTC(),
	}
}

func (d orderDocument) toDomain() domain.Order {
	return domain.Order{
		ID:         d.ID,
		BuyerID:    d.BuyerID,
		SellerID:   d.SellerID,
		ItemID:     d.ItemID,
		ItemName:   d.ItemName,
		ItemAuthor: d.ItemAuthor,
		UnitPrice:  d.UnitPrice,
		Quantity:   d.Quantity,
		TotalPrice: d.TotalPrice,
		ShippingAddress: domain.Address{
			Line1:      d.ShippingAddress.Line1,
			Line2:      d.ShippingAddress.Line2,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		ContactPhone: d.ContactPhone,
		Notes:        d.Notes,
		Status:       domain.OrderStatus(d.Status),
		PlacedAt:     d.PlacedAt.UTC(),
	}
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
