package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/platform/pagination"
	"github.com/shelfmarket/api/internal/repositories"
)

type cartRepository struct {
	collection *mongo.Collection
}

func (r cartRepository) GetCart(ctx context.Context, buyerID string) (domain.Cart, error) {
	var doc cartDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": buyerID}).Decode(&doc); err != nil {
		return domain.Cart{}, wrapError("mongo.cart.get", err)
	}
	return doc.toDomain(), nil
}

func (r cartRepository) SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	if strings.TrimSpace(cart.BuyerID) == "" {
		return domain.Cart{}, errors.New("cart repository: buyer id is required")
	}
	doc := newCartDocument(cart)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": doc.BuyerID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return domain.Cart{}, wrapError("mongo.cart.save", err)
	}
	return doc.toDomain(), nil
}

type orderRepository struct {
	collection *mongo.Collection
	unit       repositories.UnitOfWork
}

func (r orderRepository) InsertBatch(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	docs := make([]any, 0, len(orders))
	for _, order := range orders {
		docs = append(docs, newOrderDocument(order))
	}
	return r.unit.RunInTx(ctx, func(txCtx context.Context) error {
		_, err := r.collection.InsertMany(txCtx, docs)
		return wrapError("mongo.order.insert", err)
	})
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	var doc orderDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&doc); err != nil {
		return domain.Order{}, wrapError("mongo.order.find", err)
	}
	return doc.toDomain(), nil
}

func (r orderRepository) UpdateStatus(ctx context.Context, orderID string, from, to domain.OrderStatus) (domain.Order, error) {
	const op = "mongo.order.update_status"
	var doc orderDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": orderID, "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to)}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Order{}, wrapError(op, err)
	}

	// The filter missed: tell a missing order apart from a stale status.
	current, findErr := r.FindByID(ctx, orderID)
	if findErr != nil {
		return domain.Order{}, findErr
	}
	return domain.Order{}, repositories.Conflict(op, fmt.Sprintf("order %s status is %s", orderID, current.Status))
}

func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	cursor, err := pagination.DecodeToken(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, err
	}
	size := pagination.NormalizePageSize(filter.Pagination.PageSize)

	query := bson.M{}
	if filter.BuyerID != "" {
		query["buyerId"] = filter.BuyerID
	}
	if filter.SellerID != "" {
		query["sellerId"] = filter.SellerID
	}
	if len(filter.Status) > 0 {
		statuses := make([]string, 0, len(filter.Status))
		for _, status := range filter.Status {
			statuses = append(statuses, string(status))
		}
		query["status"] = bson.M{"$in": statuses}
	}
	if !cursor.IsZero() {
		placedAt := cursor.PlacedAt.UTC()
		query["$or"] = bson.A{
			bson.M{"placedAt": bson.M{"$lt": placedAt}},
			bson.M{"placedAt": placedAt, "_id": bson.M{"$lt": cursor.ID}},
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "placedAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(size + 1))
	found, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("mongo.order.list", err)
	}
	var docs []orderDocument
	if err := found.All(ctx, &docs); err != nil {
		return domain.CursorPage[domain.Order]{}, wrapError("mongo.order.list", err)
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
		page.Items = append(page.Items, doc.toDomain())
	}
	return page, nil
}

type catalogRepository struct {
	collection *mongo.Collection
}

func (r catalogRepository) LookupItems(ctx context.Context, itemIDs []string) (map[string]domain.CatalogItem, error) {
	result := make(map[string]domain.CatalogItem, len(itemIDs))
	if len(itemIDs) == 0 {
		return result, nil
	}
	found, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": itemIDs}})
	if err != nil {
		return nil, wrapError("mongo.catalog.lookup", err)
	}
	var docs []catalogDocument
	if err := found.All(ctx, &docs); err != nil {
		return nil, wrapError("mongo.catalog.lookup", err)
	}
	for _, doc := range docs {
		result[doc.ID] = domain.CatalogItem{
			ID:       doc.ID,
			Title:    doc.Title,
			Author:   doc.Author,
			Price:    doc.Price,
			SellerID: doc.SellerID,
		}
	}
	return result, nil
}

type cartDocument struct {
	BuyerID   string             `bson:"_id"`
	Items     []cartItemDocument `bson:"items"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type cartItemDocument struct {
	ItemID   string `bson:"itemId"`
	Quantity int    `bson:"quantity"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	updatedAt := cart.UpdatedAt.UTC().Truncate(time.Millisecond)
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC().Truncate(time.Millisecond)
	}
	items := make([]cartItemDocument, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemDocument{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	return cartDocument{BuyerID: strings.TrimSpace(cart.BuyerID), Items: items, UpdatedAt: updatedAt}
}

func (d cartDocument) toDomain() domain.Cart {
	items := make([]domain.CartItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.CartItem{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	return domain.Cart{BuyerID: d.BuyerID, Items: items, UpdatedAt: d.UpdatedAt.UTC()}
}

type orderDocument struct {
	ID              string          `bson:"_id"`
	BuyerID         string          `bson:"buyerId"`
	SellerID        string          `bson:"sellerId"`
	ItemID          string          `bson:"itemId"`
	ItemName        string          `bson:"itemName"`
	ItemAuthor      string          `bson:"itemAuthor"`
	UnitPrice       int64           `bson:"unitPrice"`
	Quantity        int             `bson:"quantity"`
	TotalPrice      int64           `bson:"totalPrice"`
	ShippingAddress addressDocument `bson:"shippingAddress"`
	ContactPhone    *string         `bson:"contactPhone,omitempty"`
	Notes           *string         `bson:"notes,omitempty"`
	Status          string          `bson:"status"`
	PlacedAt        time.Time       `bson:"placedAt"`
}

type addressDocument struct {
	Line1      string  `bson:"line1"`
	Line2      *string `bson:"line2,omitempty"`
	City       string  `bson:"city"`
	State      string  `bson:"state"`
	PostalCode string  `bson:"postalCode"`
	Country    string  `bson:"country"`
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
		// BSON dates carry millisecond precision; truncating keeps page cursors exact.
		PlacedAt: order.PlacedAt.UTC().Truncate(time.Millisecond),
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

type catalogDocument struct {
	ID       string `bson:"_id"`
	Title    string `bson:"title"`
	Author   string `bson:"author"`
	Price    int64  `bson:"price"`
	SellerID string `bson:"sellerId"`
}
