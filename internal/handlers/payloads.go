package handlers

import (
	"time"

	domain "github.com/shelfmarket/api/internal/domain"
	"github.com/shelfmarket/api/internal/services"
)

type addressPayload struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	PostalCode string  `json:"postalCode"`
	Country    string  `json:"country"`
}

type orderPayload struct {
	ID              string         `json:"id"`
	BuyerID         string         `json:"buyerId"`
	SellerID        string         `json:"sellerId"`
	ItemID          string         `json:"itemId"`
	ItemName        string         `json:"itemName"`
	ItemAuthor      string         `json:"itemAuthor"`
	UnitPrice       int64          `json:"unitPrice"`
	Quantity        int            `json:"quantity"`
	TotalPrice      int64          `json:"totalPrice"`
	ShippingAddress addressPayload `json:"shippingAddress"`
	ContactPhone    *string        `json:"contactPhone,omitempty"`
	Notes           *string        `json:"notes,omitempty"`
	Status          string         `json:"status"`
	PlacedAt        string         `json:"placedAt"`
}

type orderListPayload struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

type cartItemPayload struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

type cartPayload struct {
	BuyerID   string            `json:"buyerId"`
	Items     []cartItemPayload `json:"items"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	addr := order.ShippingAddress
	return orderPayload{
		ID:         order.ID,
		BuyerID:    order.BuyerID,
		SellerID:   order.SellerID,
		ItemID:     order.ItemID,
		ItemName:   order.ItemName,
		ItemAuthor: order.ItemAuthor,
		UnitPrice:  order.UnitPrice,
		Quantity:   order.Quantity,
		TotalPrice: order.TotalPrice,
		ShippingAddress: addressPayload{
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
		PlacedAt:     formatTime(order.PlacedAt),
	}
}

func buildOrderList(orders []services.Order) []orderPayload {
	items := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		items = append(items, buildOrderPayload(order))
	}
	return items
}

func buildOrderPage(page domain.CursorPage[services.Order]) orderListPayload {
	return orderListPayload{
		Items:         buildOrderList(page.Items),
		NextPageToken: page.NextPageToken,
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{ItemID: item.ItemID, Quantity: item.Quantity})
	}
	return cartPayload{
		BuyerID:   cart.BuyerID,
		Items:     items,
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
