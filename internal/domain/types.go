package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Cart is the buyer-owned basket. There is exactly one cart per buyer and it is keyed by BuyerID.
type Cart struct {
	BuyerID   string
	Items     []CartItem
	UpdatedAt time.Time
}

// CartItem references a catalog item and the quantity the buyer intends to purchase.
type CartItem struct {
	ItemID   string
	Quantity int
}

// IsEmpty reports whether the cart holds no items.
func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Find returns the index of the item within the cart or -1.
func (c Cart) Find(itemID string) int {
	for i, item := range c.Items {
		if item.ItemID == itemID {
			return i
		}
	}
	return -1
}

// ItemIDs returns the distinct item identifiers in insertion order.
func (c Cart) ItemIDs() []string {
	ids := make([]string, 0, len(c.Items))
	seen := make(map[string]struct{}, len(c.Items))
	for _, item := range c.Items {
		if _, ok := seen[item.ItemID]; ok {
			continue
		}
		seen[item.ItemID] = struct{}{}
		ids = append(ids, item.ItemID)
	}
	return ids
}

// CatalogItem is the read-only snapshot of a listed book returned by the catalog lookup.
type CatalogItem struct {
	ID       string
	Title    string
	Author   string
	Price    int64
	SellerID string
}

// Address captures a shipping destination. Line2 is the only optional field.
type Address struct {
	Line1      string
	Line2      *string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderStatus enumerates the lifecycle stages of an order.
type OrderStatus string

const (
	// OrderStatusPlaced is the initial status stamped at creation.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusProcessing indicates the seller has started fulfilment.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates the seller handed the parcel to a carrier.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered is terminal and confirmed by the platform administrator.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled is terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every known status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether the status is a known lifecycle stage.
func (s OrderStatus) Valid() bool {
	for _, candidate := range OrderStatuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from the status.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Order is the price-snapshotted record of one purchased line. Status is the only field that
// changes after creation.
type Order struct {
	ID              string
	BuyerID         string
	SellerID        string
	ItemID          string
	ItemName        string
	ItemAuthor      string
	UnitPrice       int64
	Quantity        int
	TotalPrice      int64
	ShippingAddress Address
	ContactPhone    *string
	Notes           *string
	Status          OrderStatus
	PlacedAt        time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but the service still answers.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency probe.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for the readiness endpoint.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	Version     string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
