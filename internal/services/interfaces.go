package services

import (
	"context"

	domain "github.com/shelfmarket/api/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination  = domain.Pagination
	Cart        = domain.Cart
	CartItem    = domain.CartItem
	CatalogItem = domain.CatalogItem
	Address     = domain.Address
	Order       = domain.Order
	OrderStatus = domain.OrderStatus
)

// CartService manages the buyer-owned cart. Every method takes the buyer identity explicitly.
type CartService interface {
	GetCart(ctx context.Context, buyerID string) (Cart, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (Cart, error)
	SetItemQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (Cart, error)
	Clear(ctx context.Context, buyerID string) error
}

// CheckoutService converts a direct purchase or a whole cart into persisted orders.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	PlaceOrderFromCart(ctx context.Context, cmd CartCheckoutCommand) ([]Order, error)
}

// BuyerOrderService exposes the buyer's own order history.
type BuyerOrderService interface {
	ListMyOrders(ctx context.Context, buyerID string, pager Pagination) (domain.CursorPage[Order], error)
	GetMyOrder(ctx context.Context, buyerID, orderID string) (Order, error)
}

// SellerOrderAuthority operates on orders whose seller matches the caller.
type SellerOrderAuthority interface {
	ListOrders(ctx context.Context, sellerID string, pager Pagination) (domain.CursorPage[Order], error)
	GetOrder(ctx context.Context, sellerID, orderID string) (Order, error)
	TransitionStatus(ctx context.Context, cmd SellerStatusCommand) (Order, error)
}

// AdminOrderAuthority operates on every order but may only confirm delivery of shipped orders.
type AdminOrderAuthority interface {
	ListShippedOrders(ctx context.Context, adminID string, pager Pagination) (domain.CursorPage[Order], error)
	ListDeliveredOrders(ctx context.Context, adminID string, pager Pagination) (domain.CursorPage[Order], error)
	MarkDelivered(ctx context.Context, cmd MarkDeliveredCommand) (Order, error)
}

// CatalogLookup resolves item identifiers against the book catalog in a single batched read.
// Unknown identifiers are omitted from the returned map.
type CatalogLookup interface {
	LookupItems(ctx context.Context, itemIDs []string) (map[string]CatalogItem, error)
}

// CheckoutLocker serialises cart checkouts per buyer. Acquire returns ErrCheckoutInProgress when
// another checkout already holds the buyer's lock.
type CheckoutLocker interface {
	Acquire(ctx context.Context, buyerID string) (release func(), err error)
}

// OrderMetrics records checkout and transition outcomes.
type OrderMetrics interface {
	CheckoutSucceeded(kind string, orders int)
	CheckoutFailed(kind string, reason string)
	StatusChanged(actor string, from, to OrderStatus)
}

// AddCartItemCommand merges quantity into the buyer's cart line for ItemID.
type AddCartItemCommand struct {
	BuyerID  string
	ItemID   string
	Quantity int
}

// SetCartItemQuantityCommand overwrites the quantity of a line. Zero removes the line.
type SetCartItemQuantityCommand struct {
	BuyerID  string
	ItemID   string
	Quantity int
}

// RemoveCartItemCommand drops a line from the cart.
type RemoveCartItemCommand struct {
	BuyerID string
	ItemID  string
}

// ShippingDetails groups the delivery information copied onto every order of a checkout.
type ShippingDetails struct {
	Address      Address
	ContactPhone *string
	Notes        *string
}

// PlaceOrderCommand purchases a single item directly without touching the cart.
type PlaceOrderCommand struct {
	BuyerID  string
	ItemID   string
	Quantity int
	Shipping ShippingDetails
}

// CartCheckoutCommand purchases every line of the buyer's cart.
type CartCheckoutCommand struct {
	BuyerID  string
	Shipping ShippingDetails
}

// SellerStatusCommand requests a seller-side status change.
type SellerStatusCommand struct {
	SellerID     string
	OrderID      string
	TargetStatus OrderStatus
}

// MarkDeliveredCommand confirms delivery of a shipped order.
type MarkDeliveredCommand struct {
	AdminID string
	OrderID string
}
