package services

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/shelfmarket/api/internal/domain"
)

const orderIDPrefix = "ord_"

// OrderLine pairs a requested quantity with the catalog snapshot resolved for the item.
type OrderLine struct {
	ItemID   string
	Quantity int
	Snapshot CatalogItem
}

// OrderFactory turns resolved lines into order records. It performs no I/O; the clock and the
// identifier source are its only inputs besides the arguments.
type OrderFactory struct {
	now   func() time.Time
	newID func() string
}

// NewOrderFactory builds a factory. Nil arguments fall back to time.Now and ULID identifiers.
func NewOrderFactory(clock func() time.Time, idGenerator func() string) *OrderFactory {
	if clock == nil {
		clock = time.Now
	}
	if idGenerator == nil {
		idGenerator = func() string { return ulid.Make().String() }
	}
	return &OrderFactory{
		now:   func() time.Time { return clock().UTC() },
		newID: idGenerator,
	}
}

// BuildOrders creates one placed order per line, all stamped with the same placedAt. Each order
// freezes the snapshot price and computes its total exactly once.
func (f *OrderFactory) BuildOrders(buyerID string, lines []OrderLine, shipping ShippingDetails) ([]Order, error) {
	buyer := strings.TrimSpace(buyerID)
	if buyer == "" {
		return nil, fmt.Errorf("%w: buyer id is required", ErrInvalidInput)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInvalidInput)
	}

	placedAt := f.now()
	orders := make([]Order, 0, len(lines))
	for _, line := range lines {
		if err := validateQuantity(line.Quantity); err != nil {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, err)
		}
		snap := line.Snapshot
		if strings.TrimSpace(snap.SellerID) == "" {
			return nil, fmt.Errorf("%w: item %s has no seller", ErrUnavailable, line.ItemID)
		}
		if snap.Price < 0 {
			return nil, fmt.Errorf("%w: item %s has a negative price", ErrUnavailable, line.ItemID)
		}
		total, err := lineTotal(snap.Price, line.Quantity)
		if err != nil {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, err)
		}

		orders = append(orders, Order{
			ID:              f.orderID(),
			BuyerID:         buyer,
			SellerID:        snap.SellerID,
			ItemID:          line.ItemID,
			ItemName:        snap.Title,
			ItemAuthor:      snap.Author,
			UnitPrice:       snap.Price,
			Quantity:        line.Quantity,
			TotalPrice:      total,
			ShippingAddress: cloneAddress(shipping.Address),
			ContactPhone:    clonePointer(shipping.ContactPhone),
			Notes:           clonePointer(shipping.Notes),
			Status:          domain.OrderStatusPlaced,
			PlacedAt:        placedAt,
		})
	}
	return orders, nil
}

func (f *OrderFactory) orderID() string {
	id := strings.TrimSpace(f.newID())
	if strings.HasPrefix(id, orderIDPrefix) {
		return id
	}
	return orderIDPrefix + id
}

var errPriceOverflow = errors.New("order total overflows")

func lineTotal(unitPrice int64, quantity int) (int64, error) {
	q := int64(quantity)
	if unitPrice != 0 && q > math.MaxInt64/unitPrice {
		return 0, fmt.Errorf("%w: %w", ErrInvalidQuantity, errPriceOverflow)
	}
	return unitPrice * q, nil
}

func clonePointer(value *string) *string {
	if value == nil {
		return nil
	}
	return valuePtr(*value)
}
