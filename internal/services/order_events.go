package services

import (
	"context"
	"time"
)

const (
	orderEventPlaced        = "order.placed"
	orderEventStatusChanged = "order.status_changed"
)

// OrderEventPublisher emits order domain events to downstream consumers such as notifications.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	BuyerID        string
	SellerID       string
	PreviousStatus OrderStatus
	CurrentStatus  OrderStatus
	ActorID        string
	OccurredAt     time.Time
}

type eventSink struct {
	publisher OrderEventPublisher
	logger    func(context.Context, string, map[string]any)
}

// publish never fails the caller; the order is already committed when events go out.
func (s eventSink) publish(ctx context.Context, event OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"status": string(event.CurrentStatus),
			"error":  err.Error(),
		})
	}
}

func placedEvent(order Order) OrderEvent {
	return OrderEvent{
		Type:          orderEventPlaced,
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		SellerID:      order.SellerID,
		CurrentStatus: order.Status,
		ActorID:       order.BuyerID,
		OccurredAt:    order.PlacedAt,
	}
}
