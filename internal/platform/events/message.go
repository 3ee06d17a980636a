// Package events publishes order domain events to Pub/Sub or Kafka.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shelfmarket/api/internal/services"
)

// Message is the wire payload shared by every publisher.
type Message struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	BuyerID    string    `json:"buyerId"`
	SellerID   string    `json:"sellerId"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	ActorID    string    `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func newMessage(event services.OrderEvent) Message {
	occurred := event.OccurredAt.UTC()
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return Message{
		Type:       event.Type,
		OrderID:    event.OrderID,
		BuyerID:    event.BuyerID,
		SellerID:   event.SellerID,
		From:       string(event.PreviousStatus),
		To:         string(event.CurrentStatus),
		ActorID:    event.ActorID,
		OccurredAt: occurred,
	}
}

func encode(event services.OrderEvent) ([]byte, map[string]string, error) {
	msg := newMessage(event)
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal order event: %w", err)
	}
	attrs := make(map[string]string, 4)
	setAttr(attrs, "eventType", msg.Type)
	setAttr(attrs, "orderId", msg.OrderID)
	setAttr(attrs, "sellerId", msg.SellerID)
	setAttr(attrs, "status", msg.To)
	return data, attrs, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
