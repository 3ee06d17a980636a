package services

import (
	"strings"

	domain "github.com/shelfmarket/api/internal/domain"
)

// lifecycle is the full order graph: placed -> processing -> shipped -> delivered, with
// cancelled reachable from every non-terminal status.
var lifecycle = transitionPolicy{
	domain.OrderStatusPlaced:     {domain.OrderStatusProcessing: {}, domain.OrderStatusShipped: {}, domain.OrderStatusCancelled: {}},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped: {}, domain.OrderStatusCancelled: {}},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered: {}, domain.OrderStatusCancelled: {}},
}

// sellerTransitions drive fulfilment. Delivery confirmation is reserved to the administrator.
var sellerTransitions = transitionPolicy{
	domain.OrderStatusPlaced:     {domain.OrderStatusProcessing: {}, domain.OrderStatusShipped: {}, domain.OrderStatusCancelled: {}},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped: {}, domain.OrderStatusCancelled: {}},
	domain.OrderStatusShipped:    {domain.OrderStatusCancelled: {}},
}

var adminTransitions = transitionPolicy{
	domain.OrderStatusShipped: {domain.OrderStatusDelivered: {}},
}

type transitionPolicy map[domain.OrderStatus]map[domain.OrderStatus]struct{}

// allows reports whether the policy grants from -> to. An edge outside lifecycle is never allowed,
// whatever the policy table says.
func (p transitionPolicy) allows(from, to domain.OrderStatus) bool {
	return p.has(from, to) && lifecycle.has(from, to)
}

func (p transitionPolicy) has(from, to domain.OrderStatus) bool {
	_, ok := p[from][to]
	return ok
}

// targets lists the statuses the policy allows from the given status, in lifecycle order.
func (p transitionPolicy) targets(from domain.OrderStatus) []domain.OrderStatus {
	var out []domain.OrderStatus
	for _, status := range domain.OrderStatuses {
		if p.allows(from, status) {
			out = append(out, status)
		}
	}
	return out
}

// describeTargets renders targets for error messages.
func (p transitionPolicy) describeTargets(from domain.OrderStatus) string {
	targets := p.targets(from)
	if len(targets) == 0 {
		return "no transitions allowed"
	}
	names := make([]string, len(targets))
	for i, status := range targets {
		names[i] = string(status)
	}
	return "allowed: " + strings.Join(names, ", ")
}
