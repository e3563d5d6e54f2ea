package queue

import (
	"context"
	"time"
)

const (
	RoutingOrderCreated        = "order.created"
	RoutingOrderStatusUpdated  = "order.status.updated"
	RoutingTicketStatusUpdated = "ticket.status.updated"
	RoutingTicketCompleted     = "ticket.completed"
)

// OrderEvent is the envelope published for every order / kitchen ticket
// lifecycle change.
type OrderEvent struct {
	Type          string    `json:"type"`
	RestaurantID  int64     `json:"restaurantId"`
	OrderID       int64     `json:"orderId"`
	OrderNumber   string    `json:"orderNumber"`
	TicketID      *int64    `json:"ticketId,omitempty"`
	TicketNumber  *string   `json:"ticketNumber,omitempty"`
	Status        string    `json:"status"`
	TicketVersion int64     `json:"ticketVersion,omitempty"`
	OccurredAt    time.Time `json:"occurredAt"`
}

// PublishEvent is best-effort: the write already committed, so a broker
// outage must not fail the request.
func PublishEvent(ctx context.Context, c *Client, event OrderEvent) error {
	if c == nil {
		return nil
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return c.PublishJSON(ctx, EventsExchange, event.Type, event)
}
