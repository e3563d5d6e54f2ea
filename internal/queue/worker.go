package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var errConsumerClosed = errors.New("consumer closed")

// NotificationJob is what the external notifier consumes; this worker only
// decides which events deserve one.
type NotificationJob struct {
	Kind         string    `json:"kind"`
	RestaurantID int64     `json:"restaurantId"`
	OrderNumber  string    `json:"orderNumber"`
	Recipient    string    `json:"recipient,omitempty"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProcessEventToJobs translates an order/ticket event into notification
// jobs. Ticket READY means waiters should be pinged; order CREATED means the
// kitchen display should chime.
func ProcessEventToJobs(ctx context.Context, pool *pgxpool.Pool, c *Client, body []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		// Malformed payloads are not retryable.
		return nil
	}

	var job *NotificationJob
	switch event.Type {
	case RoutingOrderCreated:
		job = &NotificationJob{
			Kind:         "kitchen_new_ticket",
			RestaurantID: event.RestaurantID,
			OrderNumber:  event.OrderNumber,
			Message:      "New order " + event.OrderNumber + " sent to kitchen",
		}
	case RoutingTicketStatusUpdated:
		if event.Status != "READY" {
			return nil
		}
		job = &NotificationJob{
			Kind:         "waiter_ticket_ready",
			RestaurantID: event.RestaurantID,
			OrderNumber:  event.OrderNumber,
			Message:      "Order " + event.OrderNumber + " is ready to serve",
		}
	case RoutingTicketCompleted:
		job = &NotificationJob{
			Kind:         "order_served",
			RestaurantID: event.RestaurantID,
			OrderNumber:  event.OrderNumber,
			Message:      "Order " + event.OrderNumber + " has been served",
		}
	default:
		return nil
	}

	if recipient := lookupOrderCustomerPhone(ctx, pool, event.OrderID); recipient != "" {
		job.Recipient = recipient
	}
	job.CreatedAt = time.Now()

	return c.PublishJSON(ctx, "", NotificationsQueue, job)
}

func lookupOrderCustomerPhone(ctx context.Context, pool *pgxpool.Pool, orderID int64) string {
	if pool == nil || orderID == 0 {
		return ""
	}
	var phone string
	err := pool.QueryRow(ctx, `select coalesce(customer_phone, '') from orders where id = $1`, orderID).Scan(&phone)
	if err != nil {
		return ""
	}
	return phone
}
