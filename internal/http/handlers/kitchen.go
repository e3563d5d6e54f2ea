package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/queue"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	TicketStatusPending   = "PENDING"
	TicketStatusPreparing = "PREPARING"
	TicketStatusReady     = "READY"
	TicketStatusCompleted = "COMPLETED"
)

// ticketTransitions is the single source of truth for ticket legality.
// COMPLETED is reachable only through the dedicated complete operation.
var ticketTransitions = map[string]string{
	TicketStatusPending:   TicketStatusPreparing,
	TicketStatusPreparing: TicketStatusReady,
}

// canTransitionTicket reports whether current→next is legal, and separately
// whether it is a same-state no-op. A no-op must not fail: the kitchen
// display has no double-click debounce.
func canTransitionTicket(current, next string) (ok bool, noop bool) {
	if current == next {
		return true, true
	}
	return ticketTransitions[current] == next, false
}

type KitchenTicketItem struct {
	ItemName string  `json:"itemName"`
	Quantity int     `json:"quantity"`
	Notes    *string `json:"notes"`
}

type KitchenTicket struct {
	ID           int64               `json:"id"`
	TicketNumber string              `json:"ticketNumber"`
	OrderID      int64               `json:"orderId"`
	OrderNumber  string              `json:"orderNumber"`
	Status       string              `json:"status"`
	TableNumber  *string             `json:"tableNumber"`
	AreaName     *string             `json:"areaName"`
	CreatedAt    time.Time           `json:"createdAt"`
	Items        []KitchenTicketItem `json:"items"`
}

// bumpTicketVersion advances the tenant's monotonic ticket version inside
// the mutation's own transaction, so readers can never observe a change
// without a version step.
func bumpTicketVersion(ctx context.Context, tx pgx.Tx, restaurantID int64) (int64, error) {
	var version int64
	err := tx.QueryRow(ctx,
		`update restaurants set ticket_version = ticket_version + 1, updated_at = now() where id = $1 returning ticket_version`,
		restaurantID,
	).Scan(&version)
	return version, err
}

// LoadKitchenTickets returns every non-completed ticket for the tenant with
// its line items and table/area label, oldest first. Shared with the
// websocket stream so both surfaces serve the same payload.
func LoadKitchenTickets(ctx context.Context, db *pgxpool.Pool, restaurantID int64) ([]KitchenTicket, int64, error) {
	var version int64
	if err := db.QueryRow(ctx, `select ticket_version from restaurants where id = $1`, restaurantID).Scan(&version); err != nil {
		return nil, 0, err
	}

	rows, err := db.Query(ctx, `
		select kt.id, kt.ticket_number, kt.order_id, o.order_number, kt.status,
			t.table_number, a.name, kt.created_at
		from kitchen_tickets kt
		join orders o on o.id = kt.order_id
		left join tables t on t.id = o.table_id
		left join areas a on a.id = t.area_id
		where kt.restaurant_id = $1 and kt.status <> 'COMPLETED'
		order by kt.created_at asc
	`, restaurantID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets := make([]KitchenTicket, 0)
	index := make(map[int64]int)
	for rows.Next() {
		var ticket KitchenTicket
		if err := rows.Scan(
			&ticket.ID, &ticket.TicketNumber, &ticket.OrderID, &ticket.OrderNumber,
			&ticket.Status, &ticket.TableNumber, &ticket.AreaName, &ticket.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		ticket.Items = make([]KitchenTicketItem, 0)
		index[ticket.ID] = len(tickets)
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	if len(tickets) > 0 {
		ids := make([]int64, 0, len(tickets))
		for _, t := range tickets {
			ids = append(ids, t.ID)
		}
		itemRows, err := db.Query(ctx, `
			select ticket_id, item_name, quantity, notes
			from kitchen_ticket_items
			where ticket_id = any($1)
			order by id
		`, ids)
		if err != nil {
			return nil, 0, err
		}
		defer itemRows.Close()

		for itemRows.Next() {
			var ticketID int64
			var item KitchenTicketItem
			if err := itemRows.Scan(&ticketID, &item.ItemName, &item.Quantity, &item.Notes); err != nil {
				return nil, 0, err
			}
			if i, ok := index[ticketID]; ok {
				tickets[i].Items = append(tickets[i].Items, item)
			}
		}
		if err := itemRows.Err(); err != nil {
			return nil, 0, err
		}
	}

	return tickets, version, nil
}

func (h *Handler) KitchenTicketsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	tickets, version, err := LoadKitchenTickets(ctx, h.DB, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("ticket list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch kitchen tickets")
		return
	}

	response.Success(w, map[string]any{
		"version": version,
		"tickets": tickets,
	})
}

func (h *Handler) KitchenTicketUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	ticketID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Ticket ID is required")
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	next := strings.ToUpper(strings.TrimSpace(payload.Status))
	if next != TicketStatusPreparing && next != TicketStatusReady {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Status must be PREPARING or READY")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ticket")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Row-lock the ticket so concurrent taps serialize on the same state.
	var current string
	var orderID int64
	var ticketNumber, orderNumber string
	err = tx.QueryRow(ctx, `
		select kt.status, kt.order_id, kt.ticket_number, o.order_number
		from kitchen_tickets kt
		join orders o on o.id = kt.order_id
		where kt.id = $1 and kt.restaurant_id = $2
		for update of kt
	`, ticketID, *authCtx.RestaurantID).Scan(&current, &orderID, &ticketNumber, &orderNumber)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Ticket not found")
		return
	}
	if err != nil {
		h.Logger.Error("ticket lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ticket")
		return
	}

	ok, noop := canTransitionTicket(current, next)
	if !ok {
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", "Cannot move ticket from "+current+" to "+next)
		return
	}
	if noop {
		response.Success(w, map[string]any{"status": current, "changed": false})
		return
	}

	if _, err := tx.Exec(ctx,
		`update kitchen_tickets set status = $1, updated_at = now() where id = $2`,
		next, ticketID,
	); err != nil {
		h.Logger.Error("ticket update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ticket")
		return
	}

	// The order mirrors the kitchen's progress; READY is what makes it show
	// up on the waiter's serve list.
	if _, err := tx.Exec(ctx,
		`update orders set status = $1, updated_at = now() where id = $2 and status not in ('COMPLETED', 'CANCELLED')`,
		next, orderID,
	); err != nil {
		h.Logger.Error("order status mirror failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ticket")
		return
	}

	version, err := bumpTicketVersion(ctx, tx, *authCtx.RestaurantID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ticket")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update ticket")
		return
	}

	if err := queue.PublishEvent(ctx, h.Queue, queue.OrderEvent{
		Type:          queue.RoutingTicketStatusUpdated,
		RestaurantID:  *authCtx.RestaurantID,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		TicketID:      &ticketID,
		TicketNumber:  &ticketNumber,
		Status:        next,
		TicketVersion: version,
	}); err != nil {
		h.Logger.Warn("ticket event publish failed", zapError(err))
	}

	response.Success(w, map[string]any{"status": next, "changed": true, "version": version})
}

// ticketCompleteBlocked maps the observed status of a ticket that could not
// be claimed to the caller's error. READY never blocks; the conditional
// update is what actually claims a READY ticket.
func ticketCompleteBlocked(status string) (message string, blocked bool) {
	switch status {
	case TicketStatusReady:
		return "", false
	case TicketStatusCompleted:
		return "Ticket is already completed", true
	default:
		return "Only READY tickets can be completed", true
	}
}

// KitchenTicketComplete closes a READY ticket exactly once. The conditional
// update is the guard: a second complete call, or a racing one, matches zero
// rows and fails instead of producing a second served order. The order row
// is locked before the ticket is touched, the same order the cancel path
// uses, so the two mutations serialize instead of deadlocking.
func (h *Handler) KitchenTicketComplete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	ticketID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Ticket ID is required")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var orderID int64
	err = tx.QueryRow(ctx,
		`select order_id from kitchen_tickets where id = $1 and restaurant_id = $2`,
		ticketID, *authCtx.RestaurantID,
	).Scan(&orderID)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Ticket not found")
		return
	}
	if err != nil {
		h.Logger.Error("ticket lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}

	var orderStatus, orderNumber string
	err = tx.QueryRow(ctx,
		`select status, order_number from orders where id = $1 for update`,
		orderID,
	).Scan(&orderStatus, &orderNumber)
	if err != nil {
		h.Logger.Error("order lock failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}
	if orderStatus == "COMPLETED" || orderStatus == "CANCELLED" {
		response.Error(w, http.StatusConflict, "CONFLICT", "Order is already closed")
		return
	}

	var ticketNumber string
	err = tx.QueryRow(ctx, `
		update kitchen_tickets
		set status = 'COMPLETED', completed_at = now(), updated_at = now()
		where id = $1 and restaurant_id = $2 and status = 'READY'
		returning ticket_number
	`, ticketID, *authCtx.RestaurantID).Scan(&ticketNumber)
	if err == pgx.ErrNoRows {
		var current string
		if lookupErr := tx.QueryRow(ctx,
			`select status from kitchen_tickets where id = $1 and restaurant_id = $2`,
			ticketID, *authCtx.RestaurantID,
		).Scan(&current); lookupErr != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
			return
		}
		message, _ := ticketCompleteBlocked(current)
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", message)
		return
	}
	if err != nil {
		h.Logger.Error("ticket complete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}

	if _, err := tx.Exec(ctx,
		`update orders set status = 'SERVED', served_at = now(), updated_at = now() where id = $1`,
		orderID,
	); err != nil {
		h.Logger.Error("order serve failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}

	version, err := bumpTicketVersion(ctx, tx, *authCtx.RestaurantID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to complete ticket")
		return
	}

	if err := queue.PublishEvent(ctx, h.Queue, queue.OrderEvent{
		Type:          queue.RoutingTicketCompleted,
		RestaurantID:  *authCtx.RestaurantID,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		TicketID:      &ticketID,
		TicketNumber:  &ticketNumber,
		Status:        TicketStatusCompleted,
		TicketVersion: version,
	}); err != nil {
		h.Logger.Warn("ticket event publish failed", zapError(err))
	}

	response.Success(w, map[string]any{
		"completed":   true,
		"orderNumber": orderNumber,
		"version":     version,
	})
}
