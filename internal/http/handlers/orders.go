package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/queue"
	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// orderTransitions mirrors the kitchen flow and adds the waiter-side tail:
// SERVED orders are settled to COMPLETED at payment time.
var orderTransitions = map[string][]string{
	"PENDING":   {"PREPARING", "CANCELLED"},
	"PREPARING": {"READY", "CANCELLED"},
	"READY":     {"SERVED", "CANCELLED"},
	"SERVED":    {"COMPLETED"},
	"COMPLETED": {},
	"CANCELLED": {},
}

func isValidOrderTransition(current, next string) bool {
	for _, allowed := range orderTransitions[current] {
		if allowed == next {
			return true
		}
	}
	return false
}

type OrderListItem struct {
	ID            int64     `json:"id"`
	OrderNumber   string    `json:"orderNumber"`
	OrderType     string    `json:"orderType"`
	Status        string    `json:"status"`
	TableNumber   *string   `json:"tableNumber"`
	AreaName      *string   `json:"areaName"`
	CustomerName  *string   `json:"customerName"`
	Subtotal      float64   `json:"subtotal"`
	TaxAmount     float64   `json:"taxAmount"`
	ServiceCharge float64   `json:"serviceChargeAmount"`
	TotalAmount   float64   `json:"totalAmount"`
	ItemCount     int64     `json:"itemCount"`
	PaymentStatus *string   `json:"paymentStatus"`
	PlacedAt      time.Time `json:"placedAt"`
}

type OrderItemView struct {
	ItemName  string  `json:"itemName"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Notes     *string `json:"notes"`
}

var validOrderStatusFilter = map[string]bool{
	"PENDING": true, "PREPARING": true, "READY": true,
	"SERVED": true, "COMPLETED": true, "CANCELLED": true,
}

func formatOrderNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("ORD-%s-%04d", now.Format("20060102"), seq)
}

func formatTicketNumber(now time.Time, seq int64) string {
	return fmt.Sprintf("KOT-%s-%04d", now.Format("20060102"), seq)
}

// nextCounterValue draws from a per-tenant daily counter row. The upsert
// takes a row lock, so concurrent allocations in separate transactions
// serialize and each gets its own value; a count(*) scan here would hand
// two racing checkouts the same number.
func nextCounterValue(ctx context.Context, tx pgx.Tx, restaurantID int64, kind string, now time.Time) (int64, error) {
	var seq int64
	err := tx.QueryRow(ctx, `
		insert into order_counters (restaurant_id, day, kind, value)
		values ($1, $2::date, $3, 1)
		on conflict (restaurant_id, day, kind)
		do update set value = order_counters.value + 1
		returning value
	`, restaurantID, now, kind).Scan(&seq)
	return seq, err
}

// nextOrderNumber allocates a per-tenant daily number like ORD-20260830-0042.
func nextOrderNumber(ctx context.Context, tx pgx.Tx, restaurantID int64, now time.Time) (string, error) {
	seq, err := nextCounterValue(ctx, tx, restaurantID, "ORDER", now)
	if err != nil {
		return "", err
	}
	return formatOrderNumber(now, seq), nil
}

func nextTicketNumber(ctx context.Context, tx pgx.Tx, restaurantID int64, now time.Time) (string, error) {
	seq, err := nextCounterValue(ctx, tx, restaurantID, "TICKET", now)
	if err != nil {
		return "", err
	}
	return formatTicketNumber(now, seq), nil
}

func (h *Handler) OrdersList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)
	page := readPagination(r)

	statusFilter := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if statusFilter != "" && !validOrderStatusFilter[statusFilter] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown status filter")
		return
	}

	query := `
		select o.id, o.order_number, o.order_type, o.status,
			t.table_number, a.name, o.customer_name,
			o.subtotal, o.tax_amount, o.service_charge_amount, o.total_amount,
			count(oi.id), max(p.status), o.placed_at,
			count(*) over () as total
		from orders o
		left join tables t on t.id = o.table_id
		left join areas a on a.id = t.area_id
		left join order_items oi on oi.order_id = o.id
		left join payments p on p.order_id = o.id
		where o.restaurant_id = $1
		  and ($2 = '' or o.status = $2)
		group by o.id, t.table_number, a.name
		order by o.placed_at desc
		limit $3 offset $4
	`
	rows, err := h.DB.Query(ctx, query, *authCtx.RestaurantID, statusFilter, page.PerPage, page.Offset)
	if err != nil {
		h.Logger.Error("order list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
		return
	}
	defer rows.Close()

	var total int64
	orders := make([]OrderListItem, 0)
	for rows.Next() {
		var o OrderListItem
		var subtotal, tax, service, amount pgtype.Numeric
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.OrderType, &o.Status,
			&o.TableNumber, &o.AreaName, &o.CustomerName,
			&subtotal, &tax, &service, &amount,
			&o.ItemCount, &o.PaymentStatus, &o.PlacedAt, &total,
		); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
			return
		}
		o.Subtotal = utils.NumericToFloat64(subtotal)
		o.TaxAmount = utils.NumericToFloat64(tax)
		o.ServiceCharge = utils.NumericToFloat64(service)
		o.TotalAmount = utils.NumericToFloat64(amount)
		orders = append(orders, o)
	}

	response.Success(w, map[string]any{
		"orders":  orders,
		"page":    page.Page,
		"perPage": page.PerPage,
		"total":   total,
	})
}

// OrdersServeList is the waiter view: orders the kitchen finished (READY)
// plus those already on the table awaiting settlement (SERVED).
func (h *Handler) OrdersServeList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	query := `
		select o.id, o.order_number, o.order_type, o.status,
			t.table_number, a.name, o.customer_name,
			o.subtotal, o.tax_amount, o.service_charge_amount, o.total_amount,
			count(oi.id), max(p.status), o.placed_at
		from orders o
		left join tables t on t.id = o.table_id
		left join areas a on a.id = t.area_id
		left join order_items oi on oi.order_id = o.id
		left join payments p on p.order_id = o.id
		where o.restaurant_id = $1 and o.status in ('READY', 'SERVED')
		group by o.id, t.table_number, a.name
		order by o.placed_at asc
	`
	rows, err := h.DB.Query(ctx, query, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("serve list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
		return
	}
	defer rows.Close()

	orders := make([]OrderListItem, 0)
	for rows.Next() {
		var o OrderListItem
		var subtotal, tax, service, amount pgtype.Numeric
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.OrderType, &o.Status,
			&o.TableNumber, &o.AreaName, &o.CustomerName,
			&subtotal, &tax, &service, &amount,
			&o.ItemCount, &o.PaymentStatus, &o.PlacedAt,
		); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch orders")
			return
		}
		o.Subtotal = utils.NumericToFloat64(subtotal)
		o.TaxAmount = utils.NumericToFloat64(tax)
		o.ServiceCharge = utils.NumericToFloat64(service)
		o.TotalAmount = utils.NumericToFloat64(amount)
		orders = append(orders, o)
	}

	response.Success(w, map[string]any{"orders": orders})
}

func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	var (
		o             OrderListItem
		notes         pgtype.Text
		customerPhone pgtype.Text
		cancelReason  pgtype.Text
	)
	var subtotal, tax, service, amount pgtype.Numeric
	err = h.DB.QueryRow(ctx, `
		select o.id, o.order_number, o.order_type, o.status,
			t.table_number, a.name, o.customer_name, o.customer_phone,
			o.subtotal, o.tax_amount, o.service_charge_amount, o.total_amount,
			o.notes, o.cancel_reason, o.placed_at
		from orders o
		left join tables t on t.id = o.table_id
		left join areas a on a.id = t.area_id
		where o.id = $1 and o.restaurant_id = $2
	`, orderID, *authCtx.RestaurantID).Scan(
		&o.ID, &o.OrderNumber, &o.OrderType, &o.Status,
		&o.TableNumber, &o.AreaName, &o.CustomerName, &customerPhone,
		&subtotal, &tax, &service, &amount,
		&notes, &cancelReason, &o.PlacedAt,
	)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order detail failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order")
		return
	}
	o.Subtotal = utils.NumericToFloat64(subtotal)
	o.TaxAmount = utils.NumericToFloat64(tax)
	o.ServiceCharge = utils.NumericToFloat64(service)
	o.TotalAmount = utils.NumericToFloat64(amount)

	itemRows, err := h.DB.Query(ctx,
		`select item_name, unit_price, quantity, notes from order_items where order_id = $1 order by id`,
		orderID,
	)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order")
		return
	}
	defer itemRows.Close()

	items := make([]OrderItemView, 0)
	for itemRows.Next() {
		var item OrderItemView
		var unitPrice pgtype.Numeric
		if err := itemRows.Scan(&item.ItemName, &unitPrice, &item.Quantity, &item.Notes); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch order")
			return
		}
		item.UnitPrice = utils.NumericToFloat64(unitPrice)
		items = append(items, item)
	}

	data := map[string]any{
		"order": o,
		"items": items,
	}
	if notes.Valid {
		data["notes"] = notes.String
	}
	if customerPhone.Valid {
		data["customerPhone"] = customerPhone.String
	}
	if cancelReason.Valid {
		data["cancelReason"] = cancelReason.String
	}
	response.Success(w, data)
}

func (h *Handler) OrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	orderID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID is required")
		return
	}

	var payload struct {
		Status string  `json:"status"`
		Reason *string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	next := strings.ToUpper(strings.TrimSpace(payload.Status))
	if !validOrderStatusFilter[next] || next == "PENDING" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Unknown target status")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current, orderNumber string
	err = tx.QueryRow(ctx,
		`select status, order_number from orders where id = $1 and restaurant_id = $2 for update`,
		orderID, *authCtx.RestaurantID,
	).Scan(&current, &orderNumber)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	if !isValidOrderTransition(current, next) {
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", "Cannot move order from "+current+" to "+next)
		return
	}

	if _, err := tx.Exec(ctx, `
		update orders
		set status = $1,
			updated_at = now(),
			served_at = case when $1 = 'SERVED' then now() else served_at end,
			completed_at = case when $1 = 'COMPLETED' then now() else completed_at end,
			cancelled_at = case when $1 = 'CANCELLED' then now() else cancelled_at end,
			cancel_reason = case when $1 = 'CANCELLED' then coalesce($2, cancel_reason) else cancel_reason end
		where id = $3
	`, next, payload.Reason, orderID); err != nil {
		h.Logger.Error("order status update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	// Cancelling an order pulls its ticket off the kitchen display too.
	versionBumped := false
	var version int64
	if next == "CANCELLED" {
		tag, err := tx.Exec(ctx, `
			update kitchen_tickets
			set status = 'COMPLETED', completed_at = now(), updated_at = now()
			where order_id = $1 and status <> 'COMPLETED'
		`, orderID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
			return
		}
		if tag.RowsAffected() > 0 {
			if version, err = bumpTicketVersion(ctx, tx, *authCtx.RestaurantID); err != nil {
				response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
				return
			}
			versionBumped = true
		}
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update order")
		return
	}

	event := queue.OrderEvent{
		Type:         queue.RoutingOrderStatusUpdated,
		RestaurantID: *authCtx.RestaurantID,
		OrderID:      orderID,
		OrderNumber:  orderNumber,
		Status:       next,
	}
	if versionBumped {
		event.TicketVersion = version
	}
	if err := queue.PublishEvent(ctx, h.Queue, event); err != nil {
		h.Logger.Warn("order event publish failed", zapError(err))
	}

	response.Success(w, map[string]any{"status": next})
}
