package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/phpdave11/gofpdf"
)

var validPaymentMethods = map[string]bool{
	"CASH": true, "CARD": true, "QR": true, "ONLINE": true,
}

type Payment struct {
	ID          int64     `json:"id"`
	OrderID     int64     `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	Method      string    `json:"paymentMethod"`
	Amount      float64   `json:"amount"`
	Status      string    `json:"status"`
	PaidAt      time.Time `json:"paidAt"`
}

// PaymentCreate settles a SERVED order: one payment row, order moves to
// COMPLETED in the same transaction.
func (h *Handler) PaymentCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	var payload struct {
		OrderID int64  `json:"orderId"`
		Method  string `json:"paymentMethod"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	method := strings.ToUpper(strings.TrimSpace(payload.Method))
	if payload.OrderID == 0 || !validPaymentMethods[method] {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order ID and a valid payment method are required")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record payment")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var status string
	var total pgtype.Numeric
	err = tx.QueryRow(ctx,
		`select status, total_amount from orders where id = $1 and restaurant_id = $2 for update`,
		payload.OrderID, *authCtx.RestaurantID,
	).Scan(&status, &total)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record payment")
		return
	}
	if status != "SERVED" {
		response.Error(w, http.StatusConflict, "INVALID_TRANSITION", "Only served orders can be settled")
		return
	}

	var paymentID int64
	err = tx.QueryRow(ctx, `
		insert into payments (restaurant_id, order_id, payment_method, amount)
		values ($1, $2, $3, $4)
		returning id
	`, *authCtx.RestaurantID, payload.OrderID, method, utils.NumericToFloat64(total)).Scan(&paymentID)
	if err != nil {
		h.Logger.Error("payment insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record payment")
		return
	}

	if _, err := tx.Exec(ctx,
		`update orders set status = 'COMPLETED', completed_at = now(), updated_at = now() where id = $1`,
		payload.OrderID,
	); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record payment")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to record payment")
		return
	}

	response.Created(w, map[string]any{"paymentId": paymentID, "orderStatus": "COMPLETED"})
}

func (h *Handler) PaymentsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)
	page := readPagination(r)

	rows, err := h.DB.Query(ctx, `
		select p.id, p.order_id, o.order_number, p.payment_method, p.amount, p.status, p.paid_at,
			count(*) over () as total
		from payments p
		join orders o on o.id = p.order_id
		where p.restaurant_id = $1
		order by p.paid_at desc
		limit $2 offset $3
	`, *authCtx.RestaurantID, page.PerPage, page.Offset)
	if err != nil {
		h.Logger.Error("payment list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch payments")
		return
	}
	defer rows.Close()

	var total int64
	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		var amount pgtype.Numeric
		if err := rows.Scan(&p.ID, &p.OrderID, &p.OrderNumber, &p.Method, &amount, &p.Status, &p.PaidAt, &total); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch payments")
			return
		}
		p.Amount = utils.NumericToFloat64(amount)
		payments = append(payments, p)
	}

	response.Success(w, map[string]any{
		"payments": payments,
		"page":     page.Page,
		"perPage":  page.PerPage,
		"total":    total,
	})
}

// PaymentReceiptPDF renders a thermal-style receipt for a settled payment.
func (h *Handler) PaymentReceiptPDF(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	paymentID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Payment ID is required")
		return
	}

	var (
		orderID        int64
		orderNumber    string
		method         string
		paidAt         time.Time
		restaurantName string
		currency       string
		tableNumber    pgtype.Text
	)
	var amount, subtotal, tax, service pgtype.Numeric
	err = h.DB.QueryRow(ctx, `
		select p.order_id, o.order_number, p.payment_method, p.amount, p.paid_at,
			rst.name, rst.currency_symbol, t.table_number,
			o.subtotal, o.tax_amount, o.service_charge_amount
		from payments p
		join orders o on o.id = p.order_id
		join restaurants rst on rst.id = p.restaurant_id
		left join tables t on t.id = o.table_id
		where p.id = $1 and p.restaurant_id = $2
	`, paymentID, *authCtx.RestaurantID).Scan(
		&orderID, &orderNumber, &method, &amount, &paidAt,
		&restaurantName, &currency, &tableNumber,
		&subtotal, &tax, &service,
	)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Payment not found")
		return
	}
	if err != nil {
		h.Logger.Error("receipt lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render receipt")
		return
	}

	itemRows, err := h.DB.Query(ctx,
		`select item_name, unit_price, quantity from order_items where order_id = $1 order by id`,
		orderID,
	)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render receipt")
		return
	}
	defer itemRows.Close()

	type receiptLine struct {
		name     string
		price    float64
		quantity int
	}
	lines := make([]receiptLine, 0)
	for itemRows.Next() {
		var line receiptLine
		var price pgtype.Numeric
		if err := itemRows.Scan(&line.name, &price, &line.quantity); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to render receipt")
			return
		}
		line.price = utils.NumericToFloat64(price)
		lines = append(lines, line)
	}

	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 8, restaurantName, "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(0, 5, "Receipt "+orderNumber, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 5, paidAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	if tableNumber.Valid {
		pdf.CellFormat(0, 5, "Table "+tableNumber.String, "", 1, "C", false, 0, "")
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(70, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(15, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 6, "Amount", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 9)
	for _, line := range lines {
		pdf.CellFormat(70, 6, line.name, "", 0, "L", false, 0, "")
		pdf.CellFormat(15, 6, fmt.Sprintf("%d", line.quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%s%.2f", currency, line.price*float64(line.quantity)), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	writeTotal := func(label string, value float64, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 9)
		pdf.CellFormat(85, 6, label, "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%s%.2f", currency, value), "", 1, "R", false, 0, "")
	}
	writeTotal("Subtotal", utils.NumericToFloat64(subtotal), false)
	writeTotal("Tax", utils.NumericToFloat64(tax), false)
	writeTotal("Service charge", utils.NumericToFloat64(service), false)
	writeTotal("Total ("+method+")", utils.NumericToFloat64(amount), true)

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.CellFormat(0, 5, "Thank you for dining with us", "", 1, "C", false, 0, "")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%s.pdf"`, orderNumber))
	if err := pdf.Output(w); err != nil {
		h.Logger.Error("receipt render failed", zapError(err))
	}
}
