package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tablefront-pos-service/internal/cache"
	"tablefront-pos-service/internal/queue"
	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
)

type publicRestaurant struct {
	ID             int64
	Name           string
	Code           string
	CurrencySymbol string
	TaxRate        float64
	ServiceRate    float64
}

// resolvePublicRestaurant maps a public URL code onto an active tenant.
// Disabled tenants answer 404, not 403, so the code space leaks nothing.
func (h *Handler) resolvePublicRestaurant(ctx context.Context, code string) (*publicRestaurant, error) {
	var (
		rest        publicRestaurant
		taxRate     pgtype.Numeric
		serviceRate pgtype.Numeric
	)
	err := h.DB.QueryRow(ctx, `
		select id, name, code, currency_symbol, tax_rate, service_charge_rate
		from restaurants
		where code = $1 and is_active = true
	`, code).Scan(&rest.ID, &rest.Name, &rest.Code, &rest.CurrencySymbol, &taxRate, &serviceRate)
	if err != nil {
		return nil, err
	}
	rest.TaxRate = utils.NumericToFloat64(taxRate)
	rest.ServiceRate = utils.NumericToFloat64(serviceRate)
	return &rest, nil
}

// PublicSite serves the customer-facing landing payload: restaurant
// identity, published website settings and active banners. Cached per
// restaurant code; admin edits invalidate the key.
func (h *Handler) PublicSite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := readPathString(r, "restaurantCode")
	if code == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant code is required")
		return
	}

	if cached, ok := h.Cache.Get(ctx, cache.PublicSiteKey(code)); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	rest, err := h.resolvePublicRestaurant(ctx, code)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	if err != nil {
		h.Logger.Error("public site lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load site")
		return
	}

	var settings WebsiteSettings
	err = h.DB.QueryRow(ctx, `
		select theme_color, hero_title, hero_subtitle, about_text,
			contact_email, contact_phone, opening_hours, is_published
		from website_settings
		where restaurant_id = $1
	`, rest.ID).Scan(
		&settings.ThemeColor, &settings.HeroTitle, &settings.HeroSubtitle, &settings.AboutText,
		&settings.ContactEmail, &settings.ContactPhone, &settings.OpeningHours, &settings.IsPublished,
	)
	if err == pgx.ErrNoRows || (err == nil && !settings.IsPublished) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Site is not published")
		return
	}
	if err != nil {
		h.Logger.Error("public site settings failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load site")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select id, image_url, caption, sort_order, is_active
		from website_banners
		where restaurant_id = $1 and is_active = true
		order by sort_order, id
	`, rest.ID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load site")
		return
	}
	defer rows.Close()

	banners := make([]WebsiteBanner, 0)
	for rows.Next() {
		var b WebsiteBanner
		if err := rows.Scan(&b.ID, &b.ImageURL, &b.Caption, &b.SortOrder, &b.IsActive); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load site")
			return
		}
		banners = append(banners, b)
	}

	body, err := json.Marshal(map[string]any{
		"success": true,
		"data": map[string]any{
			"restaurant": map[string]any{
				"name":           rest.Name,
				"code":           rest.Code,
				"currencySymbol": rest.CurrencySymbol,
			},
			"settings": settings,
			"banners":  banners,
		},
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load site")
		return
	}

	h.Cache.Set(ctx, cache.PublicSiteKey(code), body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// PublicMenu lists available menu items for the ordering page, grouped by
// category. Soft-deleted and unavailable items never appear here.
func (h *Handler) PublicMenu(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := readPathString(r, "restaurantCode")
	if code == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant code is required")
		return
	}

	if cached, ok := h.Cache.Get(ctx, cache.PublicMenuKey(code)); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	rest, err := h.resolvePublicRestaurant(ctx, code)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	if err != nil {
		h.Logger.Error("public menu lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select c.id, c.name, c.sort_order,
			i.id, i.name, i.description, i.price, i.image_url
		from menu_categories c
		join menu_items i on i.category_id = c.id
		where c.restaurant_id = $1
		  and c.is_active = true
		  and i.is_available = true
		  and i.deleted_at is null
		order by c.sort_order, c.id, i.name
	`, rest.ID)
	if err != nil {
		h.Logger.Error("public menu query failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
		return
	}
	defer rows.Close()

	type publicMenuItem struct {
		ID          int64   `json:"id"`
		Name        string  `json:"name"`
		Description *string `json:"description"`
		Price       float64 `json:"price"`
		ImageURL    *string `json:"imageUrl"`
	}
	type publicMenuCategory struct {
		ID    int64            `json:"id"`
		Name  string           `json:"name"`
		Items []publicMenuItem `json:"items"`
	}

	categories := make([]publicMenuCategory, 0)
	for rows.Next() {
		var (
			catID     int64
			catName   string
			sortOrder int
			item      publicMenuItem
			price     pgtype.Numeric
		)
		if err := rows.Scan(&catID, &catName, &sortOrder, &item.ID, &item.Name, &item.Description, &price, &item.ImageURL); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
			return
		}
		item.Price = utils.NumericToFloat64(price)

		if n := len(categories); n > 0 && categories[n-1].ID == catID {
			categories[n-1].Items = append(categories[n-1].Items, item)
		} else {
			categories = append(categories, publicMenuCategory{ID: catID, Name: catName, Items: []publicMenuItem{item}})
		}
	}

	body, err := json.Marshal(map[string]any{
		"success": true,
		"data": map[string]any{
			"restaurant": map[string]any{
				"name":              rest.Name,
				"code":              rest.Code,
				"currencySymbol":    rest.CurrencySymbol,
				"taxRate":           rest.TaxRate,
				"serviceChargeRate": rest.ServiceRate,
			},
			"categories": categories,
		},
	})
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load menu")
		return
	}

	h.Cache.Set(ctx, cache.PublicMenuKey(code), body)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

type checkoutItem struct {
	MenuItemID int64   `json:"menuItemId"`
	Quantity   int     `json:"quantity"`
	Notes      *string `json:"notes"`
}

// PublicCheckout turns a customer cart into an order and its kitchen
// ticket in one transaction. Prices come from the live menu rows, never
// from the client payload, so a tampered cart cannot change the bill.
func (h *Handler) PublicCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := readPathString(r, "restaurantCode")
	if code == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant code is required")
		return
	}

	var payload struct {
		OrderType     string         `json:"orderType"`
		TableNumber   *string        `json:"tableNumber"`
		CustomerName  string         `json:"customerName"`
		CustomerPhone *string        `json:"customerPhone"`
		CustomerEmail *string        `json:"customerEmail"`
		Notes         *string        `json:"notes"`
		Items         []checkoutItem `json:"items"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	orderType := strings.ToUpper(strings.TrimSpace(payload.OrderType))
	if orderType == "" {
		orderType = "DINE_IN"
	}
	if orderType != "DINE_IN" && orderType != "TAKEAWAY" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Order type must be DINE_IN or TAKEAWAY")
		return
	}
	payload.CustomerName = strings.TrimSpace(payload.CustomerName)
	if payload.CustomerName == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Customer name is required")
		return
	}
	if len(payload.Items) == 0 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cart is empty")
		return
	}
	for _, item := range payload.Items {
		if item.Quantity < 1 || item.Quantity > 99 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Item quantity must be between 1 and 99")
			return
		}
	}

	rest, err := h.resolvePublicRestaurant(ctx, code)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	if err != nil {
		h.Logger.Error("checkout restaurant lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Dine-in orders bind to a real table so the kitchen and waiter views
	// can show where the food goes.
	var tableID *int64
	if orderType == "DINE_IN" {
		if payload.TableNumber == nil || strings.TrimSpace(*payload.TableNumber) == "" {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Table number is required for dine-in orders")
			return
		}
		var id int64
		err := tx.QueryRow(ctx,
			`select id from tables where restaurant_id = $1 and lower(table_number) = lower($2)`,
			rest.ID, strings.TrimSpace(*payload.TableNumber),
		).Scan(&id)
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Table not found")
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
			return
		}
		tableID = &id
	}

	// Reprice every line from the live menu. Items that vanished or went
	// unavailable since the customer loaded the page fail the checkout.
	type pricedLine struct {
		MenuItemID int64
		Name       string
		UnitPrice  float64
		Quantity   int
		Notes      *string
	}
	lines := make([]pricedLine, 0, len(payload.Items))
	subtotal := 0.0
	for _, item := range payload.Items {
		var (
			name  string
			price pgtype.Numeric
		)
		err := tx.QueryRow(ctx, `
			select i.name, i.price
			from menu_items i
			join menu_categories c on c.id = i.category_id
			where i.id = $1 and c.restaurant_id = $2
			  and i.is_available = true and i.deleted_at is null
		`, item.MenuItemID, rest.ID).Scan(&name, &price)
		if err == pgx.ErrNoRows {
			response.Error(w, http.StatusConflict, "CONFLICT", "One or more items are no longer available")
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
			return
		}
		unitPrice := utils.NumericToFloat64(price)
		lines = append(lines, pricedLine{
			MenuItemID: item.MenuItemID,
			Name:       name,
			UnitPrice:  unitPrice,
			Quantity:   item.Quantity,
			Notes:      item.Notes,
		})
		subtotal += unitPrice * float64(item.Quantity)
	}

	subtotal = utils.RoundMoney(subtotal)
	taxAmount := utils.RoundMoney(subtotal * rest.TaxRate / 100)
	serviceAmount := utils.RoundMoney(subtotal * rest.ServiceRate / 100)
	totalAmount := utils.RoundMoney(subtotal + taxAmount + serviceAmount)

	now := time.Now()
	orderNumber, err := nextOrderNumber(ctx, tx, rest.ID, now)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	var orderID int64
	err = tx.QueryRow(ctx, `
		insert into orders
			(restaurant_id, order_number, order_type, status, table_id,
			 customer_name, customer_phone, notes,
			 subtotal, tax_amount, service_charge_amount, total_amount, placed_at)
		values ($1, $2, $3, 'PENDING', $4, $5, $6, $7, $8, $9, $10, $11, $12)
		returning id
	`, rest.ID, orderNumber, orderType, tableID,
		payload.CustomerName, payload.CustomerPhone, payload.Notes,
		subtotal, taxAmount, serviceAmount, totalAmount, now,
	).Scan(&orderID)
	if err != nil {
		h.Logger.Error("checkout order insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
			insert into order_items (order_id, menu_item_id, item_name, unit_price, quantity, notes)
			values ($1, $2, $3, $4, $5, $6)
		`, orderID, line.MenuItemID, line.Name, line.UnitPrice, line.Quantity, line.Notes); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
			return
		}
	}

	ticketNumber, err := nextTicketNumber(ctx, tx, rest.ID, now)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	var ticketID int64
	err = tx.QueryRow(ctx, `
		insert into kitchen_tickets (restaurant_id, order_id, ticket_number, status)
		values ($1, $2, $3, 'PENDING')
		returning id
	`, rest.ID, orderID, ticketNumber).Scan(&ticketID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
			insert into kitchen_ticket_items (ticket_id, item_name, quantity, notes)
			values ($1, $2, $3, $4)
		`, ticketID, line.Name, line.Quantity, line.Notes); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
			return
		}
	}

	version, err := bumpTicketVersion(ctx, tx, rest.ID)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to place order")
		return
	}

	if err := queue.PublishEvent(ctx, h.Queue, queue.OrderEvent{
		Type:          queue.RoutingOrderCreated,
		RestaurantID:  rest.ID,
		OrderID:       orderID,
		OrderNumber:   orderNumber,
		TicketID:      &ticketID,
		TicketNumber:  &ticketNumber,
		Status:        "PENDING",
		TicketVersion: version,
	}); err != nil {
		h.Logger.Warn("order created event publish failed", zapError(err))
	}

	trackingToken := utils.CreateOrderTrackingToken(h.Config.TrackingTokenSecret, rest.Code, orderNumber)
	if payload.CustomerEmail != nil && strings.TrimSpace(*payload.CustomerEmail) != "" {
		trackingLink := fmt.Sprintf("%s/%s/orders/%s?token=%s",
			strings.TrimRight(h.Config.PublicSiteBaseURL, "/"), rest.Code, orderNumber, trackingToken)
		h.Mail.SendOrderConfirmation(strings.TrimSpace(*payload.CustomerEmail), rest.Name, orderNumber, trackingLink)
	}

	h.Logger.Info("order placed",
		zap.String("restaurantCode", rest.Code),
		zap.String("orderNumber", orderNumber),
	)

	response.Created(w, map[string]any{
		"orderNumber":   orderNumber,
		"trackingToken": trackingToken,
		"subtotal":      subtotal,
		"taxAmount":     taxAmount,
		"serviceCharge": serviceAmount,
		"totalAmount":   totalAmount,
	})
}

// PublicOrderTrack lets a customer follow their order without an account.
// The HMAC token handed out at checkout is the only credential.
func (h *Handler) PublicOrderTrack(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := readPathString(r, "restaurantCode")
	orderNumber := readPathString(r, "orderNumber")
	if code == "" || orderNumber == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant code and order number are required")
		return
	}

	token := r.URL.Query().Get("token")
	if !utils.VerifyOrderTrackingToken(h.Config.TrackingTokenSecret, token, code, orderNumber) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Invalid tracking token")
		return
	}

	rest, err := h.resolvePublicRestaurant(ctx, code)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	var (
		orderID     int64
		status      string
		orderType   string
		tableNumber pgtype.Text
		total       pgtype.Numeric
		placedAt    time.Time
	)
	err = h.DB.QueryRow(ctx, `
		select o.id, o.status, o.order_type, t.table_number, o.total_amount, o.placed_at
		from orders o
		left join tables t on t.id = o.table_id
		where o.restaurant_id = $1 and o.order_number = $2
	`, rest.ID, orderNumber).Scan(&orderID, &status, &orderType, &tableNumber, &total, &placedAt)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Order not found")
		return
	}
	if err != nil {
		h.Logger.Error("order tracking lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}

	itemRows, err := h.DB.Query(ctx,
		`select item_name, unit_price, quantity, notes from order_items where order_id = $1 order by id`,
		orderID,
	)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
		return
	}
	defer itemRows.Close()

	items := make([]OrderItemView, 0)
	for itemRows.Next() {
		var item OrderItemView
		var unitPrice pgtype.Numeric
		if err := itemRows.Scan(&item.ItemName, &unitPrice, &item.Quantity, &item.Notes); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load order")
			return
		}
		item.UnitPrice = utils.NumericToFloat64(unitPrice)
		items = append(items, item)
	}

	data := map[string]any{
		"orderNumber":    orderNumber,
		"status":         status,
		"orderType":      orderType,
		"totalAmount":    utils.NumericToFloat64(total),
		"currencySymbol": rest.CurrencySymbol,
		"placedAt":       placedAt,
		"items":          items,
	}
	if tableNumber.Valid {
		data["tableNumber"] = tableNumber.String
	}
	response.Success(w, data)
}
