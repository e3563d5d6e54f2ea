package handlers

import (
	"encoding/json"
	"net/http"
	"regexp"
	"strings"
	"time"

	"tablefront-pos-service/internal/utils"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

var restaurantCodePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,38}[a-z0-9]$`)

// deriveTenantStatus collapses the billing columns into the badge the
// console shows. Deactivation wins over everything, an open trial window
// counts as trial even when a subscription also exists.
func deriveTenantStatus(isActive bool, trialEndsAt, subscriptionEndsAt *time.Time, now time.Time) string {
	if !isActive {
		return "disabled"
	}
	if trialEndsAt != nil && now.Before(*trialEndsAt) {
		return "trial"
	}
	if subscriptionEndsAt != nil && now.Before(*subscriptionEndsAt) {
		return "active"
	}
	return "expired"
}

type TenantListItem struct {
	ID                 int64      `json:"id"`
	Code               string     `json:"code"`
	Name               string     `json:"name"`
	Status             string     `json:"status"`
	IsActive           bool       `json:"isActive"`
	OwnerUsername      *string    `json:"ownerUsername"`
	OwnerEmail         *string    `json:"ownerEmail"`
	StaffCount         int64      `json:"staffCount"`
	OrderCount         int64      `json:"orderCount"`
	TrialEndsAt        *time.Time `json:"trialEndsAt"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt"`
	CreatedAt          time.Time  `json:"createdAt"`
}

func (h *Handler) TenantsList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := readPagination(r)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	query := `
		select r.id, r.code, r.name, r.is_active,
			r.trial_ends_at, r.subscription_ends_at, r.created_at,
			owner.username, owner.email,
			(select count(*) from users u where u.restaurant_id = r.id and u.role <> 'OWNER') as staff_count,
			(select count(*) from orders o where o.restaurant_id = r.id) as order_count,
			count(*) over () as total
		from restaurants r
		left join users owner on owner.restaurant_id = r.id and owner.role = 'OWNER'
		where ($1 = '' or r.name ilike '%' || $1 || '%' or r.code ilike '%' || $1 || '%')
		order by r.created_at desc
		limit $2 offset $3
	`
	rows, err := h.DB.Query(ctx, query, search, page.PerPage, page.Offset)
	if err != nil {
		h.Logger.Error("tenant list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch restaurants")
		return
	}
	defer rows.Close()

	now := time.Now()
	var total int64
	tenants := make([]TenantListItem, 0)
	for rows.Next() {
		var t TenantListItem
		if err := rows.Scan(
			&t.ID, &t.Code, &t.Name, &t.IsActive,
			&t.TrialEndsAt, &t.SubscriptionEndsAt, &t.CreatedAt,
			&t.OwnerUsername, &t.OwnerEmail,
			&t.StaffCount, &t.OrderCount, &total,
		); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch restaurants")
			return
		}
		t.Status = deriveTenantStatus(t.IsActive, t.TrialEndsAt, t.SubscriptionEndsAt, now)
		tenants = append(tenants, t)
	}

	response.Success(w, map[string]any{
		"restaurants": tenants,
		"page":        page.Page,
		"perPage":     page.PerPage,
		"total":       total,
	})
}

// TenantCreate provisions a restaurant together with its owner account in
// one transaction; a half-created tenant never exists.
func (h *Handler) TenantCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		Name           string  `json:"name"`
		Code           string  `json:"code"`
		Address        *string `json:"address"`
		Phone          *string `json:"phone"`
		CurrencySymbol string  `json:"currencySymbol"`
		TaxRate        float64 `json:"taxRate"`
		ServiceRate    float64 `json:"serviceChargeRate"`
		TrialDays      int     `json:"trialDays"`
		OwnerUsername  string  `json:"ownerUsername"`
		OwnerName      string  `json:"ownerName"`
		OwnerEmail     *string `json:"ownerEmail"`
		OwnerPassword  string  `json:"ownerPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	payload.Name = strings.TrimSpace(payload.Name)
	payload.Code = strings.ToLower(strings.TrimSpace(payload.Code))
	payload.OwnerUsername = strings.TrimSpace(payload.OwnerUsername)
	if payload.Name == "" || payload.Code == "" || payload.OwnerUsername == "" || payload.OwnerPassword == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name, code, owner username and owner password are required")
		return
	}
	if !restaurantCodePattern.MatchString(payload.Code) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Code must be 3-40 lowercase letters, digits or hyphens")
		return
	}
	if len(payload.OwnerPassword) < 8 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Owner password must be at least 8 characters")
		return
	}
	if payload.CurrencySymbol == "" {
		payload.CurrencySymbol = "$"
	}
	if payload.TaxRate < 0 || payload.TaxRate > 100 || payload.ServiceRate < 0 || payload.ServiceRate > 100 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Rates must be between 0 and 100")
		return
	}
	if payload.TrialDays < 0 {
		payload.TrialDays = 0
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.OwnerPassword), 10)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create restaurant")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create restaurant")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var trialEndsAt *time.Time
	if payload.TrialDays > 0 {
		t := time.Now().AddDate(0, 0, payload.TrialDays)
		trialEndsAt = &t
	}

	var restaurantID int64
	err = tx.QueryRow(ctx, `
		insert into restaurants (code, name, address, phone, currency_symbol, tax_rate, service_charge_rate, trial_ends_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		returning id
	`, payload.Code, payload.Name, payload.Address, payload.Phone,
		payload.CurrencySymbol, payload.TaxRate, payload.ServiceRate, trialEndsAt,
	).Scan(&restaurantID)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "A restaurant with this code already exists")
		return
	}
	if err != nil {
		h.Logger.Error("tenant insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create restaurant")
		return
	}

	var ownerID int64
	err = tx.QueryRow(ctx, `
		insert into users (restaurant_id, role, username, name, email, password_hash)
		values ($1, 'OWNER', $2, $3, $4, $5)
		returning id
	`, restaurantID, payload.OwnerUsername, strings.TrimSpace(payload.OwnerName), payload.OwnerEmail, string(hash),
	).Scan(&ownerID)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "Owner username or email already exists")
		return
	}
	if err != nil {
		h.Logger.Error("owner insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create restaurant")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create restaurant")
		return
	}

	response.Created(w, map[string]any{
		"id":      restaurantID,
		"code":    payload.Code,
		"ownerId": ownerID,
	})
}

func (h *Handler) TenantUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	restaurantID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant ID is required")
		return
	}

	var payload struct {
		Name               *string    `json:"name"`
		Address            *string    `json:"address"`
		Phone              *string    `json:"phone"`
		CurrencySymbol     *string    `json:"currencySymbol"`
		TaxRate            *float64   `json:"taxRate"`
		ServiceRate        *float64   `json:"serviceChargeRate"`
		TrialEndsAt        *time.Time `json:"trialEndsAt"`
		SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	tag, err := h.DB.Exec(ctx, `
		update restaurants
		set name = coalesce($1, name),
			address = coalesce($2, address),
			phone = coalesce($3, phone),
			currency_symbol = coalesce($4, currency_symbol),
			tax_rate = coalesce($5, tax_rate),
			service_charge_rate = coalesce($6, service_charge_rate),
			trial_ends_at = coalesce($7, trial_ends_at),
			subscription_ends_at = coalesce($8, subscription_ends_at),
			updated_at = now()
		where id = $9
	`, payload.Name, payload.Address, payload.Phone, payload.CurrencySymbol,
		payload.TaxRate, payload.ServiceRate, payload.TrialEndsAt, payload.SubscriptionEndsAt,
		restaurantID)
	if err != nil {
		h.Logger.Error("tenant update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update restaurant")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}

	response.Success(w, map[string]any{"updated": true})
}

// TenantToggleActive flips a tenant on or off. Disabling revokes every
// open session for the tenant's users so staff drop out immediately.
func (h *Handler) TenantToggleActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	restaurantID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant ID is required")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update restaurant")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var isActive bool
	err = tx.QueryRow(ctx,
		`update restaurants set is_active = not is_active, updated_at = now() where id = $1 returning is_active`,
		restaurantID,
	).Scan(&isActive)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Restaurant not found")
		return
	}

	if !isActive {
		if _, err := tx.Exec(ctx, `
			update user_sessions set status = 'REVOKED'
			where status = 'ACTIVE'
			  and user_id in (select id from users where restaurant_id = $1)
		`, restaurantID); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update restaurant")
			return
		}
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update restaurant")
		return
	}

	response.Success(w, map[string]any{"isActive": isActive})
}

// TenantResetOwnerPassword sets a new password on the tenant's owner
// account and revokes the owner's sessions. Support path for locked-out
// owners who cannot receive reset email.
func (h *Handler) TenantResetOwnerPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	restaurantID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Restaurant ID is required")
		return
	}

	var payload struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if len(payload.Password) < 8 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(payload.Password), 10)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var ownerID int64
	err = tx.QueryRow(ctx, `
		update users set password_hash = $1, updated_at = now()
		where restaurant_id = $2 and role = 'OWNER'
		returning id
	`, string(hash), restaurantID).Scan(&ownerID)
	if err != nil {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Owner account not found")
		return
	}

	if _, err := tx.Exec(ctx,
		`update user_sessions set status = 'REVOKED' where user_id = $1 and status = 'ACTIVE'`,
		ownerID,
	); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	response.Success(w, map[string]any{"reset": true})
}

// PaymentsReport aggregates settled payments across every tenant for a
// date range, defaulting to the last 30 days.
func (h *Handler) PaymentsReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	to := time.Now()
	from := to.AddDate(0, 0, -30)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "to must be YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.Before(to) {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "from must be before to")
		return
	}

	rows, err := h.DB.Query(ctx, `
		select r.id, r.code, r.name, r.currency_symbol,
			count(p.id), coalesce(sum(p.amount), 0)
		from restaurants r
		left join payments p on p.restaurant_id = r.id
			and p.status = 'PAID' and p.paid_at >= $1 and p.paid_at < $2
		group by r.id
		order by coalesce(sum(p.amount), 0) desc
	`, from, to)
	if err != nil {
		h.Logger.Error("payments report failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
		return
	}
	defer rows.Close()

	type reportRow struct {
		RestaurantID   int64   `json:"restaurantId"`
		Code           string  `json:"code"`
		Name           string  `json:"name"`
		CurrencySymbol string  `json:"currencySymbol"`
		PaymentCount   int64   `json:"paymentCount"`
		TotalAmount    float64 `json:"totalAmount"`
	}
	report := make([]reportRow, 0)
	for rows.Next() {
		var row reportRow
		var amount pgtype.Numeric
		if err := rows.Scan(&row.RestaurantID, &row.Code, &row.Name, &row.CurrencySymbol, &row.PaymentCount, &amount); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to build report")
			return
		}
		row.TotalAmount = utils.NumericToFloat64(amount)
		report = append(report, row)
	}

	response.Success(w, map[string]any{
		"from":        from.Format("2006-01-02"),
		"to":          to.AddDate(0, 0, -1).Format("2006-01-02"),
		"restaurants": report,
	})
}
