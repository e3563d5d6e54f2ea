package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tablefront-pos-service/internal/auth"
	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

type loginAccount struct {
	ID           int64
	RestaurantID pgtype.Int8
	Role         string
	Username     string
	Name         string
	PasswordHash string
	IsActive     bool
}

// Login resolves the principal in two passes: owners and superadmins sign in
// with their username, staff with the email or phone they were registered
// under. Any miss answers with the same generic message so accounts cannot
// be enumerated.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	login := strings.TrimSpace(payload.Login)
	if login == "" || payload.Password == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Login and password are required")
		return
	}

	account, err := h.findAccountByUsername(ctx, login)
	if err == pgx.ErrNoRows {
		account, err = h.findStaffByContact(ctx, login)
	}
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		return
	}
	if err != nil {
		h.Logger.Error("login lookup failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(payload.Password)) != nil {
		response.Error(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid username or password")
		return
	}
	if !account.IsActive {
		response.Error(w, http.StatusForbidden, "ACCOUNT_DISABLED", "Account is disabled")
		return
	}

	role, ok := auth.ParseRole(account.Role)
	if !ok {
		h.Logger.Error("unknown role on account", zapError(nil))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	var restaurantID *int64
	var restaurantName, currencySymbol string
	if account.RestaurantID.Valid {
		id := account.RestaurantID.Int64
		restaurantID = &id

		var active bool
		err := h.DB.QueryRow(ctx,
			`select name, currency_symbol, is_active from restaurants where id = $1`, id,
		).Scan(&restaurantName, &currencySymbol, &active)
		if err != nil {
			h.Logger.Error("restaurant lookup failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
			return
		}
		if !active {
			response.Error(w, http.StatusForbidden, "RESTAURANT_DISABLED", "Restaurant is currently disabled")
			return
		}
	}

	var sessionID int64
	err = h.DB.QueryRow(ctx,
		`insert into user_sessions (user_id, user_agent, expires_at) values ($1, $2, $3) returning id`,
		account.ID, r.UserAgent(), time.Now().Add(h.Config.SessionTTL),
	).Scan(&sessionID)
	if err != nil {
		h.Logger.Error("session insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	token, err := auth.IssueAccessToken(
		h.Config.JWTSecret,
		time.Duration(h.Config.JWTExpirySeconds)*time.Second,
		account.ID, sessionID, role, account.Username, restaurantID,
	)
	if err != nil {
		h.Logger.Error("token issue failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Login failed")
		return
	}

	data := map[string]any{
		"token":    token,
		"userId":   account.ID,
		"username": account.Username,
		"name":     account.Name,
		"role":     role,
	}
	if restaurantID != nil {
		data["restaurantId"] = *restaurantID
		data["restaurantName"] = restaurantName
		data["currencySymbol"] = currencySymbol
	}
	response.Success(w, data)
}

func (h *Handler) findAccountByUsername(ctx context.Context, username string) (loginAccount, error) {
	var account loginAccount
	err := h.DB.QueryRow(ctx, `
		select id, restaurant_id, role, username, name, password_hash, is_active
		from users
		where lower(username) = lower($1) and role in ('SUPER_ADMIN', 'OWNER')
	`, username).Scan(
		&account.ID, &account.RestaurantID, &account.Role,
		&account.Username, &account.Name, &account.PasswordHash, &account.IsActive,
	)
	return account, err
}

func (h *Handler) findStaffByContact(ctx context.Context, contact string) (loginAccount, error) {
	var account loginAccount
	err := h.DB.QueryRow(ctx, `
		select id, restaurant_id, role, username, name, password_hash, is_active
		from users
		where (lower(email) = lower($1) or phone = $1)
		  and role in ('MANAGER', 'CHEF', 'WAITER')
	`, contact).Scan(
		&account.ID, &account.RestaurantID, &account.Role,
		&account.Username, &account.Name, &account.PasswordHash, &account.IsActive,
	)
	return account, err
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not logged in")
		return
	}

	_, err := h.DB.Exec(ctx, `update user_sessions set status = 'REVOKED' where id = $1`, authCtx.SessionID)
	if err != nil {
		h.Logger.Error("session revoke failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Logout failed")
		return
	}
	response.Success(w, map[string]any{"loggedOut": true})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, ok := middleware.GetAuthContext(ctx)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Not logged in")
		return
	}

	data := map[string]any{
		"userId":   authCtx.UserID,
		"username": authCtx.Username,
		"role":     authCtx.Role,
	}

	if authCtx.RestaurantID != nil {
		var name, currency string
		err := h.DB.QueryRow(ctx,
			`select name, currency_symbol from restaurants where id = $1`, *authCtx.RestaurantID,
		).Scan(&name, &currency)
		if err != nil {
			h.Logger.Error("restaurant lookup failed", zapError(err))
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profile")
			return
		}
		data["restaurantId"] = *authCtx.RestaurantID
		data["restaurantName"] = name
		data["currencySymbol"] = currency
	}

	response.Success(w, data)
}
