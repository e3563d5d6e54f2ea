package handlers

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"tablefront-pos-service/pkg/response"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

func newResetToken() (raw string, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))
	return raw, hex.EncodeToString(sum[:]), nil
}

func digestResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// PasswordResetRequest always answers 200 so the endpoint cannot be used to
// probe which emails exist. Only the sha256 digest of the token is stored.
func (h *Handler) PasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	email := strings.TrimSpace(payload.Email)
	if email == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Email is required")
		return
	}

	generic := map[string]any{"message": "If the account exists, a reset link has been sent"}

	var userID int64
	var restaurantName pgtype.Text
	err := h.DB.QueryRow(ctx, `
		select u.id, rst.name
		from users u
		left join restaurants rst on rst.id = u.restaurant_id
		where lower(u.email) = lower($1) and u.is_active
	`, email).Scan(&userID, &restaurantName)
	if err == pgx.ErrNoRows {
		response.Success(w, generic)
		return
	}
	if err != nil {
		h.Logger.Error("reset lookup failed", zapError(err))
		response.Success(w, generic)
		return
	}

	raw, digest, err := newResetToken()
	if err != nil {
		h.Logger.Error("reset token generation failed", zapError(err))
		response.Success(w, generic)
		return
	}

	_, err = h.DB.Exec(ctx,
		`insert into password_reset_tokens (user_id, token_digest, expires_at) values ($1, $2, $3)`,
		userID, digest, time.Now().Add(h.Config.ResetTokenTTL),
	)
	if err != nil {
		h.Logger.Error("reset token insert failed", zapError(err))
		response.Success(w, generic)
		return
	}

	name := "Tablefront"
	if restaurantName.Valid && restaurantName.String != "" {
		name = restaurantName.String
	}
	link := h.Config.PublicSiteBaseURL + "/reset-password?token=" + raw
	h.Mail.SendPasswordReset(email, name, link)

	response.Success(w, generic)
}

func (h *Handler) PasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if strings.TrimSpace(payload.Token) == "" {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Token is required")
		return
	}
	if len(payload.NewPassword) < 8 {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
		return
	}

	tx, err := h.DB.Begin(ctx)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Single use: the conditional update claims the token; zero rows means
	// unknown, expired, or already spent.
	var userID int64
	err = tx.QueryRow(ctx, `
		update password_reset_tokens
		set used_at = now()
		where token_digest = $1 and used_at is null and expires_at > now()
		returning user_id
	`, digestResetToken(strings.TrimSpace(payload.Token))).Scan(&userID)
	if err == pgx.ErrNoRows {
		response.Error(w, http.StatusBadRequest, "INVALID_TOKEN", "Reset link is invalid or expired")
		return
	}
	if err != nil {
		h.Logger.Error("reset token claim failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.NewPassword), 10)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	if _, err := tx.Exec(ctx, `update users set password_hash = $1, updated_at = now() where id = $2`, string(hashed), userID); err != nil {
		h.Logger.Error("password update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	// Old sessions die with the old password.
	if _, err := tx.Exec(ctx, `update user_sessions set status = 'REVOKED' where user_id = $1 and status = 'ACTIVE'`, userID); err != nil {
		h.Logger.Error("session revoke failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	if err := tx.Commit(ctx); err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to reset password")
		return
	}

	response.Success(w, map[string]any{"message": "Password has been reset"})
}
