package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"tablefront-pos-service/internal/auth"
	"tablefront-pos-service/internal/middleware"
	"tablefront-pos-service/pkg/response"

	"golang.org/x/crypto/bcrypt"
)

type StaffMember struct {
	ID       int64   `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Role     string  `json:"role"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	IsActive bool    `json:"isActive"`
}

func staffRoleAllowed(role auth.UserRole) bool {
	return role == auth.RoleManager || role == auth.RoleChef || role == auth.RoleWaiter
}

// canManageStaff limits staff administration to owners and managers.
func canManageStaff(authCtx *middleware.AuthContext) bool {
	return authCtx.Role == auth.RoleOwner || authCtx.Role == auth.RoleManager
}

func (h *Handler) StaffList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)

	rows, err := h.DB.Query(ctx, `
		select id, username, name, role, email, phone, is_active
		from users
		where restaurant_id = $1 and role in ('MANAGER', 'CHEF', 'WAITER')
		order by role, name
	`, *authCtx.RestaurantID)
	if err != nil {
		h.Logger.Error("staff list failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch staff")
		return
	}
	defer rows.Close()

	staff := make([]StaffMember, 0)
	for rows.Next() {
		var s StaffMember
		if err := rows.Scan(&s.ID, &s.Username, &s.Name, &s.Role, &s.Email, &s.Phone, &s.IsActive); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to fetch staff")
			return
		}
		staff = append(staff, s)
	}
	response.Success(w, map[string]any{"staff": staff})
}

func (h *Handler) StaffCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)
	if !canManageStaff(authCtx) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Only owners and managers can manage staff")
		return
	}

	var payload struct {
		Username string  `json:"username"`
		Name     string  `json:"name"`
		Role     string  `json:"role"`
		Email    *string `json:"email"`
		Phone    *string `json:"phone"`
		Password string  `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	username := strings.TrimSpace(payload.Username)
	role, roleOK := auth.ParseRole(payload.Role)
	switch {
	case username == "":
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Username is required")
		return
	case !roleOK || !staffRoleAllowed(role):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be MANAGER, CHEF or WAITER")
		return
	case len(payload.Password) < 8:
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
		return
	case (payload.Email == nil || strings.TrimSpace(*payload.Email) == "") &&
		(payload.Phone == nil || strings.TrimSpace(*payload.Phone) == ""):
		// Staff sign in by email or phone, so at least one must exist.
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "An email or phone number is required")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(payload.Password), 10)
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create staff account")
		return
	}

	var id int64
	err = h.DB.QueryRow(ctx, `
		insert into users (restaurant_id, role, username, name, email, phone, password_hash)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id
	`, *authCtx.RestaurantID, string(role), username, strings.TrimSpace(payload.Name),
		payload.Email, payload.Phone, string(hashed)).Scan(&id)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "Username or email already in use")
		return
	}
	if err != nil {
		h.Logger.Error("staff insert failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create staff account")
		return
	}
	response.Created(w, map[string]any{"id": id})
}

func (h *Handler) StaffUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)
	if !canManageStaff(authCtx) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Only owners and managers can manage staff")
		return
	}

	staffID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Staff ID is required")
		return
	}

	var payload struct {
		Name        *string `json:"name"`
		Role        *string `json:"role"`
		Email       *string `json:"email"`
		Phone       *string `json:"phone"`
		IsActive    *bool   `json:"isActive"`
		NewPassword *string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	var roleValue *string
	if payload.Role != nil {
		role, ok := auth.ParseRole(*payload.Role)
		if !ok || !staffRoleAllowed(role) {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Role must be MANAGER, CHEF or WAITER")
			return
		}
		value := string(role)
		roleValue = &value
	}

	var passwordHash *string
	if payload.NewPassword != nil {
		if len(strings.TrimSpace(*payload.NewPassword)) < 8 {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Password must be at least 8 characters")
			return
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(strings.TrimSpace(*payload.NewPassword)), 10)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update staff account")
			return
		}
		value := string(hashed)
		passwordHash = &value
	}

	tag, err := h.DB.Exec(ctx, `
		update users
		set name = coalesce($1, name),
			role = coalesce($2, role),
			email = coalesce($3, email),
			phone = coalesce($4, phone),
			is_active = coalesce($5, is_active),
			password_hash = coalesce($6, password_hash),
			updated_at = now()
		where id = $7 and restaurant_id = $8 and role in ('MANAGER', 'CHEF', 'WAITER')
	`, payload.Name, roleValue, payload.Email, payload.Phone, payload.IsActive, passwordHash,
		staffID, *authCtx.RestaurantID)
	if isUniqueViolation(err) {
		response.Error(w, http.StatusConflict, "DUPLICATE_NAME", "Email already in use")
		return
	}
	if err != nil {
		h.Logger.Error("staff update failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update staff account")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Staff member not found")
		return
	}

	// Disabling an account should also kill its sessions.
	if payload.IsActive != nil && !*payload.IsActive {
		_, _ = h.DB.Exec(ctx, `update user_sessions set status = 'REVOKED' where user_id = $1 and status = 'ACTIVE'`, staffID)
	}

	response.Success(w, map[string]any{"updated": true})
}

func (h *Handler) StaffDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	authCtx, _ := middleware.GetAuthContext(ctx)
	if !canManageStaff(authCtx) {
		response.Error(w, http.StatusForbidden, "FORBIDDEN", "Only owners and managers can manage staff")
		return
	}

	staffID, err := readPathInt64(r, "id")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Staff ID is required")
		return
	}
	if staffID == authCtx.UserID {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "You cannot delete your own account")
		return
	}

	tag, err := h.DB.Exec(ctx,
		`delete from users where id = $1 and restaurant_id = $2 and role in ('MANAGER', 'CHEF', 'WAITER')`,
		staffID, *authCtx.RestaurantID,
	)
	if err != nil {
		h.Logger.Error("staff delete failed", zapError(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete staff account")
		return
	}
	if tag.RowsAffected() == 0 {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Staff member not found")
		return
	}
	response.Success(w, map[string]any{"deleted": true})
}
