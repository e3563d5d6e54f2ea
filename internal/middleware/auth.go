package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"tablefront-pos-service/internal/auth"

	"github.com/jackc/pgx/v5/pgxpool"
)

type contextKey string

const authContextKey contextKey = "authContext"

// AuthContext is the request-scoped principal: who is calling, for which
// tenant, and with what role. Handlers must take tenant scope from here,
// never from the request body.
type AuthContext struct {
	UserID       int64
	SessionID    int64
	Role         auth.UserRole
	Username     string
	RestaurantID *int64
}

func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey, authCtx)
}

func GetAuthContext(ctx context.Context) (*AuthContext, bool) {
	value := ctx.Value(authContextKey)
	if value == nil {
		return nil, false
	}
	ac, ok := value.(*AuthContext)
	return ac, ok
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   "UNAUTHORIZED",
		"message": message,
	})
}

func resolveClaims(r *http.Request, db *pgxpool.Pool, jwtSecret string) (*AuthContext, int, string) {
	token := auth.ParseBearerToken(r.Header.Get("Authorization"))
	claims, err := auth.VerifyAccessToken(token, jwtSecret)
	if err != nil {
		return nil, http.StatusUnauthorized, "Authorization token required"
	}

	userID, err := strconv.ParseInt(claims.UserID, 10, 64)
	if err != nil {
		return nil, http.StatusUnauthorized, "Invalid token"
	}
	sessionID, err := strconv.ParseInt(claims.SessionID, 10, 64)
	if err != nil {
		return nil, http.StatusUnauthorized, "Invalid token"
	}

	// The session row is authoritative; a revoked or expired session beats a
	// still-valid JWT.
	var (
		role     string
		username string
		active   bool
	)
	query := `
		select u.role, u.username, u.is_active
		from users u
		join user_sessions us on us.user_id = u.id
		where u.id = $1 and us.id = $2 and us.status = 'ACTIVE' and us.expires_at > now()
	`
	if err := db.QueryRow(r.Context(), query, userID, sessionID).Scan(&role, &username, &active); err != nil {
		return nil, http.StatusUnauthorized, "Session expired"
	}
	if !active {
		return nil, http.StatusForbidden, "Account is disabled"
	}

	parsedRole, ok := auth.ParseRole(role)
	if !ok || parsedRole != claims.Role {
		return nil, http.StatusUnauthorized, "Invalid token"
	}

	authCtx := &AuthContext{
		UserID:    userID,
		SessionID: sessionID,
		Role:      parsedRole,
		Username:  username,
	}
	if claims.RestaurantID != nil {
		restaurantID, err := strconv.ParseInt(*claims.RestaurantID, 10, 64)
		if err != nil {
			return nil, http.StatusUnauthorized, "Invalid token"
		}
		authCtx.RestaurantID = &restaurantID
	}
	return authCtx, 0, ""
}

// SessionAuth admits any principal with a live session, tenant-bound or
// not. Used for the account endpoints shared by every role.
func SessionAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, status, message := resolveClaims(r, db, jwtSecret)
			if authCtx == nil {
				writeAuthError(w, status, message)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

// TenantAuth admits owners and staff of an active restaurant, enforcing the
// role-permission table for staff roles.
func TenantAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, status, message := resolveClaims(r, db, jwtSecret)
			if authCtx == nil {
				writeAuthError(w, status, message)
				return
			}

			if authCtx.Role == auth.RoleSuperAdmin || authCtx.RestaurantID == nil {
				writeAuthError(w, http.StatusForbidden, "Restaurant access required")
				return
			}

			var restaurantActive bool
			err := db.QueryRow(r.Context(), `select is_active from restaurants where id = $1`, *authCtx.RestaurantID).Scan(&restaurantActive)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Restaurant not found")
				return
			}
			if !restaurantActive {
				writeAuthError(w, http.StatusForbidden, "Restaurant is currently disabled")
				return
			}

			if authCtx.Role.IsStaff() {
				if perm := auth.PermissionForAPI(r.URL.Path); perm != nil {
					if !auth.RoleHasPermission(authCtx.Role, *perm) {
						writeAuthError(w, http.StatusForbidden, "You do not have permission to access this resource")
						return
					}
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}

func SuperAdminAuth(db *pgxpool.Pool, jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, status, message := resolveClaims(r, db, jwtSecret)
			if authCtx == nil {
				writeAuthError(w, status, message)
				return
			}
			if authCtx.Role != auth.RoleSuperAdmin {
				writeAuthError(w, http.StatusForbidden, "Superadmin access required")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
		})
	}
}
