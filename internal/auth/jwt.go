package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPER_ADMIN"
	RoleOwner      UserRole = "OWNER"
	RoleManager    UserRole = "MANAGER"
	RoleChef       UserRole = "CHEF"
	RoleWaiter     UserRole = "WAITER"
)

func ParseRole(value string) (UserRole, bool) {
	switch UserRole(strings.ToUpper(strings.TrimSpace(value))) {
	case RoleSuperAdmin:
		return RoleSuperAdmin, true
	case RoleOwner:
		return RoleOwner, true
	case RoleManager:
		return RoleManager, true
	case RoleChef:
		return RoleChef, true
	case RoleWaiter:
		return RoleWaiter, true
	}
	return "", false
}

func (r UserRole) IsStaff() bool {
	return r == RoleManager || r == RoleChef || r == RoleWaiter
}

type Claims struct {
	UserID       string   `json:"userId"`
	SessionID    string   `json:"sessionId"`
	Role         UserRole `json:"role"`
	Username     string   `json:"username"`
	RestaurantID *string  `json:"restaurantId,omitempty"`
	jwt.RegisteredClaims
}

func ParseBearerToken(authHeader string) string {
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func IssueAccessToken(secret string, expiry time.Duration, userID, sessionID int64, role UserRole, username string, restaurantID *int64) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret not configured")
	}

	now := time.Now()
	claims := Claims{
		UserID:    strconv.FormatInt(userID, 10),
		SessionID: strconv.FormatInt(sessionID, 10),
		Role:      role,
		Username:  username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	if restaurantID != nil {
		value := strconv.FormatInt(*restaurantID, 10)
		claims.RestaurantID = &value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, errors.New("token required")
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token expired")
	}
	return claims, nil
}
