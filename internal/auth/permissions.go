package auth

import "strings"

type Permission string

const (
	PermMenu     Permission = "menu"
	PermFloor    Permission = "floor"
	PermOrders   Permission = "orders"
	PermKitchen  Permission = "kitchen"
	PermPayments Permission = "payments"
	PermStaff    Permission = "staff"
	PermWebsite  Permission = "website"
	PermUploads  Permission = "uploads"
)

// rolePermissions fixes what each staff role may touch. Owners bypass this
// table entirely; superadmins never reach tenant routes.
var rolePermissions = map[UserRole][]Permission{
	RoleManager: {PermMenu, PermFloor, PermOrders, PermKitchen, PermPayments, PermStaff, PermWebsite, PermUploads},
	RoleChef:    {PermKitchen, PermOrders},
	RoleWaiter:  {PermOrders, PermKitchen, PermPayments},
}

var apiPermissionMap = map[string]Permission{
	"/api/admin/menu":            PermMenu,
	"/api/admin/menu-categories": PermMenu,
	"/api/admin/areas":           PermFloor,
	"/api/admin/tables":          PermFloor,
	"/api/admin/orders":          PermOrders,
	"/api/admin/kitchen":         PermKitchen,
	"/api/admin/payments":        PermPayments,
	"/api/admin/staff":           PermStaff,
	"/api/admin/website":         PermWebsite,
	"/api/admin/uploads":         PermUploads,
}

// PermissionForAPI resolves the permission guarding a request path by
// longest-prefix match, nil when the path is unguarded.
func PermissionForAPI(path string) *Permission {
	var bestKey string
	var bestPerm *Permission
	for key, perm := range apiPermissionMap {
		if path != key && !strings.HasPrefix(path, key+"/") {
			continue
		}
		if len(key) > len(bestKey) {
			p := perm
			bestKey = key
			bestPerm = &p
		}
	}
	return bestPerm
}

func RoleHasPermission(role UserRole, perm Permission) bool {
	if role == RoleOwner {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}
