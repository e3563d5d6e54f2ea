package auth

import "testing"

func TestPermissionForAPI(t *testing.T) {
	cases := []struct {
		name string
		path string
		want *Permission
	}{
		{name: "menu items", path: "/api/admin/menu/42", want: permPtr(PermMenu)},
		{name: "menu categories use longest prefix", path: "/api/admin/menu-categories/7", want: permPtr(PermMenu)},
		{name: "kitchen tickets", path: "/api/admin/kitchen/tickets/3/status", want: permPtr(PermKitchen)},
		{name: "payments", path: "/api/admin/payments", want: permPtr(PermPayments)},
		{name: "uploads", path: "/api/admin/uploads/images", want: permPtr(PermUploads)},
		{name: "unguarded path", path: "/api/admin/profile", want: nil},
		{name: "prefix must match whole segment", path: "/api/admin/menux", want: nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PermissionForAPI(tc.path)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if got != nil && *got != *tc.want {
				t.Fatalf("expected %s, got %s", *tc.want, *got)
			}
		})
	}
}

func TestRoleHasPermission(t *testing.T) {
	cases := []struct {
		name string
		role UserRole
		perm Permission
		want bool
	}{
		{name: "owner bypasses the table", role: RoleOwner, perm: PermStaff, want: true},
		{name: "manager has staff", role: RoleManager, perm: PermStaff, want: true},
		{name: "chef has kitchen", role: RoleChef, perm: PermKitchen, want: true},
		{name: "chef cannot touch payments", role: RoleChef, perm: PermPayments, want: false},
		{name: "chef cannot touch menu", role: RoleChef, perm: PermMenu, want: false},
		{name: "waiter has payments", role: RoleWaiter, perm: PermPayments, want: true},
		{name: "waiter cannot manage staff", role: RoleWaiter, perm: PermStaff, want: false},
		{name: "superadmin has no tenant permissions", role: RoleSuperAdmin, perm: PermMenu, want: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RoleHasPermission(tc.role, tc.perm); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestParseRole(t *testing.T) {
	if role, ok := ParseRole(" chef "); !ok || role != RoleChef {
		t.Fatalf("expected CHEF, got %s (ok=%v)", role, ok)
	}
	if _, ok := ParseRole("ADMIN"); ok {
		t.Fatalf("expected unknown role to be rejected")
	}
	if !RoleManager.IsStaff() || RoleOwner.IsStaff() || RoleSuperAdmin.IsStaff() {
		t.Fatalf("staff classification is wrong")
	}
}

func permPtr(p Permission) *Permission {
	return &p
}
