package middleware

import (
	"testing"

	"marketplace/internal/domain"
)

func TestRolePermissionTable(t *testing.T) {
	cases := []struct {
		name string
		role string
		perm string
		want bool
	}{
		{"buyer manages cart", domain.RoleBuyer, PermCartManage, true},
		{"buyer returns orders", domain.RoleBuyer, PermOrderReturn, true},
		{"buyer cannot manage products", domain.RoleBuyer, PermProductManage, false},
		{"buyer is not admin", domain.RoleBuyer, PermAdmin, false},
		{"seller manages products", domain.RoleSeller, PermProductManage, true},
		{"seller fulfils orders", domain.RoleSeller, PermOrderSeller, true},
		{"seller cannot deliver", domain.RoleSeller, PermOrderDeliver, false},
		{"rider delivers", domain.RoleRider, PermOrderDeliver, true},
		{"rider cannot fulfil", domain.RoleRider, PermOrderSeller, false},
		{"admin has admin", domain.RoleAdmin, PermAdmin, true},
		{"admin fulfils orders", domain.RoleAdmin, PermOrderSeller, true},
		{"unknown role has nothing", "ghost", PermCartManage, false},
		{"unknown permission", domain.RoleAdmin, "orders:teleport", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := HasPermission(tc.role, tc.perm); got != tc.want {
				t.Errorf("HasPermission(%s, %s): want %v, got %v", tc.role, tc.perm, tc.want, got)
			}
		})
	}
}
