package model

import "testing"

func TestCanGrant(t *testing.T) {
	tests := []struct {
		actor  Role
		target Role
		want   bool
	}{
		{RoleSuperadmin, RoleAdmin, true},
		{RoleSuperadmin, RoleOwner, true},
		{RoleSuperadmin, RoleSuperadmin, false},
		{RoleOwner, RoleAdmin, true},
		{RoleOwner, RoleOwner, false},
		{RoleOwner, RoleSuperadmin, false},
		{RoleAdmin, RoleAdmin, false},
		{RoleAdmin, RoleOwner, false},
	}

	for _, tt := range tests {
		if got := tt.actor.CanGrant(tt.target); got != tt.want {
			t.Errorf("%s.CanGrant(%s) = %v, want %v", tt.actor, tt.target, got, tt.want)
		}
	}
}

func TestCanManageAccess(t *testing.T) {
	if RoleAdmin.CanManageAccess() {
		t.Fatalf("admin must not manage access")
	}
	if !RoleOwner.CanManageAccess() || !RoleSuperadmin.CanManageAccess() {
		t.Fatalf("owner and superadmin must manage access")
	}
}

func TestCanManageCatalog(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleOwner, RoleSuperadmin} {
		if !r.CanManageCatalog() {
			t.Errorf("%s must manage catalog", r)
		}
	}
	if Role("").CanManageCatalog() {
		t.Fatalf("missing role must not manage catalog")
	}
}

func TestParseRole(t *testing.T) {
	if r, ok := ParseRole("owner"); !ok || r != RoleOwner {
		t.Fatalf("ParseRole(owner) = %q, %v", r, ok)
	}
	if _, ok := ParseRole("moderator"); ok {
		t.Fatalf("unknown role must not parse")
	}
}

func TestCategoryDisplayName(t *testing.T) {
	c := Category{Name: "drinks", Label: "Напитки"}
	if c.DisplayName() != "Напитки" {
		t.Fatalf("DisplayName = %q, want label", c.DisplayName())
	}

	c.Label = ""
	if c.DisplayName() != "drinks" {
		t.Fatalf("DisplayName = %q, want name fallback", c.DisplayName())
	}
}

func TestDeliveryTypeNeedsAddress(t *testing.T) {
	if DeliveryPickup.NeedsAddress() {
		t.Fatalf("pickup must not need address")
	}
	if !DeliveryCourier.NeedsAddress() || !DeliveryPost.NeedsAddress() {
		t.Fatalf("courier and post must need address")
	}
}
