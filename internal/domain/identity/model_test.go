package identity_test

import (
	"errors"
	"testing"

	"loyaltyloop/internal/domain/identity"
)

// TestParseRole tests parsing of persisted role strings.
func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    identity.Role
		wantErr bool
	}{
		{"owner", identity.RoleOwner, false},
		{"staff", identity.RoleStaff, false},
		{"customer", identity.RoleCustomer, false},
		{"admin", identity.RoleAdmin, false},
		{" Admin ", identity.RoleAdmin, false},
		{"", "", true},
		{"superuser", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := identity.ParseRole(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRole(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, identity.ErrInvalidRole) {
				t.Errorf("expected ErrInvalidRole, got %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRole(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRoleOrDefault(t *testing.T) {
	if got := identity.RoleOrDefault(""); got != identity.RoleOwner {
		t.Errorf("empty role: got %q, want owner", got)
	}
	if got := identity.RoleOrDefault("janitor"); got != identity.RoleOwner {
		t.Errorf("unknown role: got %q, want owner", got)
	}
	if got := identity.RoleOrDefault("customer"); got != identity.RoleCustomer {
		t.Errorf("customer role: got %q", got)
	}
}

func TestRole_LandingPath(t *testing.T) {
	want := map[identity.Role]string{
		identity.RoleOwner:    "/dashboard",
		identity.RoleStaff:    "/dashboard",
		identity.RoleCustomer: "/portal",
		identity.RoleAdmin:    "/admin",
	}
	for role, path := range want {
		if got := role.LandingPath(); got != path {
			t.Errorf("%s.LandingPath() = %q, want %q", role, got, path)
		}
	}
}

// TestNewMockIdentity verifies every role yields a setup-complete mock with that role.
func TestNewMockIdentity(t *testing.T) {
	for _, role := range identity.ValidRoles {
		id := identity.NewMockIdentity(role)
		if id.Role() != role {
			t.Errorf("expected role %q, got %q", role, id.Role())
		}
		if !id.IsSetupComplete() {
			t.Errorf("mock %q should report setup complete", role)
		}
		if !id.IsMock() {
			t.Errorf("mock %q should report IsMock", role)
		}
		if id.BusinessID() == "" {
			t.Errorf("mock %q has no business reference", role)
		}
	}

	if got := identity.NewMockIdentity("bogus").Role(); got != identity.DefaultRole {
		t.Errorf("invalid role should default, got %q", got)
	}
}

func TestNewRealIdentity(t *testing.T) {
	u := identity.ProviderUser{UID: "u-1", Email: "owner@coffee.test"}

	id := identity.NewRealIdentity(u, "", false)
	if id.Role() != identity.RoleOwner {
		t.Errorf("expected default owner role, got %q", id.Role())
	}
	if id.BusinessID() != identity.DefaultBusinessID {
		t.Errorf("expected default business, got %q", id.BusinessID())
	}
	if id.IsMock() {
		t.Error("real identity reported IsMock")
	}

	id = identity.NewRealIdentity(u, identity.RoleStaff, true)
	if id.Role() != identity.RoleStaff || !id.IsSetupComplete() {
		t.Errorf("unexpected identity %+v", id)
	}
	if id.ID() != "u-1" || id.Email() != "owner@coffee.test" {
		t.Errorf("provider fields not carried: %+v", id)
	}
}
