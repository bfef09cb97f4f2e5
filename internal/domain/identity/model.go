package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of principals the app knows about.
type Role string

// Role constants
const (
	RoleOwner    Role = "owner"
	RoleStaff    Role = "staff"
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// DefaultRole is used whenever no role has been chosen or the stored one is unreadable.
const DefaultRole = RoleOwner

// DefaultBusinessID is the tenant reference handed to identities with no tenant of their own.
const DefaultBusinessID = "business-1"

// ValidRoles contains all valid role values.
var ValidRoles = []Role{RoleOwner, RoleStaff, RoleCustomer, RoleAdmin}

// ErrInvalidRole is returned by ParseRole for values outside ValidRoles.
var ErrInvalidRole = errors.New("role must be one of: owner, staff, customer, admin")

// ParseRole converts a loosely typed string into a Role.
// PRE: none
// POST: Returns the Role for a known value, ErrInvalidRole otherwise
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, v := range ValidRoles {
		if v == r {
			return r, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
}

// RoleOrDefault parses s and falls back to DefaultRole for empty or unknown values.
func RoleOrDefault(s string) Role {
	r, err := ParseRole(s)
	if err != nil {
		return DefaultRole
	}
	return r
}

// LandingPath returns the first view a freshly signed-in principal of this role should see.
func (r Role) LandingPath() string {
	switch r {
	case RoleCustomer:
		return "/portal"
	case RoleAdmin:
		return "/admin"
	default:
		return "/dashboard"
	}
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Identity is the signed-in principal, either backed by the auth provider or mocked in bypass mode.
type Identity interface {
	ID() string
	Email() string
	Role() Role
	BusinessID() string
	IsSetupComplete() bool
	IsMock() bool
}

// ProviderUser is what the authentication provider knows about a signed-in user.
// It carries no role; roles are a per-device preference.
type ProviderUser struct {
	UID           string
	Email         string
	EmailVerified bool
	BusinessID    string
}

// RealIdentity is a provider user decorated with the device's role and setup state.
type RealIdentity struct {
	User          ProviderUser
	UserRole      Role
	SetupComplete bool
}

// NewRealIdentity decorates a provider user.
// PRE: u.UID is non-empty
// POST: Role is always a valid Role; BusinessID falls back to DefaultBusinessID
func NewRealIdentity(u ProviderUser, role Role, setupComplete bool) RealIdentity {
	if _, err := ParseRole(string(role)); err != nil {
		role = DefaultRole
	}
	if u.BusinessID == "" {
		u.BusinessID = DefaultBusinessID
	}
	return RealIdentity{User: u, UserRole: role, SetupComplete: setupComplete}
}

func (i RealIdentity) ID() string            { return i.User.UID }
func (i RealIdentity) Email() string         { return i.User.Email }
func (i RealIdentity) Role() Role            { return i.UserRole }
func (i RealIdentity) BusinessID() string    { return i.User.BusinessID }
func (i RealIdentity) IsSetupComplete() bool { return i.SetupComplete }
func (i RealIdentity) IsMock() bool          { return false }

// MockIdentity is synthesized in bypass mode without any credential check.
type MockIdentity struct {
	UserRole Role
}

// NewMockIdentity synthesizes a bypass identity for role.
// PRE: none
// POST: Returned identity always has a valid role and reports setup complete
func NewMockIdentity(role Role) MockIdentity {
	if _, err := ParseRole(string(role)); err != nil {
		role = DefaultRole
	}
	return MockIdentity{UserRole: role}
}

func (m MockIdentity) ID() string            { return "mock-" + string(m.UserRole) + "-user" }
func (m MockIdentity) Email() string         { return string(m.UserRole) + "@example.com" }
func (m MockIdentity) Role() Role            { return m.UserRole }
func (m MockIdentity) BusinessID() string    { return DefaultBusinessID }
func (m MockIdentity) IsSetupComplete() bool { return true }
func (m MockIdentity) IsMock() bool          { return true }

// Compile-time checks that both variants satisfy Identity.
var (
	_ Identity = RealIdentity{}
	_ Identity = MockIdentity{}
)
