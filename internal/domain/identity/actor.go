package identity

import (
	"slices"

	"github.com/google/uuid"
	"github.com/schoolfees/backend/internal/domain/shared"
)

// Role is the caller's role as carried in the identity context.
type Role string

const (
	RoleSuperAdmin     Role = "SUPER_ADMIN"
	RolePrincipal      Role = "PRINCIPAL"
	RoleFinanceManager Role = "FINANCE_MANAGER"
	RoleParent         Role = "PARENT"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleSuperAdmin, RolePrincipal, RoleFinanceManager, RoleParent:
		return true
	}
	return false
}

// IsStaff reports whether the role belongs to school staff
func (r Role) IsStaff() bool {
	return r == RoleSuperAdmin || r == RolePrincipal || r == RoleFinanceManager
}

// Actor is the authenticated caller on whose behalf an operation runs.
// It is consumed from the identity context, never produced by the ledger.
type Actor struct {
	UserID   uuid.UUID
	SchoolID uuid.UUID
	Role     Role
	Username string
}

// NewActor creates an Actor, rejecting unknown roles and empty ids.
func NewActor(userID, schoolID uuid.UUID, role Role, username string) (Actor, error) {
	if userID == uuid.Nil {
		return Actor{}, shared.NewDomainError("INVALID_ACTOR", "User ID is required")
	}
	if !role.IsValid() {
		return Actor{}, shared.NewDomainError("INVALID_ROLE", "Unknown role: "+string(role))
	}
	if schoolID == uuid.Nil && role != RoleSuperAdmin {
		return Actor{}, shared.NewDomainError("INVALID_ACTOR", "School ID is required")
	}
	return Actor{UserID: userID, SchoolID: schoolID, Role: role, Username: username}, nil
}

// SystemActor returns the actor used for gateway-initiated writes (webhooks).
func SystemActor(schoolID uuid.UUID) Actor {
	return Actor{UserID: uuid.Nil, SchoolID: schoolID, Role: RoleSuperAdmin, Username: "system"}
}

// IsSystem reports whether the actor is the gateway/system actor
func (a Actor) IsSystem() bool {
	return a.UserID == uuid.Nil
}

// IsStaff reports whether the actor acts as school staff
func (a Actor) IsStaff() bool {
	return a.Role.IsStaff()
}

// IsParent reports whether the actor is a parent/guardian
func (a Actor) IsParent() bool {
	return a.Role == RoleParent
}

// HasRole reports whether the actor holds any of the roles
func (a Actor) HasRole(roles ...Role) bool {
	return slices.Contains(roles, a.Role)
}

// CanAccessSchool reports whether the actor may touch data of the school.
// Super admins are not bound to a single school.
func (a Actor) CanAccessSchool(schoolID uuid.UUID) bool {
	if a.Role == RoleSuperAdmin {
		return true
	}
	return a.SchoolID != uuid.Nil && a.SchoolID == schoolID
}

// EnsureSchool returns ErrForbidden when the school is out of the actor's scope.
func (a Actor) EnsureSchool(schoolID uuid.UUID) error {
	if !a.CanAccessSchool(schoolID) {
		return shared.Forbidden("Resource belongs to another school")
	}
	return nil
}

// EnsureRole returns ErrForbidden unless the actor holds one of the roles.
func (a Actor) EnsureRole(roles ...Role) error {
	if !a.HasRole(roles...) {
		return shared.Forbidden("Role " + string(a.Role) + " is not allowed to perform this action")
	}
	return nil
}

// FinanceStaff are the roles allowed to mutate the ledger directly.
var FinanceStaff = []Role{RoleSuperAdmin, RolePrincipal, RoleFinanceManager}

// Approvers are the roles allowed to decide approval requests.
var Approvers = []Role{RoleSuperAdmin, RolePrincipal}
