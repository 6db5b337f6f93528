package models

// Role is the permission a user holds within a single organization, carried
// on the affiliation edge. A user may hold different roles in different
// organizations.
type Role string

const (
	// RoleNone means no affiliation edge exists between the user and org.
	RoleNone       Role = ""
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// AtLeastAdmin reports whether the role grants destructive domain operations.
func (r Role) AtLeastAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Valid reports whether r is one of the known affiliation roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}
