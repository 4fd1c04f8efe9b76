package enums

import "fmt"

// UserRole controls what warehouse operations an account may perform.
type UserRole string

const (
	UserRoleAdmin   UserRole = "admin"
	UserRoleManager UserRole = "manager"
	UserRoleWorker  UserRole = "worker"
)

var validUserRoles = []UserRole{
	UserRoleAdmin,
	UserRoleManager,
	UserRoleWorker,
}

// String implements fmt.Stringer.
func (u UserRole) String() string {
	return string(u)
}

// IsValid reports whether the value is a known UserRole.
func (u UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == u {
			return true
		}
	}
	return false
}

// AtLeast reports whether the role grants the privileges of the other role.
// admin > manager > worker.
func (u UserRole) AtLeast(other UserRole) bool {
	return roleRank(u) >= roleRank(other)
}

func roleRank(role UserRole) int {
	switch role {
	case UserRoleAdmin:
		return 3
	case UserRoleManager:
		return 2
	case UserRoleWorker:
		return 1
	}
	return 0
}

// ParseUserRole converts the raw string to UserRole.
func ParseUserRole(value string) (UserRole, error) {
	for _, candidate := range validUserRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid user role %q", value)
}
