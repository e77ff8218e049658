package enums

import "fmt"

// GlobalRole is the platform-wide designation of a user, independent of any gym.
type GlobalRole string

const (
	GlobalRoleUser  GlobalRole = "USER"
	GlobalRoleAdmin GlobalRole = "ADMIN"
)

var validGlobalRoles = []GlobalRole{
	GlobalRoleUser,
	GlobalRoleAdmin,
}

// String implements fmt.Stringer.
func (r GlobalRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known GlobalRole.
func (r GlobalRole) IsValid() bool {
	for _, candidate := range validGlobalRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseGlobalRole converts raw input into a GlobalRole.
func ParseGlobalRole(value string) (GlobalRole, error) {
	for _, candidate := range validGlobalRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid global role %q", value)
}
