package enums

import "fmt"

// GymRole is a user's position within one specific gym.
type GymRole string

const (
	GymRoleOwner      GymRole = "OWNER"
	GymRoleProgrammer GymRole = "PROGRAMMER"
	GymRoleCoach      GymRole = "COACH"
	GymRoleAthlete    GymRole = "ATHLETE"
)

var validGymRoles = []GymRole{
	GymRoleOwner,
	GymRoleProgrammer,
	GymRoleCoach,
	GymRoleAthlete,
}

// eligiblePermissions lists what a gym admin may grant to each role.
var eligiblePermissions = map[GymRole][]Permission{
	GymRoleOwner:      validPermissions,
	GymRoleProgrammer: {PermissionWODWrite, PermissionScoreVerify},
	GymRoleCoach:      {PermissionScoreVerify, PermissionManageMemberships},
	GymRoleAthlete:    {},
}

// String implements fmt.Stringer.
func (r GymRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known GymRole.
func (r GymRole) IsValid() bool {
	for _, candidate := range validGymRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// EligiblePermissions returns the grants a role may hold. Unknown roles get none.
func (r GymRole) EligiblePermissions() PermissionSet {
	return NewPermissionSet(eligiblePermissions[r]...)
}

// ParseGymRole converts raw input into a GymRole.
func ParseGymRole(value string) (GymRole, error) {
	for _, candidate := range validGymRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gym role %q", value)
}
