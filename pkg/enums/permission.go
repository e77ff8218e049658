package enums

import (
	"fmt"
	"sort"
)

// Permission is an additive grant scoped to a single gym membership.
type Permission string

const (
	PermissionWODWrite          Permission = "WOD_WRITE"
	PermissionScoreVerify       Permission = "SCORE_VERIFY"
	PermissionManageMemberships Permission = "MANAGE_MEMBERSHIPS"
	PermissionManageSettings    Permission = "MANAGE_SETTINGS"
)

var validPermissions = []Permission{
	PermissionWODWrite,
	PermissionScoreVerify,
	PermissionManageMemberships,
	PermissionManageSettings,
}

// AllPermissions returns every known permission.
func AllPermissions() []Permission {
	out := make([]Permission, len(validPermissions))
	copy(out, validPermissions)
	return out
}

// String implements fmt.Stringer.
func (p Permission) String() string {
	return string(p)
}

// IsValid reports whether the value is a known Permission.
func (p Permission) IsValid() bool {
	for _, candidate := range validPermissions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePermission converts raw input into a Permission.
func ParsePermission(value string) (Permission, error) {
	for _, candidate := range validPermissions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid permission %q", value)
}

// PermissionSet is an unordered collection of permissions.
type PermissionSet map[Permission]struct{}

// NewPermissionSet builds a set from the given permissions.
func NewPermissionSet(perms ...Permission) PermissionSet {
	set := make(PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return set
}

// ParsePermissionSet parses raw values, rejecting unknown permissions.
func ParsePermissionSet(values []string) (PermissionSet, error) {
	set := make(PermissionSet, len(values))
	for _, raw := range values {
		p, err := ParsePermission(raw)
		if err != nil {
			return nil, err
		}
		set[p] = struct{}{}
	}
	return set, nil
}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// SubsetOf reports whether every member of s is present in other.
func (s PermissionSet) SubsetOf(other PermissionSet) bool {
	for p := range s {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// Intersect returns the permissions present in both sets.
func (s PermissionSet) Intersect(other PermissionSet) PermissionSet {
	out := make(PermissionSet)
	for p := range s {
		if other.Has(p) {
			out[p] = struct{}{}
		}
	}
	return out
}

// Slice returns the permissions sorted by name.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted raw values, suitable for text[] columns.
func (s PermissionSet) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}
