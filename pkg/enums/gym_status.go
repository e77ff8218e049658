package enums

import "fmt"

// GymStatus captures the approval lifecycle of a gym.
type GymStatus string

const (
	GymStatusPendingApproval GymStatus = "PENDING_APPROVAL"
	GymStatusActive          GymStatus = "ACTIVE"
	GymStatusRejected        GymStatus = "REJECTED"
	GymStatusSuspended       GymStatus = "SUSPENDED"
)

var validGymStatuses = []GymStatus{
	GymStatusPendingApproval,
	GymStatusActive,
	GymStatusRejected,
	GymStatusSuspended,
}

// REJECTED has no outgoing edges.
var gymStatusTransitions = map[GymStatus]map[GymStatus]struct{}{
	GymStatusPendingApproval: {
		GymStatusActive:   {},
		GymStatusRejected: {},
	},
	GymStatusActive: {
		GymStatusSuspended: {},
	},
	GymStatusSuspended: {
		GymStatusActive: {},
	},
}

// String implements fmt.Stringer.
func (s GymStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known GymStatus.
func (s GymStatus) IsValid() bool {
	for _, candidate := range validGymStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransition reports whether the lifecycle permits moving from s to next.
func (s GymStatus) CanTransition(next GymStatus) bool {
	targets, ok := gymStatusTransitions[s]
	if !ok {
		return false
	}
	_, ok = targets[next]
	return ok
}

// IsTerminal reports whether no transition leaves s.
func (s GymStatus) IsTerminal() bool {
	return len(gymStatusTransitions[s]) == 0
}

// ParseGymStatus converts raw input into a GymStatus.
func ParseGymStatus(value string) (GymStatus, error) {
	for _, candidate := range validGymStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid gym status %q", value)
}
