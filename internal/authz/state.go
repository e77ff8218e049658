package authz

import "fmt"

// State is a step of the per-request authorization state machine.
type State string

const (
	StateUnauthenticated       State = "Unauthenticated"
	StateTokenPresented        State = "TokenPresented"
	StateClaimsValid           State = "ClaimsValid"
	StateAuthorizedForResource State = "AuthorizedForResource"

	StateTokenMissing           State = "TokenMissing"
	StateTokenInvalid           State = "TokenInvalid"
	StateInsufficientRole       State = "InsufficientRole"
	StateInsufficientPermission State = "InsufficientPermission"
)

var stateTransitions = map[State]map[State]struct{}{
	StateUnauthenticated: {
		StateTokenPresented: {},
		StateTokenMissing:   {},
	},
	StateTokenPresented: {
		StateClaimsValid:  {},
		StateTokenInvalid: {},
	},
	StateClaimsValid: {
		StateAuthorizedForResource:  {},
		StateInsufficientRole:       {},
		StateInsufficientPermission: {},
	},
}

// IsTerminal reports whether no transition leaves s.
func (s State) IsTerminal() bool {
	return len(stateTransitions[s]) == 0
}

// IsFailure reports whether s rejects the request.
func (s State) IsFailure() bool {
	switch s {
	case StateTokenMissing, StateTokenInvalid, StateInsufficientRole, StateInsufficientPermission:
		return true
	default:
		return false
	}
}

// machine walks the transition table once per request.
type machine struct {
	current State
	path    []State
}

func newMachine() *machine {
	return &machine{current: StateUnauthenticated, path: []State{StateUnauthenticated}}
}

func (m *machine) advance(next State) error {
	if _, ok := stateTransitions[m.current][next]; !ok {
		return fmt.Errorf("invalid gate transition %s -> %s", m.current, next)
	}
	m.current = next
	m.path = append(m.path, next)
	return nil
}
