package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/boxlink-backend/pkg/auth"
	"github.com/angelmondragon/boxlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/metrics"
)

// TokenValidator verifies bearer tokens without touching the store.
type TokenValidator interface {
	ValidateKind(token string, kind enums.TokenKind) (*auth.Claims, error)
}

// PermissionChecker resolves a caller's grant within a gym.
type PermissionChecker interface {
	RequirePermission(ctx context.Context, userID, gymID uuid.UUID, perm enums.Permission) error
}

// Requirement describes what a resource demands. Zero values are not checked.
type Requirement struct {
	Role       enums.GlobalRole
	GymID      uuid.UUID
	Permission enums.Permission
}

// Decision is the outcome of a single pass through the gate.
type Decision struct {
	State  State
	Path   []State
	Caller Caller
	Err    error
}

// Allowed reports whether the request reached AuthorizedForResource.
func (d Decision) Allowed() bool {
	return d.State == StateAuthorizedForResource
}

// Gate authorizes one request at a time. Failures are surfaced immediately without retries.
type Gate struct {
	tokens  TokenValidator
	perms   PermissionChecker
	metrics *metrics.AuthMetrics
}

// NewGate wires the gate dependencies. perms may be nil when no route needs gym permissions.
func NewGate(tokens TokenValidator, perms PermissionChecker, m *metrics.AuthMetrics) (*Gate, error) {
	if tokens == nil {
		return nil, fmt.Errorf("token validator required")
	}
	return &Gate{tokens: tokens, perms: perms, metrics: m}, nil
}

// Authorize runs the state machine for the raw Authorization header value.
func (g *Gate) Authorize(ctx context.Context, authorization string, req Requirement) Decision {
	m := newMachine()
	decision := g.run(ctx, m, authorization, req)
	decision.State = m.current
	decision.Path = m.path
	g.metrics.ObserveDecision(string(m.current))
	return decision
}

// Authenticate only establishes the caller identity.
func (g *Gate) Authenticate(ctx context.Context, authorization string) Decision {
	return g.Authorize(ctx, authorization, Requirement{})
}

func (g *Gate) run(ctx context.Context, m *machine, authorization string, req Requirement) Decision {
	token := BearerToken(authorization)
	if token == "" {
		return fail(m, StateTokenMissing, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
	}
	must(m.advance(StateTokenPresented))

	claims, err := g.tokens.ValidateKind(token, enums.TokenKindAccess)
	if err != nil {
		return fail(m, StateTokenInvalid, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
	}
	caller := Caller{UserID: claims.UserID(), Role: claims.Role}
	must(m.advance(StateClaimsValid))

	if req.Role != "" && caller.Role != req.Role {
		d := fail(m, StateInsufficientRole, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role"))
		d.Caller = caller
		return d
	}

	if req.Permission != "" {
		if g.perms == nil {
			d := fail(m, StateInsufficientPermission, pkgerrors.New(pkgerrors.CodeInternal, "permission checker not configured"))
			d.Caller = caller
			return d
		}
		if err := g.perms.RequirePermission(ctx, caller.UserID, req.GymID, req.Permission); err != nil {
			if pkgerrors.As(err) == nil {
				err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve permissions")
			}
			d := fail(m, StateInsufficientPermission, err)
			d.Caller = caller
			return d
		}
	}

	must(m.advance(StateAuthorizedForResource))
	return Decision{Caller: caller}
}

func fail(m *machine, state State, err error) Decision {
	must(m.advance(state))
	return Decision{Err: err}
}

// must guards the static transition table; a failure is a programming error.
func must(err error) {
	if err != nil {
		panic(err)
	}
}

// BearerToken strips an optional "Bearer " prefix from an Authorization header value.
func BearerToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.EqualFold(token, "bearer") {
		return ""
	}
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	return token
}
