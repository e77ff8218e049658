package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/boxlink-backend/api/responses"
	"github.com/angelmondragon/boxlink-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
)

// Credential bodies are tiny; anything larger is not worth buffering to find an email.
const maxThrottleBodyBytes = 64 << 10

// AttemptCounter is the fixed-window counter backing the auth throttle.
type AttemptCounter interface {
	ThrottleKey(parts ...string) string
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// AuthThrottle limits attempts against one credential surface (login, register)
// per client address and per normalized email within a fixed window.
type AuthThrottle struct {
	Surface  string
	Window   time.Duration
	PerIP    int
	PerEmail int

	// TrustedHops is how many reverse proxies in front of the API append to
	// X-Forwarded-For. Zero means the peer address is the client.
	TrustedHops int
}

// LoginThrottle returns the throttle for POST /auth/login.
func LoginThrottle(cfg config.AuthRateLimitConfig) AuthThrottle {
	return AuthThrottle{
		Surface:     "login",
		Window:      cfg.LoginWindow,
		PerIP:       cfg.LoginIPLimit,
		PerEmail:    cfg.LoginEmailLimit,
		TrustedHops: cfg.TrustedProxyHops,
	}
}

// RegisterThrottle returns the throttle for POST /auth/register.
func RegisterThrottle(cfg config.AuthRateLimitConfig) AuthThrottle {
	return AuthThrottle{
		Surface:     "register",
		Window:      cfg.RegisterWindow,
		PerIP:       cfg.RegisterIPLimit,
		PerEmail:    cfg.RegisterEmailLimit,
		TrustedHops: cfg.TrustedProxyHops,
	}
}

func (t AuthThrottle) active() bool {
	return t.Window > 0 && (t.PerIP > 0 || t.PerEmail > 0)
}

func (t AuthThrottle) surface() string {
	s := strings.ToLower(strings.TrimSpace(t.Surface))
	if s == "" {
		return "auth"
	}
	return s
}

type throttleHit struct {
	dimension string
	value     string
	limit     int
	count     int64
}

// ThrottleAuth rejects requests with RATE_LIMIT_EXCEEDED once either counter of
// the throttle exceeds its limit. Counter failures surface as DEPENDENCY_ERROR.
func ThrottleAuth(t AuthThrottle, counter AttemptCounter, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !t.active() || counter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if t.PerIP > 0 {
				if ip := clientIP(r, t.TrustedHops); ip != "" {
					hit, err := t.count(ctx, counter, "ip", ip, t.PerIP)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auth throttle unavailable"))
						return
					}
					if hit != nil {
						t.reject(ctx, logg, w, *hit)
						return
					}
				}
			}

			if t.PerEmail > 0 {
				email, err := peekEmail(r)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
					return
				}
				if email != "" {
					hit, err := t.count(ctx, counter, "email", fingerprint(email), t.PerEmail)
					if err != nil {
						responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "auth throttle unavailable"))
						return
					}
					if hit != nil {
						t.reject(ctx, logg, w, *hit)
						return
					}
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// count returns a non-nil hit when the attempt pushed the counter over limit.
func (t AuthThrottle) count(ctx context.Context, counter AttemptCounter, dimension, value string, limit int) (*throttleHit, error) {
	n, err := counter.IncrWithTTL(ctx, counter.ThrottleKey("auth", t.surface(), dimension, value), t.Window)
	if err != nil {
		return nil, err
	}
	if n <= int64(limit) {
		return nil, nil
	}
	return &throttleHit{dimension: dimension, value: value, limit: limit, count: n}, nil
}

func (t AuthThrottle) reject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, hit throttleHit) {
	retryAfter := int(t.Window / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(hit.limit))

	if logg != nil {
		logCtx := logg.WithFields(ctx, map[string]any{
			"surface":   t.surface(),
			"dimension": hit.dimension,
			"subject":   hit.value,
			"attempts":  hit.count,
			"limit":     hit.limit,
		})
		logg.Warn(logCtx, "auth.throttled")
	}
	// Logged above at warn; pass nil so WriteError does not log it twice.
	responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "too many attempts, try again later").
		WithDetails(map[string]any{"retry_after_seconds": retryAfter}))
}

// peekEmail reads the email field from a JSON credential body and restores
// the body for the downstream handler.
func peekEmail(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	body := r.Body
	raw, err := io.ReadAll(io.LimitReader(body, maxThrottleBodyBytes+1))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), body), body}
	if len(raw) > maxThrottleBodyBytes {
		return "", nil
	}

	var creds struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &creds) != nil {
		return "", nil
	}
	return strings.ToLower(strings.TrimSpace(creds.Email)), nil
}

// fingerprint keeps raw emails out of redis keys and logs.
func fingerprint(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:12])
}

// clientIP returns the address the throttle counts. With no trusted proxies
// it is the peer address and forwarding headers are ignored. With n trusted
// proxies it is the n-th X-Forwarded-For entry from the right, the hop written
// by the outermost proxy; entries left of it are client-controlled.
func clientIP(r *http.Request, trustedHops int) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(peer); err == nil {
		peer = host
	}
	if trustedHops <= 0 {
		return peer
	}

	var hops []string
	for _, h := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if h = strings.TrimSpace(h); h != "" {
			hops = append(hops, h)
		}
	}
	switch {
	case len(hops) >= trustedHops:
		return hops[len(hops)-trustedHops]
	case len(hops) > 0:
		return hops[0]
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return peer
}
