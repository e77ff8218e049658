package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/boxlink-backend/api/responses"
	pkgerrors "github.com/angelmondragon/boxlink-backend/pkg/errors"
	"github.com/angelmondragon/boxlink-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/boxlink-backend/pkg/redis"
)

const (
	IdempotencyKeyHeader      = "Idempotency-Key"
	IdempotentReplayedHeader  = "Idempotent-Replayed"
	maxIdempotencyKeyLen      = 255
	maxIdempotentBodyBytes    = 1 << 20
	defaultIdempotencyTTL     = 24 * time.Hour
	gymStatusIdempotencyTTL   = 7 * 24 * time.Hour
	idempotencyLeaseTTL       = 2 * time.Minute
	idempotencyStateRunning   = "running"
	idempotencyStateCompleted = "completed"
)

// idempotentRoutes maps "METHOD pattern" to how long a completed response is
// replayable. Patterns are chi route patterns with any trailing slash removed.
var idempotentRoutes = map[string]time.Duration{
	http.MethodPost + " /api/v1/auth/register":             defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/gyms":                      defaultIdempotencyTTL,
	http.MethodPost + " /api/v1/gyms/{gymId}/join":         defaultIdempotencyTTL,
	http.MethodPost + " /api/admin/v1/gyms/{gymId}/status": gymStatusIdempotencyTTL,
}

type idempotencyRecord struct {
	State       string `json:"state"`
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes the mutating routes in idempotentRoutes safe to retry.
// The first request with a given Idempotency-Key reserves it, runs, and stores
// its response; later requests with the same key and body get that response
// replayed. A different body, or a retry while the first is still running, is
// IDEMPOTENCY_KEY_REUSED. Server errors release the key so the client can retry;
// a reservation whose handler never finishes lapses after idempotencyLeaseTTL.
//
// Keys are scoped to the authenticated user, or to the client address
// (resolved through trustedHops proxies) on anonymous routes.
func Idempotency(store pkgredis.IdempotencyStore, trustedHops int, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			pattern := routePattern(r)
			ttl, ok := routeTTL(r.Method, pattern)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))
			switch {
			case clientKey == "":
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			case len(clientKey) > maxIdempotencyKeyLen:
				responses.WriteError(ctx, logg, w, pkgerrors.Newf(pkgerrors.CodeValidation, "Idempotency-Key must be at most %d characters", maxIdempotencyKeyLen))
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxIdempotentBodyBytes))
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			fingerprint := requestFingerprint(r.Method, pattern, body)
			storeKey := store.IdempotencyKey(idempotencyScope(r, trustedHops), clientKey)

			reserved, err := store.SetNX(ctx, storeKey, encodeRecord(idempotencyRecord{State: idempotencyStateRunning, Fingerprint: fingerprint}), idempotencyLeaseTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
				return
			}
			if !reserved {
				replayOrReject(ctx, logg, w, store, storeKey, fingerprint)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			status := capture.statusCode()
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, storeKey); err != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			done := idempotencyRecord{
				State:       idempotencyStateCompleted,
				Fingerprint: fingerprint,
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			}
			if err := store.Set(ctx, storeKey, encodeRecord(done), ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

func replayOrReject(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, store pkgredis.IdempotencyStore, storeKey, fingerprint string) {
	raw, err := store.Get(ctx, storeKey)
	if err != nil && !errors.Is(err, redis.Nil) {
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	var record idempotencyRecord
	if raw == "" || json.Unmarshal([]byte(raw), &record) != nil {
		// Expired or released between SetNX and Get; the client should retry.
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key is being released, retry").
			WithDetails(map[string]string{"state": "released"}))
		return
	}
	switch {
	case record.Fingerprint != fingerprint:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
	case record.State != idempotencyStateCompleted:
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress").
			WithDetails(map[string]string{"state": record.State}))
	default:
		if record.ContentType != "" {
			w.Header().Set("Content-Type", record.ContentType)
		}
		w.Header().Set(IdempotentReplayedHeader, "true")
		w.WriteHeader(record.Status)
		_, _ = w.Write(record.Body)
	}
}

func idempotencyScope(r *http.Request, trustedHops int) string {
	principal := UserIDFromContext(r.Context())
	if principal == "" {
		principal = "ip:" + clientIP(r, trustedHops)
	}
	return principal + "|" + r.Method + "|" + r.URL.Path
}

func encodeRecord(record idempotencyRecord) string {
	payload, _ := json.Marshal(record)
	return string(payload)
}

func requestFingerprint(method, pattern string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + pattern + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	ttl, ok := idempotentRoutes[method+" "+pattern]
	return ttl, ok
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
