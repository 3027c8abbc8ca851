package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/platform/requestctx"
)

// KeyFunc derives the counter key for a request.
type KeyFunc func(r *http.Request) string

// ByIdentityOrIP keys authenticated callers by uid and anonymous callers by client address.
// trustedProxies is the number of proxies in front of the service that append to
// X-Forwarded-For; the client address is the entry the outermost of them added. Zero ignores the
// header and keys by the connection's remote address.
func ByIdentityOrIP(scope string, trustedProxies int) KeyFunc {
	return func(r *http.Request) string {
		if identity, ok := auth.IdentityFromContext(r.Context()); ok && identity != nil && identity.UID != "" {
			return scope + ":uid:" + identity.UID
		}
		return scope + ":ip:" + clientIP(r, trustedProxies)
	}
}

// MiddlewareOption customises Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	now      func() time.Time
	onReject func(r *http.Request)
}

// WithClock overrides the clock used for Retry-After.
func WithClock(now func() time.Time) MiddlewareOption {
	return func(cfg *middlewareConfig) {
		if now != nil {
			cfg.now = now
		}
	}
}

// WithRejectHook is called for every throttled request.
func WithRejectHook(fn func(r *http.Request)) MiddlewareOption {
	return func(cfg *middlewareConfig) { cfg.onReject = fn }
}

// Middleware throttles requests to limit per window per key. Store failures let the request
// through and log a warning.
func Middleware(store Store, limit int, window time.Duration, keyFn KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := middlewareConfig{now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if keyFn == nil {
		keyFn = ByIdentityOrIP("default", 0)
	}

	return func(next http.Handler) http.Handler {
		if store == nil || limit <= 0 || window <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			decision, err := store.CheckAndIncrement(ctx, keyFn(r), limit, window)
			if err != nil {
				requestctx.Logger(ctx).Warn("rate limit store unavailable; allowing request", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))

			if !decision.Allowed {
				retry := decision.RetryAfter(cfg.now())
				w.Header().Set("Retry-After", strconv.Itoa(int(retry/time.Second)))
				if cfg.onReject != nil {
					cfg.onReject(r)
				}
				httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests).
					WithDetails(map[string]any{"retry_after_seconds": int(retry / time.Second)}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request, trustedProxies int) string {
	if trustedProxies > 0 {
		var hops []string
		for _, value := range r.Header.Values("X-Forwarded-For") {
			for _, hop := range strings.Split(value, ",") {
				hops = append(hops, strings.TrimSpace(hop))
			}
		}
		if len(hops) >= trustedProxies {
			if ip := net.ParseIP(hops[len(hops)-trustedProxies]); ip != nil {
				return ip.String()
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
