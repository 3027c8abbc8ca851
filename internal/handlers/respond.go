package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/core2cover/api/internal/platform/auth"
	"github.com/core2cover/api/internal/platform/httpx"
	"github.com/core2cover/api/internal/platform/pagination"
	"github.com/core2cover/api/internal/services"
)

// RouteOption customises how a handler group wraps its routes.
type RouteOption func(*routeOptions)

type routeOptions struct {
	authenticated []func(http.Handler) http.Handler
	idempotent    func(http.Handler) http.Handler
}

// WithAuthenticatedMiddlewares appends middleware that runs after authentication, e.g. per-user
// rate limits.
func WithAuthenticatedMiddlewares(mw ...func(http.Handler) http.Handler) RouteOption {
	return func(o *routeOptions) {
		for _, m := range mw {
			if m != nil {
				o.authenticated = append(o.authenticated, m)
			}
		}
	}
}

// WithIdempotencyGuard wraps mutating endpoints that must be safe to retry.
func WithIdempotencyGuard(mw func(http.Handler) http.Handler) RouteOption {
	return func(o *routeOptions) { o.idempotent = mw }
}

func buildRouteOptions(opts []RouteOption) routeOptions {
	var o routeOptions
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o routeOptions) guard(h http.HandlerFunc) http.Handler {
	if o.idempotent == nil {
		return h
	}
	return o.idempotent(h)
}

func requireAuth(authn *auth.Authenticator, roles ...string) []func(http.Handler) http.Handler {
	if authn == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{authn.RequireFirebaseAuth(roles...)}
}

func identityUID(ctx context.Context, w http.ResponseWriter) (string, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return "", false
	}
	return strings.TrimSpace(identity.UID), true
}

func serviceActor(ctx context.Context) string {
	if identity, ok := auth.ServiceIdentityFromContext(ctx); ok {
		if identity.Email != "" {
			return "svc:" + identity.Email
		}
		if identity.Subject != "" {
			return "svc:" + identity.Subject
		}
	}
	return "svc:unknown"
}

func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, httpx.DefaultBodyLimit, dst); err != nil {
		if errors.Is(err, httpx.ErrBodyTooLarge) {
			httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body too large", http.StatusRequestEntityTooLarge))
			return false
		}
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func pageParams(ctx context.Context, w http.ResponseWriter, r *http.Request) (services.Pagination, bool) {
	params, err := pagination.FromRequest(r, pagination.Options{})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.Pagination{}, false
	}
	return services.Pagination{PageSize: params.PageSize, PageToken: params.PageToken}, true
}

func unavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_unavailable", name+" service unavailable", http.StatusServiceUnavailable))
}

func money(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
