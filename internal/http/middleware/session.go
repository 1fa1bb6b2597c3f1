package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/fairwaylabs/clubhouse/internal/http/response"
	"github.com/fairwaylabs/clubhouse/pkg/auth"
	"github.com/fairwaylabs/clubhouse/pkg/logger"
)

type ctxKey string

const CtxClaims ctxKey = "claims"

// RequireSession admits requests carrying a valid member session JWT.
// The claims (member id plus the member store's own token) land in the
// request context; there is no process-wide session state.
func RequireSession(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(r, secret)
			if !ok {
				response.Unauthorized(w, "missing or expired session, please log in")
				return
			}
			if claims.Role != "member" {
				response.Forbidden(w, "member session required")
				return
			}
			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			ctx = context.WithValue(ctx, logger.MemberIDKey, claims.MemberID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGuestSession admits short-lived guest tokens from the access
// code flow.
func RequireGuestSession(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := parseBearer(r, secret)
			if !ok || claims.Role != "guest" {
				response.Unauthorized(w, "guest session required")
				return
			}
			ctx := context.WithValue(r.Context(), CtxClaims, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseBearer(r *http.Request, secret string) (*auth.Claims, bool) {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return nil, false
	}
	claims, err := auth.Parse(strings.TrimPrefix(authz, "Bearer "), secret)
	if err != nil {
		return nil, false
	}
	return claims, true
}

// Claims returns the session claims stored by the middleware.
func Claims(r *http.Request) *auth.Claims {
	v := r.Context().Value(CtxClaims)
	if v == nil {
		return nil
	}
	return v.(*auth.Claims)
}
