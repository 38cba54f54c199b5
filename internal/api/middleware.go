package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"bandspace/internal/metrics"
	"bandspace/pkg/token"
)

// RevocationChecker reports whether a token id was revoked by logout.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RequireSession verifies the bearer access token and attaches the caller's
// Session to the request context.
//
// Expected header:
// - Authorization: Bearer <JWT>
func RequireSession(secret string, revoked RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing access token")
				return
			}

			v, err := token.Verify(strings.TrimSpace(authz[7:]), secret, time.Now())
			if err != nil {
				WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid access token")
				return
			}

			if revoked != nil {
				gone, err := revoked.IsRevoked(r.Context(), v.TokenID)
				if err != nil {
					// Fail open: the revocation list is an optimisation over short token TTLs.
					zerolog.Ctx(r.Context()).Warn().Err(err).Msg("revocation lookup failed")
				}
				if gone {
					WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "session ended")
					return
				}
			}

			s := &Session{UserID: v.UserID, Email: v.Email, TokenID: v.TokenID, ExpiresAt: v.ExpiresAt}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), s)))
		})
	}
}

// RequestLogger attaches log to every request context and writes one access
// log line per request. It also feeds the HTTP latency histogram.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			l := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(l.WithContext(r.Context()))

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				route = rc.RoutePattern()
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)
			metrics.ObserveHTTP(route, r.Method, status, elapsed)

			evt := l.Info()
			if status >= http.StatusInternalServerError {
				evt = l.Error()
			}
			evt.Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("http request")
		})
	}
}
