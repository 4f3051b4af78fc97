package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/northwind-commerce/cart-service/internal/domain"
	"github.com/northwind-commerce/cart-service/internal/port"
)

type contextKey int

const sessionKey contextKey = iota

// SessionMiddleware resolves the bearer token into a session and
// stores it in the request context. Requests without a valid session
// are rejected with 401 before reaching any handler.
func SessionMiddleware(resolver port.SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
				return
			}

			session, err := resolver.Session(r.Context(), token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func sessionFromContext(ctx context.Context) (domain.Session, bool) {
	session, ok := ctx.Value(sessionKey).(domain.Session)
	return session, ok
}

// WithSession injects a session directly, for tests that bypass the
// token resolver.
func WithSession(ctx context.Context, session domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}
