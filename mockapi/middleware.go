package mockapi

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"github.com/jrsteele09/fleet-console/token"
)

type contextKey string

const contextKeyToken contextKey = "token"

// RequireAuth validates the bearer access token and rejects revoked or
// expired ones with 401.
func (s *Server) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeMessage(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		info, err := s.tokens.Introspection(raw)
		if err != nil || !info.Active {
			writeMessage(w, http.StatusUnauthorized, "token expired or revoked")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), contextKeyToken, info)))
	}
}

func tokenFromContext(ctx context.Context) *token.TokenIntrospection {
	info, _ := ctx.Value(contextKeyToken).(*token.TokenIntrospection)
	return info
}

// loginLimiter throttles login attempts per username.
type loginLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newLoginLimiter(limit rate.Limit, burst int) *loginLimiter {
	if burst < 1 {
		burst = 1
	}
	return &loginLimiter{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (l *loginLimiter) Allow(username string) bool {
	key := strings.ToLower(username)
	l.mu.Lock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
