// Package guard decides whether a protected view may render for the current
// session state.
package guard

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/session"
)

type Action int

const (
	// Pending means the session is still hydrating; show a neutral loading view.
	Pending Action = iota
	Render
	Redirect
)

func (a Action) String() string {
	switch a {
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	default:
		return "pending"
	}
}

type Decision struct {
	Action   Action
	Location string // set for Redirect
}

// SessionSource is the part of session.Manager the guard reads.
type SessionSource interface {
	State() session.State
	EndReason() string
	Initialized() <-chan struct{}
	Subscribe() (<-chan session.State, func())
}

var _ SessionSource = (*session.Manager)(nil)

type Option func(*Guard)

func WithLoginPath(path string) Option {
	return func(g *Guard) {
		if path != "" {
			g.loginPath = path
		}
	}
}

type Guard struct {
	source    SessionSource
	loginPath string
}

func New(source SessionSource, opts ...Option) *Guard {
	g := &Guard{source: source, loginPath: session.DefaultLoginPath}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check waits for hydration while the state is unknown, then renders for an
// authenticated session or redirects to the login page with the original
// location preserved.
func (g *Guard) Check(ctx context.Context, location string) Decision {
	state := g.source.State()
	if state == session.StateUnknown {
		select {
		case <-g.source.Initialized():
			state = g.source.State()
		case <-ctx.Done():
			return Decision{Action: Pending}
		}
	}

	switch state {
	case session.StateAuthenticated:
		return Decision{Action: Render}
	case session.StateUnauthenticated:
		return Decision{Action: Redirect, Location: g.LoginURL(location)}
	default:
		return Decision{Action: Pending}
	}
}

// LoginURL is the login entry point with next set to location and reason set
// to why the last session ended. A next that is not a local path is dropped.
func (g *Guard) LoginURL(location string) string {
	q := url.Values{}
	if isLocalPath(location) && !strings.HasPrefix(location, g.loginPath) {
		q.Set("next", location)
	}
	if reason := g.source.EndReason(); reason != "" {
		q.Set("reason", reason)
	}
	if len(q) == 0 {
		return g.loginPath
	}
	return g.loginPath + "?" + q.Encode()
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// Middleware protects next. Pending requests get 503 so clients retry.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := g.Check(r.Context(), r.URL.RequestURI())
		switch decision.Action {
		case Render:
			next.ServeHTTP(w, r)
		case Redirect:
			http.Redirect(w, r, decision.Location, http.StatusFound)
		default:
			w.Header().Set("Retry-After", "1")
			http.Error(w, "session initialising", http.StatusServiceUnavailable)
		}
	})
}

// Watch calls onChange for every session state change until ctx ends.
func (g *Guard) Watch(ctx context.Context, onChange func(session.State)) {
	states, cancel := g.source.Subscribe()
	defer cancel()

	last := session.State(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-states:
			if !ok {
				return
			}
			if state == last {
				continue
			}
			last = state
			log.Debug().Str("state", state.String()).Msg("guard observed session state")
			onChange(state)
		}
	}
}
