package session

import (
	"context"
	"time"
)

// Session is the authenticated identity held by the console for the current
// user. An empty token means "no token".
type Session struct {
	AccessToken     string
	RefreshToken    string
	Username        string
	ExpiresAt       time.Time // zero when the token lifetime is unknown
	IsAuthenticated bool
	IsInitialized   bool
	// EndReason says why the previous session ended, e.g. SessionExpiredReason.
	// It is empty after a login or an explicit logout.
	EndReason string
}

// State is the coarse session state consumed by the route guard.
type State int

const (
	StateUnknown State = iota // not yet hydrated
	StateAuthenticated
	StateUnauthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

func (s Session) State() State {
	switch {
	case !s.IsInitialized:
		return StateUnknown
	case s.IsAuthenticated:
		return StateAuthenticated
	default:
		return StateUnauthenticated
	}
}

// Credentials are the login form values. They are validated before anything
// is sent to the backend.
type Credentials struct {
	Username string `json:"username" validate:"required,min=3,max=128"`
	Password string `json:"password" validate:"required,min=6,max=256"`
}

// Tokens is what the backend hands back on login and refresh.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	Username     string `json:"username,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"` // seconds
}

// Authenticator talks to the backend auth endpoints.
type Authenticator interface {
	Login(ctx context.Context, creds Credentials) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// Navigator moves the user to another location, e.g. the login entry point.
type Navigator interface {
	Redirect(location string)
}

type NavigatorFunc func(location string)

func (f NavigatorFunc) Redirect(location string) { f(location) }
