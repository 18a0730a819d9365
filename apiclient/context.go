package apiclient

import "context"

type ctxKey int

const (
	skipAuthKey ctxKey = iota
	skipUnauthorizedKey
	bearerKey
)

// WithoutAuth marks a request that must not carry the bearer header, such as
// login or the token refresh itself.
func WithoutAuth(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipAuthKey, true)
}

// WithoutUnauthorizedHook marks a request whose 401 is an ordinary answer
// (bad credentials, expired refresh token) rather than a session expiry.
func WithoutUnauthorizedHook(ctx context.Context) context.Context {
	return context.WithValue(ctx, skipUnauthorizedKey, true)
}

func authSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipAuthKey).(bool)
	return v
}

func unauthorizedHookSkipped(ctx context.Context) bool {
	v, _ := ctx.Value(skipUnauthorizedKey).(bool)
	return v
}

// WithBearer pins the bearer token for one request instead of asking the
// session, e.g. to revoke a token the session has already dropped.
func WithBearer(ctx context.Context, accessToken string) context.Context {
	return context.WithValue(ctx, bearerKey, accessToken)
}

func pinnedBearer(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(bearerKey).(string)
	return v, ok && v != ""
}
