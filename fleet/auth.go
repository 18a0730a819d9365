package fleet

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/session"
)

var _ session.Authenticator = (*AuthAPI)(nil)

// AuthAPI is the backend side of the session: credential exchange, token
// refresh and revocation.
type AuthAPI struct {
	client *apiclient.Client
}

func NewAuthAPI(client *apiclient.Client) *AuthAPI {
	return &AuthAPI{client: client}
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authContext keeps auth calls off the session: no bearer from the session
// and no session-expiry handling of their 401s.
func authContext(ctx context.Context) context.Context {
	return apiclient.WithoutUnauthorizedHook(apiclient.WithoutAuth(ctx))
}

func (a *AuthAPI) Login(ctx context.Context, creds session.Credentials) (*session.Tokens, error) {
	tokens, err := apiclient.SendJSON[session.Tokens](authContext(ctx), a.client, http.MethodPost, "/auth/login", creds)
	if err != nil {
		var apiErr *apiclient.Error
		if errors.As(err, &apiErr) && apiErr.Kind == apiclient.Unauthorized {
			apiErr.UserText = "Invalid username or password."
		}
		return nil, err
	}
	return &tokens, nil
}

func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	tokens, err := apiclient.SendJSON[session.Tokens](authContext(ctx), a.client, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, err
	}
	return &tokens, nil
}

func (a *AuthAPI) Logout(ctx context.Context, accessToken, refreshToken string) error {
	ctx = apiclient.WithBearer(authContext(ctx), accessToken)
	_, err := a.client.Post(ctx, "/auth/logout", refreshRequest{RefreshToken: refreshToken})
	return err
}
