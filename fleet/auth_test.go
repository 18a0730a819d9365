package fleet_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/fleet"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/jrsteele09/fleet-console/session/storefake"
)

func authBackend(t *testing.T) (*httptest.Server, chan string) {
	t.Helper()
	logouts := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds session.Credentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if creds.Password != "correct-horse" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(session.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1", Username: creds.Username, ExpiresIn: 900})
	})
	mux.HandleFunc("POST /api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(session.Tokens{AccessToken: "access-2", ExpiresIn: 900})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logouts <- r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, logouts
}

func TestAuthAPI_SessionRoundTrip(t *testing.T) {
	srv, logouts := authBackend(t)

	var redirects []string
	mgr := session.NewManager(storefake.NewFakeStorage(), session.WithNavigator(session.NavigatorFunc(func(loc string) {
		redirects = append(redirects, loc)
	})))
	client := apiclient.New(srv.URL+"/api", apiclient.WithSession(mgr))
	mgr.BindAuthenticator(fleet.NewAuthAPI(client))
	mgr.Hydrate()
	ctx := context.Background()

	_, err := mgr.Login(ctx, session.Credentials{Username: "dispatcher", Password: "wrong-horse"})
	require.True(t, apiclient.IsKind(err, apiclient.Unauthorized))
	require.Equal(t, "Invalid username or password.", apiclient.UserMessage(err))
	require.Empty(t, redirects)

	s, err := mgr.Login(ctx, session.Credentials{Username: "dispatcher", Password: "correct-horse"})
	require.NoError(t, err)
	require.Equal(t, "access-1", s.AccessToken)
	require.Equal(t, "dispatcher", s.Username)

	require.NoError(t, mgr.Refresh(ctx))
	s = mgr.Snapshot()
	require.Equal(t, "access-2", s.AccessToken)
	require.Equal(t, "refresh-1", s.RefreshToken)

	mgr.Logout(ctx)
	require.Equal(t, "Bearer access-2", <-logouts)
	require.Equal(t, session.StateUnauthenticated, mgr.State())
}
