package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/guard"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/jrsteele09/fleet-console/session/storefake"
)

func authenticatedStorage() *storefake.FakeStorage {
	return storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken: "access",
		session.KeyUsername:    "dispatcher",
	})
}

func TestCheck_BlocksUntilHydrated(t *testing.T) {
	mgr := session.NewManager(authenticatedStorage())
	g := guard.New(mgr)

	decisions := make(chan guard.Decision, 1)
	go func() {
		decisions <- g.Check(context.Background(), "/routes")
	}()

	select {
	case d := <-decisions:
		t.Fatalf("decided %v before hydration", d.Action)
	case <-time.After(30 * time.Millisecond):
	}

	mgr.Hydrate()
	select {
	case d := <-decisions:
		require.Equal(t, guard.Render, d.Action)
	case <-time.After(time.Second):
		t.Fatal("guard did not resume after hydration")
	}
}

func TestCheck_PendingWhenContextEnds(t *testing.T) {
	g := guard.New(session.NewManager(storefake.NewFakeStorage()))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Equal(t, guard.Pending, g.Check(ctx, "/routes").Action)
}

func TestCheck_RedirectsUnauthenticatedWithNext(t *testing.T) {
	mgr := session.NewManager(storefake.NewFakeStorage())
	mgr.Hydrate()
	g := guard.New(mgr)

	d := g.Check(context.Background(), "/routes/r1?tab=cargo")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/login?next=%2Froutes%2Fr1%3Ftab%3Dcargo", d.Location)

	require.Equal(t, "/login", g.LoginURL("https://evil.example.com"))
	require.Equal(t, "/login", g.LoginURL("//evil.example.com"))
	require.Equal(t, "/login", g.LoginURL("/login?reason=session_expired"))
}

func TestCheck_FollowsLogout(t *testing.T) {
	mgr := session.NewManager(authenticatedStorage())
	mgr.Hydrate()
	g := guard.New(mgr, guard.WithLoginPath("/signin"))
	require.Equal(t, guard.Render, g.Check(context.Background(), "/drivers").Action)

	mgr.Logout(context.Background())
	d := g.Check(context.Background(), "/drivers")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/signin?next=%2Fdrivers", d.Location)
}

func TestCheck_KeepsSessionExpiredReason(t *testing.T) {
	mgr := session.NewManager(authenticatedStorage())
	mgr.Hydrate()
	g := guard.New(mgr)

	mgr.OnUnauthorized()
	d := g.Check(context.Background(), "/api/routes")
	require.Equal(t, guard.Redirect, d.Action)
	require.Equal(t, "/login?next=%2Fapi%2Froutes&reason=session_expired", d.Location)
	require.Equal(t, "/login?reason=session_expired", g.LoginURL("https://evil.example.com"))

	mgr.Logout(context.Background())
	require.Equal(t, "/login?next=%2Fapi%2Froutes", g.Check(context.Background(), "/api/routes").Location)
}

func TestMiddleware(t *testing.T) {
	mgr := session.NewManager(storefake.NewFakeStorage())
	mgr.Hydrate()
	handler := guard.New(mgr).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/routes", nil))
	require.Equal(t, http.StatusFound, rec.Code)
	require.Equal(t, "/login?next=%2Fapi%2Froutes", rec.Header().Get("Location"))
}

func TestWatch_ReportsTransitions(t *testing.T) {
	mgr := session.NewManager(authenticatedStorage())
	g := guard.New(mgr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seen := make(chan session.State, 8)
	go g.Watch(ctx, func(s session.State) { seen <- s })

	require.Equal(t, session.StateUnknown, <-seen)
	mgr.Hydrate()
	require.Equal(t, session.StateAuthenticated, <-seen)
	mgr.OnUnauthorized()
	require.Equal(t, session.StateUnauthenticated, <-seen)
}
