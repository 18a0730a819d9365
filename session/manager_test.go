package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/apiclient"
	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/jrsteele09/fleet-console/session/storefake"
)

type fakeAuthenticator struct {
	mu           sync.Mutex
	loginTokens  *session.Tokens
	loginErr     error
	refreshFn    func(refreshToken string) (*session.Tokens, error)
	loginCalls   int
	refreshCalls atomic.Int32
	logouts      chan string
}

func (f *fakeAuthenticator) Login(_ context.Context, creds session.Credentials) (*session.Tokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	tokens := *f.loginTokens
	return &tokens, nil
}

func (f *fakeAuthenticator) Refresh(_ context.Context, refreshToken string) (*session.Tokens, error) {
	f.refreshCalls.Add(1)
	return f.refreshFn(refreshToken)
}

func (f *fakeAuthenticator) Logout(_ context.Context, accessToken, _ string) error {
	if f.logouts != nil {
		f.logouts <- accessToken
	}
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "dispatcher",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func TestHydrate_RejectsStringifiedNullTokens(t *testing.T) {
	for _, stored := range []string{"", "undefined", "null"} {
		t.Run(stored, func(t *testing.T) {
			storage := storefake.NewFakeStorageWith(map[string]string{
				session.KeyAccessToken: stored,
				session.KeyUsername:    "ghost",
			})
			mgr := session.NewManager(storage)

			s := mgr.Hydrate()
			require.False(t, s.IsAuthenticated)
			require.True(t, s.IsInitialized)
			require.Empty(t, s.AccessToken)
			require.Empty(t, s.Username)
			require.Equal(t, session.StateUnauthenticated, mgr.State())
			require.Empty(t, storage.Snapshot())
		})
	}
}

func TestHydrate_IsIdempotent(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken:  "token-1",
		session.KeyRefreshToken: "refresh-1",
		session.KeyUsername:     "dispatcher",
	})
	mgr := session.NewManager(storage)
	require.Equal(t, session.StateUnknown, mgr.State())

	first := mgr.Hydrate()
	require.NoError(t, storage.Set(session.KeyAccessToken, "token-2"))
	second := mgr.Hydrate()

	require.Equal(t, first, second)
	require.Equal(t, "token-1", second.AccessToken)
	require.Equal(t, "refresh-1", second.RefreshToken)

	select {
	case <-mgr.Initialized():
	default:
		t.Fatal("initialized channel not closed")
	}
}

func TestHydrate_ReadsJWTExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken: signedToken(t, exp),
	})
	s := session.NewManager(storage).Hydrate()
	require.True(t, s.IsAuthenticated)
	require.True(t, exp.Equal(s.ExpiresAt))
}

func TestLogin_PersistsAndHydratesInFreshManager(t *testing.T) {
	storage := storefake.NewFakeStorage()
	auth := &fakeAuthenticator{loginTokens: &session.Tokens{AccessToken: "access", RefreshToken: "refresh"}}
	mgr := session.NewManager(storage, session.WithAuthenticator(auth))
	mgr.Hydrate()

	s, err := mgr.Login(context.Background(), session.Credentials{Username: "dispatcher", Password: "secret-pass"})
	require.NoError(t, err)
	require.True(t, s.IsAuthenticated)
	require.Equal(t, "dispatcher", s.Username)
	require.Equal(t, session.StateAuthenticated, mgr.State())

	restored := session.NewManager(storage).Hydrate()
	require.True(t, restored.IsAuthenticated)
	require.Equal(t, "dispatcher", restored.Username)
	require.Equal(t, "access", restored.AccessToken)
	require.Equal(t, "refresh", restored.RefreshToken)
}

func TestLogin_ValidationNeverReachesBackend(t *testing.T) {
	auth := &fakeAuthenticator{loginTokens: &session.Tokens{AccessToken: "access"}}
	mgr := session.NewManager(storefake.NewFakeStorage(), session.WithAuthenticator(auth))
	mgr.Hydrate()

	_, err := mgr.Login(context.Background(), session.Credentials{Username: "", Password: "x"})
	require.True(t, apiclient.IsKind(err, apiclient.Validation))
	require.Equal(t, 0, auth.loginCalls)
	require.False(t, mgr.Snapshot().IsAuthenticated)
}

func TestLogin_FailureLeavesSessionUnchanged(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken: "existing",
		session.KeyUsername:    "dispatcher",
	})
	auth := &fakeAuthenticator{loginErr: &apiclient.Error{Kind: apiclient.Unauthorized, Status: 401, UserText: "Invalid username or password."}}
	mgr := session.NewManager(storage, session.WithAuthenticator(auth))
	before := mgr.Hydrate()

	_, err := mgr.Login(context.Background(), session.Credentials{Username: "dispatcher", Password: "wrong-pass"})
	require.Error(t, err)
	require.Equal(t, "Invalid username or password.", apiclient.UserMessage(err))
	require.Equal(t, before, mgr.Snapshot())
	require.Equal(t, "existing", storage.Snapshot()[session.KeyAccessToken])
}

func TestLogin_WithoutAuthenticator(t *testing.T) {
	mgr := session.NewManager(storefake.NewFakeStorage())
	_, err := mgr.Login(context.Background(), session.Credentials{Username: "dispatcher", Password: "secret-pass"})
	require.ErrorIs(t, err, apperrors.ErrNoAuthenticator)
}

func TestLogout_ClearsSynchronouslyAndNotifiesBackend(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken:  "access",
		session.KeyRefreshToken: "refresh",
		session.KeyUsername:     "dispatcher",
	})
	auth := &fakeAuthenticator{logouts: make(chan string, 1)}
	mgr := session.NewManager(storage, session.WithAuthenticator(auth))
	mgr.Hydrate()

	mgr.Logout(context.Background())

	s := mgr.Snapshot()
	require.False(t, s.IsAuthenticated)
	require.True(t, s.IsInitialized)
	require.Empty(t, storage.Snapshot())

	select {
	case token := <-auth.logouts:
		require.Equal(t, "access", token)
	case <-time.After(time.Second):
		t.Fatal("backend logout not called")
	}

	// Logging out twice is harmless.
	mgr.Logout(context.Background())
	require.False(t, mgr.Snapshot().IsAuthenticated)
}

func TestOnUnauthorized_ClearsAndRedirects(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken: "access",
		session.KeyUsername:    "dispatcher",
	})
	var redirected []string
	mgr := session.NewManager(storage, session.WithNavigator(session.NavigatorFunc(func(location string) {
		redirected = append(redirected, location)
	})))
	mgr.Hydrate()

	mgr.OnUnauthorized()

	require.False(t, mgr.Snapshot().IsAuthenticated)
	require.Empty(t, storage.Snapshot())
	require.Equal(t, []string{"/login?reason=session_expired"}, redirected)
	require.Equal(t, session.SessionExpiredReason, mgr.EndReason())
}

func TestOnUnauthorized_NeverPanics(t *testing.T) {
	mgr := session.NewManager(storefake.NewFakeStorage(), session.WithNavigator(session.NavigatorFunc(func(string) {
		panic("navigation failed")
	})))
	require.NotPanics(t, mgr.OnUnauthorized)
	require.Equal(t, session.StateUnauthenticated, mgr.State())
}

func TestToken_NoTokenWhenUnauthenticated(t *testing.T) {
	mgr := session.NewManager(storefake.NewFakeStorage())
	mgr.Hydrate()

	tok, err := mgr.Token()
	require.Nil(t, tok)
	require.ErrorIs(t, err, apperrors.ErrNoToken)
}

func TestToken_ProactiveRefreshRotatesPersistedTokens(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken:  signedToken(t, now.Add(10*time.Second)),
		session.KeyRefreshToken: "refresh-1",
		session.KeyUsername:     "dispatcher",
	})
	auth := &fakeAuthenticator{refreshFn: func(refreshToken string) (*session.Tokens, error) {
		require.Equal(t, "refresh-1", refreshToken)
		return &session.Tokens{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresIn: 900}, nil
	}}
	mgr := session.NewManager(storage,
		session.WithAuthenticator(auth),
		session.WithNowFunc(func() time.Time { return now }),
		session.WithRefreshLeeway(30*time.Second),
	)
	mgr.Hydrate()

	tok, err := mgr.Token()
	require.NoError(t, err)
	require.Equal(t, "access-2", tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.Equal(t, now.Add(900*time.Second), tok.Expiry)
	require.EqualValues(t, 1, auth.refreshCalls.Load())

	persisted := storage.Snapshot()
	require.Equal(t, "access-2", persisted[session.KeyAccessToken])
	require.Equal(t, "refresh-2", persisted[session.KeyRefreshToken])
	require.Equal(t, "dispatcher", persisted[session.KeyUsername])

	// Fresh token: no further refresh.
	_, err = mgr.Token()
	require.NoError(t, err)
	require.EqualValues(t, 1, auth.refreshCalls.Load())
}

func TestRefresh_UnauthorizedEndsSession(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken:  "access",
		session.KeyRefreshToken: "revoked",
	})
	var redirects atomic.Int32
	auth := &fakeAuthenticator{refreshFn: func(string) (*session.Tokens, error) {
		return nil, &apiclient.Error{Kind: apiclient.Unauthorized, Status: 401}
	}}
	mgr := session.NewManager(storage,
		session.WithAuthenticator(auth),
		session.WithNavigator(session.NavigatorFunc(func(string) { redirects.Add(1) })),
	)
	mgr.Hydrate()

	err := mgr.Refresh(context.Background())
	require.True(t, apiclient.IsKind(err, apiclient.Unauthorized))
	require.Equal(t, session.StateUnauthenticated, mgr.State())
	require.EqualValues(t, 1, redirects.Load())
}

func TestRefresh_RequiresRefreshToken(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{session.KeyAccessToken: "access"})
	mgr := session.NewManager(storage, session.WithAuthenticator(&fakeAuthenticator{}))
	mgr.Hydrate()

	require.ErrorIs(t, mgr.Refresh(context.Background()), apperrors.ErrNoRefreshToken)
}

func TestRefresh_ConcurrentCallersShareOneExchange(t *testing.T) {
	storage := storefake.NewFakeStorageWith(map[string]string{
		session.KeyAccessToken:  "access",
		session.KeyRefreshToken: "refresh",
	})
	release := make(chan struct{})
	auth := &fakeAuthenticator{refreshFn: func(string) (*session.Tokens, error) {
		<-release
		return &session.Tokens{AccessToken: "access-2"}, nil
	}}
	mgr := session.NewManager(storage, session.WithAuthenticator(auth))
	mgr.Hydrate()

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- mgr.Refresh(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return auth.refreshCalls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, auth.refreshCalls.Load())
	require.Equal(t, "refresh", mgr.Snapshot().RefreshToken)
}

func TestSubscribe_DeliversLatestState(t *testing.T) {
	storage := storefake.NewFakeStorage()
	auth := &fakeAuthenticator{loginTokens: &session.Tokens{AccessToken: "access"}}
	mgr := session.NewManager(storage, session.WithAuthenticator(auth))

	states, cancel := mgr.Subscribe()
	defer cancel()
	require.Equal(t, session.StateUnknown, <-states)

	mgr.Hydrate()
	require.Equal(t, session.StateUnauthenticated, <-states)

	_, err := mgr.Login(context.Background(), session.Credentials{Username: "dispatcher", Password: "secret-pass"})
	require.NoError(t, err)
	mgr.OnUnauthorized()
	require.Equal(t, session.StateUnauthenticated, <-states)

	mgr.Close()
	_, ok := <-states
	require.False(t, ok)
}

func TestSessionErrorsUnwrap(t *testing.T) {
	mgr := session.NewManager(storefake.NewFakeStorage(), session.WithAuthenticator(&fakeAuthenticator{
		loginErr: &apiclient.Error{Kind: apiclient.NetworkError},
	}))
	_, err := mgr.Login(context.Background(), session.Credentials{Username: "dispatcher", Password: "secret-pass"})
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr))
	require.True(t, apiErr.Retryable())
}
