package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/token"
	tokenfakerepo "github.com/jrsteele09/fleet-console/token/repofake"
	"github.com/jrsteele09/fleet-console/users"
	fakeuserrepo "github.com/jrsteele09/fleet-console/users/repofake"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func setup(t *testing.T) (*token.Manager, *users.User, users.UserRepo, *clock) {
	t.Helper()
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	userRepo := fakeuserrepo.NewFakeUserRepo()
	user, err := users.NewUser("dispatch", "Dispatch Desk", "correct-horse")
	require.NoError(t, err)
	require.NoError(t, userRepo.Upsert(user))

	m := token.New(tokenfakerepo.NewFakeTokensRepo(), userRepo, token.NewHMACSigner("test-secret"),
		token.WithTokenExpiry(time.Minute, time.Hour),
		token.WithNowFunc(c.Now),
	)
	return m, user, userRepo, c
}

func TestIssue_AccessTokenIntrospectsActive(t *testing.T) {
	m, user, _, _ := setup(t)

	resp, err := m.Issue(user)
	require.NoError(t, err)
	require.Equal(t, 60, resp.ExpiresIn)
	require.Equal(t, "dispatch", resp.Username)
	require.NotEmpty(t, resp.RefreshToken)

	info, err := m.Introspection(resp.AccessToken)
	require.NoError(t, err)
	require.True(t, info.Active)
	require.Equal(t, user.ID, info.Sub)
	require.Equal(t, "dispatch", info.Username)
}

func TestIntrospection_ExpiredToken(t *testing.T) {
	m, user, _, c := setup(t)
	resp, err := m.Issue(user)
	require.NoError(t, err)

	c.now = c.now.Add(2 * time.Minute)

	info, err := m.Introspection(resp.AccessToken)
	require.ErrorIs(t, err, token.ErrInvalidToken)
	require.False(t, info.Active)
}

func TestIntrospection_RejectsOtherSigner(t *testing.T) {
	m, user, userRepo, c := setup(t)
	other := token.New(tokenfakerepo.NewFakeTokensRepo(), userRepo, token.NewHMACSigner("other-secret"), token.WithNowFunc(c.Now))
	forged, err := other.CreateAccessToken(user)
	require.NoError(t, err)

	info, err := m.Introspection(forged)
	require.Error(t, err)
	require.False(t, info.Active)
}

func TestRevokeAccessToken(t *testing.T) {
	m, user, _, _ := setup(t)
	resp, err := m.Issue(user)
	require.NoError(t, err)

	require.NoError(t, m.RevokeAccessToken(resp.AccessToken))

	info, err := m.Introspection(resp.AccessToken)
	require.NoError(t, err)
	require.False(t, info.Active)
	require.Equal(t, 1, m.RevokedCount())
}

func TestCleanupRevokedTokens_DropsExpired(t *testing.T) {
	m, user, _, c := setup(t)
	resp, err := m.Issue(user)
	require.NoError(t, err)
	require.NoError(t, m.RevokeAccessToken(resp.AccessToken))

	require.Equal(t, 0, m.CleanupRevokedTokens())
	c.now = c.now.Add(2 * time.Minute)
	require.Equal(t, 1, m.CleanupRevokedTokens())
	require.Equal(t, 0, m.RevokedCount())
}

func TestRevokedTokenCache_ForgetsOldestPastCapacity(t *testing.T) {
	cache := token.NewRevokedTokenCache(2)
	exp := time.Now().Add(time.Hour)
	require.NoError(t, cache.Add("a", exp))
	require.NoError(t, cache.Add("b", exp))
	require.NoError(t, cache.Add("c", exp))

	require.False(t, cache.IsRevoked("a"))
	require.True(t, cache.IsRevoked("c"))
	require.Equal(t, 2, cache.Len())
}

func TestRefresh_RotatesRefreshToken(t *testing.T) {
	m, user, _, _ := setup(t)
	first, err := m.Issue(user)
	require.NoError(t, err)

	second, err := m.Refresh(first.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, first.RefreshToken, second.RefreshToken)

	_, err = m.Refresh(first.RefreshToken)
	require.ErrorIs(t, err, token.ErrInvalidRefreshToken)
}

func TestRefresh_Expired(t *testing.T) {
	m, user, _, c := setup(t)
	resp, err := m.Issue(user)
	require.NoError(t, err)

	c.now = c.now.Add(2 * time.Hour)

	_, err = m.Refresh(resp.RefreshToken)
	require.ErrorIs(t, err, token.ErrRefreshTokenExpired)
}

func TestRefresh_BlockedUser(t *testing.T) {
	m, user, userRepo, _ := setup(t)
	resp, err := m.Issue(user)
	require.NoError(t, err)
	require.NoError(t, userRepo.SetBlocked("DISPATCH", true))

	_, err = m.Refresh(resp.RefreshToken)
	require.ErrorIs(t, err, token.ErrUserBlocked)
}

func TestHMACSigner_StampsKeyID(t *testing.T) {
	signer := token.NewHMACSigner("test-secret")
	require.NotEqual(t, signer.KeyID(), token.NewHMACSigner("other-secret").KeyID())

	raw, err := signer.Sign(jwt.MapClaims{"sub": "user-1"})
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	require.NoError(t, err)
	require.Equal(t, signer.KeyID(), parsed.Header["kid"])
}
