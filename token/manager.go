package token

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jrsteele09/fleet-console/users"
)

var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	ErrUserBlocked         = errors.New("user is blocked")
)

// TokenResponse is the body of a successful login or refresh.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	Username     string `json:"username"`
	ExpiresIn    int    `json:"expiresIn"`
}

// TokenIntrospection describes a verified access token.
type TokenIntrospection struct {
	Active   bool   `json:"active"`
	Sub      string `json:"sub,omitempty"`
	Username string `json:"username,omitempty"`
	Jti      string `json:"jti,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Iat      int64  `json:"iat,omitempty"`
}

type Manager struct {
	signer             Signer
	issuer             string
	refreshrepo        RefreshTokenRepo
	userRepo           users.UserRepo
	revokedCache       RevokedTokenCache
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	nowFunc            func() time.Time
}

type ManagerOption func(*Manager)

func WithTokenExpiry(accessTokenExpiry time.Duration, refreshTokenExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessTokenExpiry = accessTokenExpiry
		m.refreshTokenExpiry = refreshTokenExpiry
	}
}

func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func WithIssuer(issuer string) ManagerOption {
	return func(m *Manager) {
		m.issuer = issuer
	}
}

func WithRevokedTokenCache(cache RevokedTokenCache) ManagerOption {
	return func(m *Manager) {
		m.revokedCache = cache
	}
}

func New(repo RefreshTokenRepo, userRepo users.UserRepo, signer Signer, options ...ManagerOption) *Manager {
	m := &Manager{
		refreshrepo:  repo,
		userRepo:     userRepo,
		signer:       signer,
		issuer:       "fleet-mockd",
		revokedCache: NewRevokedTokenCache(DefaultRevokedCapacity),
	}

	for _, opt := range options {
		opt(m)
	}

	if m.accessTokenExpiry == 0 {
		m.accessTokenExpiry = 15 * time.Minute
	}
	if m.refreshTokenExpiry == 0 {
		m.refreshTokenExpiry = 24 * time.Hour
	}
	if m.nowFunc == nil {
		m.nowFunc = time.Now
	}
	return m
}

func (c *Manager) AccessTokenExpiry() time.Duration {
	return c.accessTokenExpiry
}

func (c *Manager) CreateAccessToken(user *users.User) (string, error) {
	now := c.nowFunc()
	claims := jwt.MapClaims{
		"iss":  c.issuer,
		"sub":  user.ID,
		"name": user.Username,
		"iat":  now.Unix(),
		"exp":  now.Add(c.accessTokenExpiry).Unix(),
		"jti":  uuid.New().String(),
	}
	signed, err := c.signer.Sign(claims)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.CreateAccessToken] Sign")
	}
	return signed, nil
}

// CreateRefreshToken issues an opaque refresh token. A user holds at most one.
func (c *Manager) CreateRefreshToken(userID string) (string, error) {
	if existingToken, err := c.refreshrepo.GetByUserID(userID); err == nil && existingToken != nil {
		if err := c.refreshrepo.Delete(existingToken.Token); err != nil {
			return "", errors.Wrap(err, "[Manager.CreateRefreshToken] Delete")
		}
	}

	tokenBytes := make([]byte, 32) // 256 bits
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", errors.Wrap(err, "[Manager.CreateRefreshToken] rand.Read")
	}

	tokenStr := hex.EncodeToString(tokenBytes)
	if err := c.refreshrepo.Upsert(&RefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    c.nowFunc(),
	}); err != nil {
		return "", errors.Wrap(err, "[Manager.CreateRefreshToken] Upsert")
	}
	return tokenStr, nil
}

// Issue creates the access and refresh token pair handed out on login.
func (c *Manager) Issue(user *users.User) (*TokenResponse, error) {
	accessToken, err := c.CreateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, err := c.CreateRefreshToken(user.ID)
	if err != nil {
		return nil, err
	}
	return &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Username:     user.Username,
		ExpiresIn:    int(c.accessTokenExpiry.Seconds()),
	}, nil
}

// Refresh exchanges a refresh token for a new pair, rotating the refresh token.
func (c *Manager) Refresh(refreshToken string) (*TokenResponse, error) {
	rt, err := c.refreshrepo.Get(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	if c.nowFunc().Sub(rt.Iat) > c.refreshTokenExpiry {
		_ = c.refreshrepo.Delete(refreshToken)
		return nil, ErrRefreshTokenExpired
	}

	user, err := c.userRepo.GetByID(rt.UserID)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidRefreshToken, "user not found for refresh token")
	}
	if user.Blocked {
		return nil, ErrUserBlocked
	}

	return c.Issue(user)
}

func (c *Manager) InvalidateRefreshToken(refreshToken string) {
	_ = c.refreshrepo.Delete(refreshToken)
}

func (c *Manager) parse(rawToken string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(rawToken, c.signer.GetVerificationKey,
		jwt.WithValidMethods([]string{c.signer.GetSigningMethod().Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.nowFunc),
	)
	if err != nil || !token.Valid {
		return nil, errors.Wrap(ErrInvalidToken, errMessage(err))
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.Wrap(ErrInvalidToken, "error extracting claims from token")
	}
	return claims, nil
}

func errMessage(err error) string {
	if err == nil {
		return "token not valid"
	}
	return err.Error()
}

// Introspection verifies rawToken. Expired, revoked or forged tokens are
// reported inactive.
func (c *Manager) Introspection(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, nil
	}

	claims, err := c.parse(rawToken)
	if err != nil {
		return &TokenIntrospection{Active: false}, err
	}

	sub, _ := claims["sub"].(string)
	name, _ := claims["name"].(string)
	jti, _ := claims["jti"].(string)
	iat, _ := claims["iat"].(float64)
	exp, _ := claims["exp"].(float64)

	active := jti == "" || !c.revokedCache.IsRevoked(jti)
	return &TokenIntrospection{
		Active:   active,
		Sub:      sub,
		Username: name,
		Jti:      jti,
		Exp:      int64(exp),
		Iat:      int64(iat),
	}, nil
}

// RevokeAccessToken revokes an access token by its JTI
func (c *Manager) RevokeAccessToken(rawToken string) error {
	claims, err := c.parse(rawToken)
	if err != nil {
		return err
	}

	jti, ok := claims["jti"].(string)
	if !ok || jti == "" {
		return errors.New("token missing jti claim")
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return errors.New("token missing exp claim")
	}
	return c.revokedCache.Add(jti, time.Unix(int64(exp), 0))
}

// CleanupRevokedTokens drops revocations for tokens that have expired and
// returns how many were removed.
func (c *Manager) CleanupRevokedTokens() int {
	return c.revokedCache.Cleanup(c.nowFunc())
}

func (c *Manager) RevokedCount() int {
	return c.revokedCache.Len()
}
