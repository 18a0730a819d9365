package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/jrsteele09/fleet-console/apiclient"
	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const (
	DefaultLoginPath     = "/login"
	SessionExpiredReason = "session_expired"

	defaultRefreshLeeway = 30 * time.Second
	defaultLogoutTimeout = 5 * time.Second
)

type Option func(*Manager)

func WithAuthenticator(a Authenticator) Option {
	return func(m *Manager) {
		m.auth = a
	}
}

func WithNavigator(n Navigator) Option {
	return func(m *Manager) {
		m.navigator = n
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(m *Manager) {
		m.nowFunc = nowFunc
	}
}

// WithRefreshLeeway sets how long before expiry Token refreshes proactively.
func WithRefreshLeeway(d time.Duration) Option {
	return func(m *Manager) {
		m.refreshLeeway = d
	}
}

func WithLoginPath(path string) Option {
	return func(m *Manager) {
		if path != "" {
			m.loginPath = path
		}
	}
}

func WithLogoutTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.logoutTimeout = d
	}
}

// Manager owns the one Session of the process and the storage behind it.
// All reads hand out copies; every write goes through the mutex.
type Manager struct {
	mu      sync.RWMutex
	storage Storage
	session Session

	auth      Authenticator
	navigator Navigator

	nowFunc       func() time.Time
	refreshLeeway time.Duration
	loginPath     string
	logoutTimeout time.Duration

	hydrateOnce sync.Once
	initOnce    sync.Once
	initialized chan struct{}

	refreshGroup singleflight.Group

	subMu     sync.Mutex
	subs      map[int]chan State
	nextSubID int
	closed    bool
}

var _ oauth2.TokenSource = (*Manager)(nil)
var _ apiclient.SessionHook = (*Manager)(nil)

func NewManager(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:       storage,
		nowFunc:       time.Now,
		refreshLeeway: defaultRefreshLeeway,
		loginPath:     DefaultLoginPath,
		logoutTimeout: defaultLogoutTimeout,
		initialized:   make(chan struct{}),
		subs:          make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BindAuthenticator attaches the backend auth API once the API client that
// depends on this Manager exists.
func (m *Manager) BindAuthenticator(a Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth = a
}

func (m *Manager) authenticator() Authenticator {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.auth
}

// Hydrate reads the persisted tokens. It runs once per Manager; later calls
// return the current snapshot.
func (m *Manager) Hydrate() Session {
	m.hydrateOnce.Do(m.hydrate)
	return m.Snapshot()
}

func (m *Manager) hydrate() {
	access := sanitize(m.read(KeyAccessToken))
	refresh := sanitize(m.read(KeyRefreshToken))
	username := m.read(KeyUsername)

	m.mu.Lock()
	if m.session.IsInitialized {
		// A login won the race; its values are already persisted.
		m.mu.Unlock()
		m.markInitialized()
		return
	}
	if access == "" {
		m.session = Session{IsInitialized: true}
		m.deletePersisted()
	} else {
		m.session = Session{
			AccessToken:     access,
			RefreshToken:    refresh,
			Username:        username,
			IsAuthenticated: true,
			IsInitialized:   true,
		}
		if exp, ok := jwtExpiry(access); ok {
			m.session.ExpiresAt = exp
		}
	}
	state := m.session.State()
	m.mu.Unlock()

	metrics.SessionEvents.WithLabelValues("hydrate").Inc()
	log.Debug().Str("state", state.String()).Msg("session hydrated")
	m.markInitialized()
	m.publish(state)
}

func (m *Manager) read(key string) string {
	value, err := m.storage.Get(key)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Str("key", key).Msg("failed to read session storage")
		}
		return ""
	}
	return value
}

func (m *Manager) markInitialized() {
	m.initOnce.Do(func() {
		close(m.initialized)
	})
}

// Initialized is closed once the session state is known.
func (m *Manager) Initialized() <-chan struct{} {
	return m.initialized
}

// Login validates the credentials, exchanges them with the backend and
// persists the result. On failure the current session is left untouched.
func (m *Manager) Login(ctx context.Context, creds Credentials) (Session, error) {
	if err := apiclient.Validate(creds); err != nil {
		metrics.SessionEvents.WithLabelValues("login_failed").Inc()
		return Session{}, err
	}
	auth := m.authenticator()
	if auth == nil {
		return Session{}, errors.Wrap(apperrors.ErrNoAuthenticator, "[Manager.Login]")
	}

	tokens, err := auth.Login(ctx, creds)
	if err != nil {
		metrics.SessionEvents.WithLabelValues("login_failed").Inc()
		return Session{}, errors.Wrap(err, "[Manager.Login] login failed")
	}
	if tokens == nil || !usableToken(tokens.AccessToken) {
		metrics.SessionEvents.WithLabelValues("login_failed").Inc()
		return Session{}, errors.Wrap(apperrors.ErrNoToken, "[Manager.Login] backend returned no access token")
	}
	if tokens.Username == "" {
		tokens.Username = creds.Username
	}

	m.mu.Lock()
	if err := m.persist(tokens); err != nil {
		m.mu.Unlock()
		metrics.SessionEvents.WithLabelValues("login_failed").Inc()
		return Session{}, errors.Wrap(err, "[Manager.Login] persisting tokens")
	}
	m.session = Session{
		AccessToken:     tokens.AccessToken,
		RefreshToken:    sanitize(tokens.RefreshToken),
		Username:        tokens.Username,
		ExpiresAt:       m.expiryFor(tokens),
		IsAuthenticated: true,
		IsInitialized:   true,
	}
	snapshot := m.session
	m.mu.Unlock()

	metrics.SessionEvents.WithLabelValues("login").Inc()
	log.Info().Str("username", snapshot.Username).Msg("user logged in")
	m.markInitialized()
	m.publish(snapshot.State())
	return snapshot, nil
}

// persist must be called with mu held.
func (m *Manager) persist(tokens *Tokens) error {
	if err := m.storage.Set(KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if refresh := sanitize(tokens.RefreshToken); refresh != "" {
		if err := m.storage.Set(KeyRefreshToken, refresh); err != nil {
			return err
		}
	} else if err := m.storage.Delete(KeyRefreshToken); err != nil {
		return err
	}
	return m.storage.Set(KeyUsername, tokens.Username)
}

// deletePersisted must be called with mu held. Failures are logged only.
func (m *Manager) deletePersisted() {
	if err := m.storage.Delete(persistedKeys...); err != nil {
		log.Warn().Err(err).Msg("failed to clear session storage")
	}
}

// clear drops the session and storage and returns what was there before.
func (m *Manager) clear(reason string) Session {
	m.mu.Lock()
	prev := m.session
	m.deletePersisted()
	m.session = Session{IsInitialized: true, EndReason: reason}
	m.mu.Unlock()

	m.markInitialized()
	m.publish(StateUnauthenticated)
	return prev
}

// Logout clears the session immediately. The backend is told afterwards on a
// best-effort basis; its answer is never waited for.
func (m *Manager) Logout(ctx context.Context) {
	prev := m.clear("")
	metrics.SessionEvents.WithLabelValues("logout").Inc()
	log.Info().Str("username", prev.Username).Msg("user logged out")

	auth := m.authenticator()
	if auth == nil || prev.AccessToken == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.logoutTimeout)
		defer cancel()
		if err := auth.Logout(ctx, prev.AccessToken, prev.RefreshToken); err != nil {
			log.Debug().Err(err).Msg("backend logout failed")
		}
	}()
}

// OnUnauthorized is invoked by the API client when the backend rejects the
// credential. It clears the session and sends the user to the login page.
func (m *Manager) OnUnauthorized() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered in session unauthorized handler")
		}
	}()

	prev := m.clear(SessionExpiredReason)
	metrics.SessionEvents.WithLabelValues("unauthorized").Inc()
	log.Warn().Str("username", prev.Username).Msg("session rejected by backend")

	if m.navigator != nil {
		m.navigator.Redirect(m.loginPath + "?reason=" + SessionExpiredReason)
	}
}

// Refresh exchanges the refresh token for a new token pair. Concurrent
// callers share one exchange.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err, _ := m.refreshGroup.Do("refresh", func() (any, error) {
		return nil, m.refresh(ctx)
	})
	return err
}

func (m *Manager) refresh(ctx context.Context) error {
	current := m.Snapshot()
	if !current.IsAuthenticated {
		return errors.Wrap(apperrors.ErrNoToken, "[Manager.Refresh]")
	}
	if current.RefreshToken == "" {
		return errors.Wrap(apperrors.ErrNoRefreshToken, "[Manager.Refresh]")
	}
	auth := m.authenticator()
	if auth == nil {
		return errors.Wrap(apperrors.ErrNoAuthenticator, "[Manager.Refresh]")
	}

	tokens, err := auth.Refresh(ctx, current.RefreshToken)
	if err != nil {
		if apiclient.IsKind(err, apiclient.Unauthorized) {
			m.OnUnauthorized()
		}
		return errors.Wrap(err, "[Manager.Refresh] refresh failed")
	}
	if tokens == nil || !usableToken(tokens.AccessToken) {
		return errors.Wrap(apperrors.ErrNoToken, "[Manager.Refresh] backend returned no access token")
	}
	if sanitize(tokens.RefreshToken) == "" {
		tokens.RefreshToken = current.RefreshToken
	}
	if tokens.Username == "" {
		tokens.Username = current.Username
	}

	m.mu.Lock()
	if m.session.RefreshToken != current.RefreshToken {
		m.mu.Unlock()
		return errors.Wrap(apperrors.ErrNoToken, "[Manager.Refresh] session changed during refresh")
	}
	if err := m.persist(tokens); err != nil {
		m.mu.Unlock()
		return errors.Wrap(err, "[Manager.Refresh] persisting tokens")
	}
	m.session.AccessToken = tokens.AccessToken
	m.session.RefreshToken = tokens.RefreshToken
	m.session.Username = tokens.Username
	m.session.ExpiresAt = m.expiryFor(tokens)
	m.mu.Unlock()

	metrics.SessionEvents.WithLabelValues("refresh").Inc()
	log.Debug().Msg("session tokens refreshed")
	return nil
}

// Token returns the bearer credential for outgoing requests, refreshing it
// first when it is about to expire. ErrNoToken means send no header.
func (m *Manager) Token() (*oauth2.Token, error) {
	s := m.Snapshot()
	if !s.IsAuthenticated {
		return nil, apperrors.ErrNoToken
	}
	if m.needsRefresh(s) {
		if err := m.Refresh(context.Background()); err != nil {
			log.Debug().Err(err).Msg("proactive token refresh failed")
		}
		s = m.Snapshot()
		if !s.IsAuthenticated {
			return nil, apperrors.ErrNoToken
		}
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt,
	}, nil
}

func (m *Manager) needsRefresh(s Session) bool {
	if s.RefreshToken == "" || s.ExpiresAt.IsZero() || m.authenticator() == nil {
		return false
	}
	return !m.nowFunc().Add(m.refreshLeeway).Before(s.ExpiresAt)
}

func (m *Manager) Snapshot() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Manager) State() State {
	return m.Snapshot().State()
}

// EndReason is why the last session ended, empty when there is nothing to
// tell the user.
func (m *Manager) EndReason() string {
	return m.Snapshot().EndReason
}

// Subscribe returns a channel carrying the latest session state. The current
// state is delivered immediately; slow readers only ever see the newest value.
func (m *Manager) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	ch <- m.State()

	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		close(ch)
		return ch, func() {}
	}
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			defer m.subMu.Unlock()
			if sub, ok := m.subs[id]; ok {
				delete(m.subs, id)
				close(sub)
			}
		})
	}
}

func (m *Manager) publish(state State) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- state
	}
}

// Close releases every subscriber.
func (m *Manager) Close() {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for id, ch := range m.subs {
		delete(m.subs, id)
		close(ch)
	}
}
