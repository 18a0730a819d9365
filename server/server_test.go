package server_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/fleet"
	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/notify"
	"github.com/jrsteele09/fleet-console/querycache"
	"github.com/jrsteele09/fleet-console/server"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/jrsteele09/fleet-console/session/storefake"
)

type fakeBackend struct {
	mu      sync.Mutex
	hits    map[string]int
	expired bool // answer data requests with 401
}

func (b *fakeBackend) hit(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[key]++
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *fakeBackend) expire() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expired = true
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.hit("login")
		var creds session.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "correct-horse" {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "bad credentials"})
			return
		}
		reply(w, http.StatusOK, session.Tokens{AccessToken: "access-1", RefreshToken: "refresh-1", Username: creds.Username, ExpiresIn: 3600})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.hit("logout")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/routes", func(w http.ResponseWriter, r *http.Request) {
		b.hit("routes")
		b.mu.Lock()
		expired := b.expired
		b.mu.Unlock()
		if expired || r.Header.Get("Authorization") != "Bearer access-1" {
			reply(w, http.StatusUnauthorized, map[string]string{"message": "token expired"})
			return
		}
		reply(w, http.StatusOK, []fleet.Route{{ID: "A", Name: "Harbour run"}, {ID: "B", Name: "Airport loop"}})
	})
	return mux
}

type fixture struct {
	backend  *fakeBackend
	sessions *session.Manager
	channel  *notify.Channel
	console  *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, config.New())
}

func newFixtureWith(t *testing.T, cfg config.Config) *fixture {
	t.Helper()

	backend := &fakeBackend{hits: make(map[string]int)}
	api := httptest.NewServer(backend.handler())
	t.Cleanup(api.Close)

	channel := notify.NewChannel()
	mgr := session.NewManager(storefake.NewFakeStorage(), session.WithNavigator(server.NotificationNavigator(channel)))
	client := apiclient.New(api.URL+"/api/", apiclient.WithSession(mgr))
	mgr.BindAuthenticator(fleet.NewAuthAPI(client))
	mgr.Hydrate()
	t.Cleanup(mgr.Close)

	cache, err := querycache.New(querycache.WithPolicy(fleet.NewPolicy(cfg.GetCacheTTLs())))
	require.NoError(t, err)

	srv, err := server.New(cfg, server.Deps{
		Sessions:      mgr,
		Fleet:         fleet.NewService(client, cache),
		Notifications: channel,
	})
	require.NoError(t, err)

	console := httptest.NewServer(srv)
	t.Cleanup(console.Close)

	return &fixture{backend: backend, sessions: mgr, channel: channel, console: console}
}

func (f *fixture) client() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, f.console.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := f.client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (f *fixture) login(t *testing.T) {
	t.Helper()
	resp := f.do(t, http.MethodPost, server.RouteAuthLogin, session.Credentials{Username: "dispatch", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

type errorBody struct {
	Error    string `json:"error"`
	Message  string `json:"message"`
	Location string `json:"location"`
}

type routesBody struct {
	Data      []fleet.Route `json:"data"`
	Stale     bool          `json:"stale"`
	FromCache bool          `json:"fromCache"`
}

func TestGuardedRoute_RedirectsToLoginWithNext(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/api/routes?status=active", nil)

	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login?next="+url.QueryEscape("/api/routes?status=active"), resp.Header.Get("Location"))
	require.Zero(t, f.backend.count("routes"))
}

func TestLogin_ThenGuardedViewsAreServedThroughTheCache(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	first := decode[routesBody](t, f.do(t, http.MethodGet, server.RouteRoutes, nil))
	require.Len(t, first.Data, 2)
	require.False(t, first.FromCache)

	second := decode[routesBody](t, f.do(t, http.MethodGet, server.RouteRoutes, nil))
	require.True(t, second.FromCache)
	require.Equal(t, 1, f.backend.count("routes"))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthLogin, session.Credentials{Username: "dispatch", Password: "wrong-password"})

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[errorBody](t, resp)
	require.Equal(t, "unauthorized", body.Error)
	require.Equal(t, "Invalid username or password.", body.Message)
	require.Equal(t, session.StateUnauthenticated, f.sessions.State())
}

func TestLogin_ValidationNeverReachesBackend(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, server.RouteAuthLogin, session.Credentials{Username: "dispatch", Password: "x"})

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "validation_error", decode[errorBody](t, resp).Error)
	require.Zero(t, f.backend.count("login"))
}

func TestFormLogin_RedirectsToNext(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"username": {"dispatch"}, "password": {"correct-horse"}, "next": {"/api/drivers"}}
	resp, err := f.client().PostForm(f.console.URL+server.RouteAuthLogin, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/api/drivers", resp.Header.Get("Location"))
}

func TestFormLogin_FailureReturnsToLoginWithError(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"username": {"dispatch"}, "password": {"wrong-password"}, "next": {"//evil.example"}}
	resp, err := f.client().PostForm(f.console.URL+server.RouteAuthLogin, form)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	location, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "/login", location.Path)
	require.Equal(t, "Invalid username or password.", location.Query().Get("error"))
	require.Equal(t, "dispatch", location.Query().Get("username"))
}

func TestLoginPage_ShowsSessionExpiredNotice(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodGet, "/login?reason=session_expired", nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Your session has expired. Please sign in again.")
}

func TestLogout_ClearsSessionAndCache(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	_ = f.do(t, http.MethodGet, server.RouteRoutes, nil)

	resp := f.do(t, http.MethodGet, server.RouteAuthLogout, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
	require.Equal(t, session.StateUnauthenticated, f.sessions.State())

	resp = f.do(t, http.MethodGet, server.RouteRoutes, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
}

func TestBackendUnauthorized_EndsSessionAndNotifies(t *testing.T) {
	t.Setenv("CACHE_TTL_DEFAULT", "1ms")
	cfg, err := config.Load()
	require.NoError(t, err)
	f := newFixtureWith(t, cfg)
	f.login(t)

	warm := decode[routesBody](t, f.do(t, http.MethodGet, server.RouteRoutes, nil))
	require.Len(t, warm.Data, 2)
	time.Sleep(5 * time.Millisecond)
	f.backend.expire()

	resp := f.do(t, http.MethodGet, server.RouteRoutes, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	body := decode[errorBody](t, resp)
	require.Equal(t, "unauthorized", body.Error)
	require.Equal(t, "/login?next=%2Fapi%2Froutes&reason=session_expired", body.Location)
	require.Equal(t, session.StateUnauthenticated, f.sessions.State())

	list := f.channel.List()
	require.Len(t, list, 1)
	require.Equal(t, notify.TypeSystem, list[0].Type)
	require.Equal(t, "/login?reason=session_expired", list[0].Data["redirect"])

	resp = f.do(t, http.MethodGet, server.RouteRoutes, nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.Equal(t, "/login?next=%2Fapi%2Froutes&reason=session_expired", location)

	page := f.do(t, http.MethodGet, location, nil)
	require.Equal(t, http.StatusOK, page.StatusCode)
	require.Contains(t, readBody(t, page), "Your session has expired.")
}

func TestNotifications_ListAndToggleRead(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.channel.Push(notify.Notification{ID: "n1", Type: notify.TypeCargoUpdate, Title: "Cargo loaded"})

	type listBody struct {
		Notifications []notify.Notification `json:"notifications"`
		UnreadCount   int                   `json:"unreadCount"`
	}
	list := decode[listBody](t, f.do(t, http.MethodGet, server.RouteNotifications, nil))
	require.Len(t, list.Notifications, 1)
	require.Equal(t, 1, list.UnreadCount)

	resp := f.do(t, http.MethodPost, "/api/notifications/n1/read", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, decode[notify.Notification](t, resp).Read)
	require.Zero(t, f.channel.UnreadCount())

	resp = f.do(t, http.MethodPost, "/api/notifications/missing/read", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodDelete, server.RouteNotifications, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Empty(t, f.channel.List())
}

func TestNotificationStream_SnapshotThenEvents(t *testing.T) {
	f := newFixture(t)
	f.login(t)
	f.channel.Push(notify.Notification{ID: "old", Type: notify.TypeDriverStatus, Title: "Driver on break"})

	wsURL := "ws" + strings.TrimPrefix(f.console.URL, "http") + server.RouteNotificationStream
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var snapshot struct {
		Kind          string                `json:"kind"`
		Notifications []notify.Notification `json:"notifications"`
	}
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &snapshot))
	require.Equal(t, "snapshot", snapshot.Kind)
	require.Len(t, snapshot.Notifications, 1)

	f.channel.Push(notify.Notification{ID: "storm", Type: notify.TypeWeatherAlert, Priority: notify.PriorityHigh})

	var kinds []notify.EventKind
	for len(kinds) < 2 {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var e notify.Event
		require.NoError(t, json.Unmarshal(data, &e))
		require.Equal(t, "storm", e.Notification.ID)
		kinds = append(kinds, e.Kind)
	}
	require.Equal(t, []notify.EventKind{notify.EventAdded, notify.EventToast}, kinds)
}

func TestPreflight_AllowsConfiguredOrigin(t *testing.T) {
	f := newFixture(t)

	req, err := http.NewRequest(http.MethodOptions, f.console.URL+server.RouteRoutes, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := f.client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	body := decode[map[string]any](t, f.do(t, http.MethodGet, server.RouteHealth, nil))

	require.Equal(t, "ok", body["status"])
	require.Equal(t, "unauthenticated", body["session"])
}

func TestManifest_OnlyServedWhenInstallable(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, server.RouteManifest, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	t.Setenv("ENABLE_PWA", "true")
	cfg, err := config.Load()
	require.NoError(t, err)
	f = newFixtureWith(t, cfg)

	resp = f.do(t, http.MethodGet, server.RouteManifest, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/manifest+json", resp.Header.Get("Content-Type"))
	manifest := decode[map[string]any](t, resp)
	require.Equal(t, "Fleet Console", manifest["name"])

	icon := f.do(t, http.MethodGet, server.RouteStatic+"icon.svg", nil)
	require.Equal(t, http.StatusOK, icon.StatusCode)

	page := f.do(t, http.MethodGet, server.RouteLogin, nil)
	require.Contains(t, readBody(t, page), `rel="manifest"`)
}
