package apiclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/fleet-console/apiclient"
	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
)

type fakeSession struct {
	mu           sync.Mutex
	token        string
	unauthorized int
}

func (f *fakeSession) Token() (*oauth2.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.token == "" {
		return nil, apperrors.ErrNoToken
	}
	return &oauth2.Token{AccessToken: f.token}, nil
}

func (f *fakeSession) OnUnauthorized() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unauthorized++
	f.token = ""
}

func (f *fakeSession) unauthorizedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unauthorized
}

func newClient(t *testing.T, handler http.HandlerFunc, opts ...apiclient.Option) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	opts = append([]apiclient.Option{apiclient.WithRetryDelay(time.Millisecond)}, opts...)
	return apiclient.New(srv.URL+"/api/", opts...)
}

func TestRequest_NoAuthorizationHeaderWithoutToken(t *testing.T) {
	var header atomic.Value
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	}, apiclient.WithSession(&fakeSession{}))

	_, err := client.Get(context.Background(), "/routes")
	require.NoError(t, err)
	require.Equal(t, "", header.Load())
}

func TestRequest_BearerHeaderAndEndpointJoin(t *testing.T) {
	var header, path atomic.Value
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		path.Store(r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"r1"}`))
	}, apiclient.WithSession(&fakeSession{token: "abc"}))

	raw, err := client.Get(context.Background(), "routes/r1")
	require.NoError(t, err)
	require.JSONEq(t, `{"id":"r1"}`, string(raw))
	require.Equal(t, "Bearer abc", header.Load())
	require.Equal(t, "/api/routes/r1", path.Load())
}

func TestRequest_WithoutAuthSkipsHeader(t *testing.T) {
	var header atomic.Value
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{}`))
	}, apiclient.WithSession(&fakeSession{token: "abc"}))

	_, err := client.Post(apiclient.WithoutAuth(context.Background()), "/auth/login", map[string]string{"username": "bob"})
	require.NoError(t, err)
	require.Equal(t, "", header.Load())
}

func TestRequest_UnauthorizedInvokesHook(t *testing.T) {
	sess := &fakeSession{token: "expired"}
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expired"}`))
	}, apiclient.WithSession(sess))

	_, err := client.Get(context.Background(), "/drivers")
	require.Error(t, err)
	require.True(t, apiclient.IsKind(err, apiclient.Unauthorized))
	require.Equal(t, 1, sess.unauthorizedCalls())

	_, err = client.Post(apiclient.WithoutUnauthorizedHook(context.Background()), "/auth/login", nil)
	require.True(t, apiclient.IsKind(err, apiclient.Unauthorized))
	require.Equal(t, 1, sess.unauthorizedCalls())
}

func TestRequest_StatusClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    apiclient.Kind
		message string
	}{
		{name: "forbidden", status: http.StatusForbidden, want: apiclient.Forbidden},
		{name: "not found", status: http.StatusNotFound, want: apiclient.NotFound},
		{name: "conflict", status: http.StatusConflict, body: `{"message":"route already exists"}`, want: apiclient.BadRequest, message: "route already exists"},
		{name: "unprocessable", status: http.StatusUnprocessableEntity, body: `{"error":"bad payload"}`, want: apiclient.BadRequest, message: "bad payload"},
		{name: "server error", status: http.StatusServiceUnavailable, want: apiclient.ServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Post(context.Background(), "/routes", map[string]string{"name": "x"})

			var apiErr *apiclient.Error
			require.True(t, errors.As(err, &apiErr))
			require.Equal(t, tt.want, apiErr.Kind)
			require.Equal(t, tt.status, apiErr.Status)
			require.Equal(t, tt.message, apiErr.Message)
			require.NotEmpty(t, apiErr.UserMessage())
		})
	}
}

func TestRequest_ParseErrorOnNonJSONSuccess(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops</html>`))
	})
	_, err := client.Get(context.Background(), "/routes")
	require.True(t, apiclient.IsKind(err, apiclient.ParseError))
}

func TestRequest_EmptySuccessBody(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	raw, err := client.Delete(context.Background(), "/routes/r1")
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestRequest_GetRetriedOnceOnNetworkError(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})

	raw, err := client.Get(context.Background(), "/vehicles")
	require.NoError(t, err)
	require.JSONEq(t, `[]`, string(raw))
	require.EqualValues(t, 2, calls.Load())
}

func TestRequest_MutationNeverRetried(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		hj, _ := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		_ = conn.Close()
	})

	_, err := client.Post(context.Background(), "/cargo", map[string]int{"weight": 10})
	require.True(t, apiclient.IsKind(err, apiclient.NetworkError))
	require.EqualValues(t, 1, calls.Load())
}

func TestRequest_ServerErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.Get(context.Background(), "/routes")
	require.True(t, apiclient.IsKind(err, apiclient.ServerError))
	require.EqualValues(t, 1, calls.Load())
}

func TestRequest_Timeout(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, apiclient.WithTimeout(20*time.Millisecond))

	_, err := client.Post(context.Background(), "/routes", nil)
	var apiErr *apiclient.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, apiclient.NetworkError, apiErr.Kind)
	require.True(t, apiErr.Retryable())
}

func TestRequest_CircuitBreakerOpenIsNetworkError(t *testing.T) {
	var calls atomic.Int32
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, apiclient.WithBreakerSettings(gobreaker.Settings{
		Name:    "test",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 2
		},
	}))

	for i := 0; i < 2; i++ {
		_, err := client.Post(context.Background(), "/routes", nil)
		require.True(t, apiclient.IsKind(err, apiclient.ServerError))
	}

	_, err := client.Get(context.Background(), "/routes")
	require.True(t, apiclient.IsKind(err, apiclient.NetworkError))
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.EqualValues(t, 2, calls.Load())
}

func TestRequest_NotFoundDoesNotTripBreaker(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, apiclient.WithBreakerSettings(gobreaker.Settings{
		Name: "test",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 1
		},
	}))

	for i := 0; i < 3; i++ {
		_, err := client.Get(context.Background(), "/routes/missing")
		require.True(t, apiclient.IsKind(err, apiclient.NotFound))
	}
}

func TestGetJSON(t *testing.T) {
	type route struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":"r1","name":"North loop"}]`))
	})

	routes, err := apiclient.GetJSON[[]route](context.Background(), client, "/routes")
	require.NoError(t, err)
	require.Equal(t, []route{{ID: "r1", Name: "North loop"}}, routes)

	_, err = apiclient.GetJSON[route](context.Background(), client, "/routes")
	require.True(t, apiclient.IsKind(err, apiclient.ParseError))
}

func TestRequest_PinnedBearerOverridesSession(t *testing.T) {
	var header atomic.Value
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		header.Store(r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, apiclient.WithSession(&fakeSession{}))

	_, err := client.Post(apiclient.WithBearer(context.Background(), "old-token"), "/auth/logout", nil)
	require.NoError(t, err)
	require.Equal(t, "Bearer old-token", header.Load())
}
