package fleet_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/fleet"
	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/internal/utils"
	"github.com/jrsteele09/fleet-console/querycache"
)

type fakeBackend struct {
	mu     sync.Mutex
	hits   map[string]int
	routes map[string]fleet.Route
	query  map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hits:  make(map[string]int),
		query: make(map[string]string),
		routes: map[string]fleet.Route{
			"A": {ID: "A", Name: "Harbour run", Status: fleet.RouteStatusPlanned},
			"B": {ID: "B", Name: "Airport loop", Status: fleet.RouteStatusActive},
		},
	}
}

func (b *fakeBackend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[key]
}

func (b *fakeBackend) lastQuery(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query[key]
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	record := func(key string, r *http.Request) {
		b.mu.Lock()
		b.hits[key]++
		b.query[key] = r.URL.RawQuery
		b.mu.Unlock()
	}
	writeJSON := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("GET /api/routes", func(w http.ResponseWriter, r *http.Request) {
		record("routes.list", r)
		b.mu.Lock()
		defer b.mu.Unlock()
		list := []fleet.Route{b.routes["A"], b.routes["B"]}
		writeJSON(w, list)
	})
	mux.HandleFunc("GET /api/routes/{id}", func(w http.ResponseWriter, r *http.Request) {
		record("routes.get."+r.PathValue("id"), r)
		b.mu.Lock()
		defer b.mu.Unlock()
		route, ok := b.routes[r.PathValue("id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, route)
	})
	mux.HandleFunc("PUT /api/routes/{id}", func(w http.ResponseWriter, r *http.Request) {
		record("routes.update", r)
		var upd struct {
			Name *string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&upd)
		b.mu.Lock()
		defer b.mu.Unlock()
		route := b.routes[r.PathValue("id")]
		if upd.Name != nil {
			route.Name = *upd.Name
		}
		b.routes[route.ID] = route
		writeJSON(w, route)
	})
	mux.HandleFunc("PATCH /api/vehicles/{id}/fuel", func(w http.ResponseWriter, r *http.Request) {
		record("vehicles.fuel", r)
		writeJSON(w, fleet.Vehicle{ID: r.PathValue("id"), FuelLevel: 50})
	})
	mux.HandleFunc("GET /api/weather/current", func(w http.ResponseWriter, r *http.Request) {
		record("weather.current", r)
		writeJSON(w, fleet.Weather{Conditions: "clear", TemperatureC: 21})
	})
	mux.HandleFunc("POST /api/routes/calculate", func(w http.ResponseWriter, r *http.Request) {
		record("routes.calculate", r)
		writeJSON(w, fleet.RoutePlan{DistanceKm: 12.5, DurationMin: 20, RTOCompliant: true})
	})
	return mux
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, backend *fakeBackend, clk *clock, opts ...fleet.Option) *fleet.Service {
	t.Helper()
	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	cache, err := querycache.New(
		querycache.WithNowFunc(clk.Now),
		querycache.WithPolicy(fleet.NewPolicy(config.CacheTTLs{
			Default:   5 * time.Minute,
			Weather:   10 * time.Minute,
			Analytics: time.Hour,
			Geocoding: 2 * time.Hour,
		})),
	)
	require.NoError(t, err)
	return fleet.NewService(apiclient.New(srv.URL+"/api"), cache, opts...)
}

func TestService_RouteUpdateInvalidatesOnlyThatRoute(t *testing.T) {
	backend := newFakeBackend()
	svc := newService(t, backend, &clock{now: time.Now()})
	ctx := context.Background()

	require.NoError(t, svc.Routes(ctx, fleet.RouteFilter{}).Err)
	require.NoError(t, svc.Route(ctx, "A").Err)
	require.NoError(t, svc.Route(ctx, "B").Err)
	require.True(t, svc.Routes(ctx, fleet.RouteFilter{}).FromCache)

	updated, err := svc.UpdateRoute(ctx, fleet.RouteUpdate{ID: "A", Name: utils.Ptr("Harbour express")})
	require.NoError(t, err)
	require.Equal(t, "Harbour express", updated.Name)

	a := svc.Route(ctx, "A")
	require.False(t, a.FromCache)
	require.Equal(t, "Harbour express", a.Data.Name)

	b := svc.Route(ctx, "B")
	require.True(t, b.FromCache)

	list := svc.Routes(ctx, fleet.RouteFilter{})
	require.False(t, list.FromCache)
	require.Equal(t, 2, backend.count("routes.list"))
	require.Equal(t, 2, backend.count("routes.get.A"))
	require.Equal(t, 1, backend.count("routes.get.B"))
}

func TestService_NotFoundIsTyped(t *testing.T) {
	svc := newService(t, newFakeBackend(), &clock{now: time.Now()})
	res := svc.Route(context.Background(), "missing")
	require.True(t, apiclient.IsKind(res.Err, apiclient.NotFound))
}

func TestService_ValidationNeverReachesBackend(t *testing.T) {
	backend := newFakeBackend()
	svc := newService(t, backend, &clock{now: time.Now()})
	ctx := context.Background()

	_, err := svc.UpdateFuel(ctx, fleet.FuelUpdate{VehicleID: "v1", FuelLevel: 140})
	require.True(t, apiclient.IsKind(err, apiclient.Validation))
	require.Equal(t, 0, backend.count("vehicles.fuel"))

	res := svc.Routes(ctx, fleet.RouteFilter{Status: "lost"})
	require.True(t, apiclient.IsKind(res.Err, apiclient.Validation))
	require.Equal(t, 0, backend.count("routes.list"))

	require.True(t, apiclient.IsKind(svc.Route(ctx, "").Err, apiclient.Validation))

	vehicle, err := svc.UpdateFuel(ctx, fleet.FuelUpdate{VehicleID: "v1", FuelLevel: 50})
	require.NoError(t, err)
	require.Equal(t, "v1", vehicle.ID)
}

func TestService_WeatherStaysFreshForTenMinutes(t *testing.T) {
	backend := newFakeBackend()
	clk := &clock{now: time.Date(2026, 7, 1, 6, 0, 0, 0, time.UTC)}
	svc := newService(t, backend, clk, fleet.WithProviderKeys("map-key", "weather-key"))
	ctx := context.Background()
	q := fleet.WeatherQuery{Lat: -33.86, Lng: 151.21}

	require.NoError(t, svc.CurrentWeather(ctx, q).Err)
	clk.Advance(9 * time.Minute)
	require.True(t, svc.CurrentWeather(ctx, q).FromCache)
	clk.Advance(2 * time.Minute)
	require.False(t, svc.CurrentWeather(ctx, q).FromCache)
	require.Equal(t, 2, backend.count("weather.current"))
	require.Equal(t, "key=weather-key&lat=-33.86&lng=151.21", backend.lastQuery("weather.current"))

	require.Equal(t, 1, svc.RefreshWeather())
	require.False(t, svc.CurrentWeather(ctx, q).FromCache)
}

func TestService_CalculateRoute(t *testing.T) {
	backend := newFakeBackend()
	svc := newService(t, backend, &clock{now: time.Now()})

	plan, err := svc.CalculateRoute(context.Background(), fleet.RouteCalculationRequest{
		Origin:      fleet.Location{Lat: -33.86, Lng: 151.21},
		Destination: fleet.Location{Lat: -33.94, Lng: 151.17},
	})
	require.NoError(t, err)
	require.True(t, plan.RTOCompliant)

	_, err = svc.CalculateRoute(context.Background(), fleet.RouteCalculationRequest{
		Origin:      fleet.Location{Lat: 120, Lng: 151.21},
		Destination: fleet.Location{Lat: -33.94, Lng: 151.17},
	})
	require.True(t, apiclient.IsKind(err, apiclient.Validation))
	require.Equal(t, 1, backend.count("routes.calculate"))
}

func TestInvalidationTable(t *testing.T) {
	table := fleet.NewInvalidationTable()

	require.ElementsMatch(t, []querycache.Tag{
		querycache.ListTag(fleet.EntityRoute),
		querycache.ItemTag(fleet.EntityRoute, "r1"),
		querycache.ItemTag(fleet.EntityRouteAnalytics, "r1"),
	}, table.Invalidates(fleet.MutationUpdateRoute, "r1"))
	require.Equal(t, []querycache.Tag{querycache.ListTag(fleet.EntityCargo)}, table.Invalidates(fleet.MutationCreateCargo, "c9"))
	require.ElementsMatch(t, []querycache.Tag{
		querycache.ListTag(fleet.EntityVehicle),
		querycache.ItemTag(fleet.EntityVehicle, "v1"),
	}, table.Invalidates(fleet.MutationUpdateOdometer, "v1"))

	for _, m := range table.Mutations() {
		require.NotEmpty(t, table.Rules(m), m)
	}
}
