// Package fleet exposes the typed fleet backend endpoints. Reads go through
// the shared query cache, writes through cache mutations that invalidate the
// affected entries.
package fleet

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/querycache"
)

type Option func(*Service)

// WithProviderKeys forwards the map and weather provider keys to the backend
// on geocoding and weather calls.
func WithProviderKeys(mapKey, weatherKey string) Option {
	return func(s *Service) {
		s.mapKey = mapKey
		s.weatherKey = weatherKey
	}
}

type Service struct {
	client *apiclient.Client
	cache  *querycache.Cache
	table  *querycache.InvalidationTable

	mapKey     string
	weatherKey string

	routes         querycache.Endpoint[RouteFilter, []Route]
	route          querycache.Endpoint[string, Route]
	routeAnalytics querycache.Endpoint[string, RouteAnalytics]
	drivers        querycache.Endpoint[DriverFilter, []Driver]
	driver         querycache.Endpoint[string, Driver]
	vehicles       querycache.Endpoint[VehicleFilter, []Vehicle]
	vehicle        querycache.Endpoint[string, Vehicle]
	cargoList      querycache.Endpoint[CargoFilter, []Cargo]
	cargo          querycache.Endpoint[string, Cargo]
	weather        querycache.Endpoint[WeatherQuery, Weather]
	forecast       querycache.Endpoint[ForecastQuery, Forecast]
	routeForecast  querycache.Endpoint[string, RouteForecast]
	hazards        querycache.Endpoint[HazardQuery, []HazardWarning]
	geocode        querycache.Endpoint[GeocodeQuery, []GeocodeResult]
	reverseGeocode querycache.Endpoint[ReverseGeocodeQuery, GeocodeResult]

	createRoute    querycache.Mutation[RouteInput, Route]
	updateRoute    querycache.Mutation[RouteUpdate, Route]
	deleteRoute    querycache.Mutation[string, struct{}]
	updateDriver   querycache.Mutation[DriverStatusUpdate, Driver]
	updateFuel     querycache.Mutation[FuelUpdate, Vehicle]
	updateOdometer querycache.Mutation[OdometerUpdate, Vehicle]
	createCargo    querycache.Mutation[CargoInput, Cargo]
	updateCargo    querycache.Mutation[CargoUpdate, Cargo]
}

func NewService(client *apiclient.Client, cache *querycache.Cache, opts ...Option) *Service {
	s := &Service{
		client: client,
		cache:  cache,
		table:  NewInvalidationTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.buildEndpoints()
	s.buildMutations()
	return s
}

func (s *Service) Cache() *querycache.Cache {
	return s.cache
}

func (s *Service) Table() *querycache.InvalidationTable {
	return s.table
}

func get[P any, T any](s *Service, name, entity string, path func(P) string, tags func(P, T) []querycache.Tag) querycache.Endpoint[P, T] {
	return querycache.Endpoint[P, T]{
		Name:   name,
		Entity: entity,
		Fetch: func(ctx context.Context, p P) (T, error) {
			return apiclient.GetJSON[T](ctx, s.client, path(p))
		},
		Tags: tags,
	}
}

func send[I any, R any](s *Service, name, method string, path func(I) string, id func(I, R) string) querycache.Mutation[I, R] {
	return querycache.Mutation[I, R]{
		Name: name,
		Do: func(ctx context.Context, in I) (R, error) {
			if err := apiclient.Validate(in); err != nil {
				var zero R
				return zero, err
			}
			return apiclient.SendJSON[R](ctx, s.client, method, path(in), in)
		},
		Invalidates: func(in I, out R) []querycache.Tag {
			return s.table.Invalidates(name, id(in, out))
		},
	}
}

func itemTag[P any, T any](entity string, id func(P, T) string) func(P, T) []querycache.Tag {
	return func(p P, data T) []querycache.Tag {
		return []querycache.Tag{querycache.ItemTag(entity, id(p, data))}
	}
}

func listTags[P any, T any](entity string, items func(T) []string) func(P, T) []querycache.Tag {
	return func(_ P, data T) []querycache.Tag {
		ids := items(data)
		tags := make([]querycache.Tag, 0, len(ids)+1)
		tags = append(tags, querycache.ListTag(entity))
		for _, id := range ids {
			tags = append(tags, querycache.ItemTag(entity, id))
		}
		return tags
	}
}

func byID[T any](p string, _ T) string { return p }

func (s *Service) buildEndpoints() {
	s.routes = get(s, "routes.list", EntityRoute,
		func(f RouteFilter) string { return withQuery("/routes", filterValues("status", f.Status, "driverId", f.DriverID)) },
		listTags[RouteFilter](EntityRoute, func(rs []Route) []string {
			ids := make([]string, len(rs))
			for i, r := range rs {
				ids[i] = r.ID
			}
			return ids
		}))
	s.route = get(s, "routes.get", EntityRoute,
		func(id string) string { return "/routes/" + url.PathEscape(id) },
		itemTag(EntityRoute, byID[Route]))
	s.routeAnalytics = get(s, "routes.analytics", EntityRouteAnalytics,
		func(id string) string { return "/routes/" + url.PathEscape(id) + "/analytics" },
		itemTag(EntityRouteAnalytics, byID[RouteAnalytics]))

	s.drivers = get(s, "drivers.list", EntityDriver,
		func(f DriverFilter) string { return withQuery("/drivers", filterValues("status", f.Status)) },
		listTags[DriverFilter](EntityDriver, func(ds []Driver) []string {
			ids := make([]string, len(ds))
			for i, d := range ds {
				ids[i] = d.ID
			}
			return ids
		}))
	s.driver = get(s, "drivers.get", EntityDriver,
		func(id string) string { return "/drivers/" + url.PathEscape(id) },
		itemTag(EntityDriver, byID[Driver]))

	s.vehicles = get(s, "vehicles.list", EntityVehicle,
		func(f VehicleFilter) string { return withQuery("/vehicles", filterValues("status", f.Status)) },
		listTags[VehicleFilter](EntityVehicle, func(vs []Vehicle) []string {
			ids := make([]string, len(vs))
			for i, v := range vs {
				ids[i] = v.ID
			}
			return ids
		}))
	s.vehicle = get(s, "vehicles.get", EntityVehicle,
		func(id string) string { return "/vehicles/" + url.PathEscape(id) },
		itemTag(EntityVehicle, byID[Vehicle]))

	s.cargoList = get(s, "cargo.list", EntityCargo,
		func(f CargoFilter) string {
			return withQuery("/cargo", filterValues("status", f.Status, "routeId", f.RouteID))
		},
		listTags[CargoFilter](EntityCargo, func(cs []Cargo) []string {
			ids := make([]string, len(cs))
			for i, c := range cs {
				ids[i] = c.ID
			}
			return ids
		}))
	s.cargo = get(s, "cargo.get", EntityCargo,
		func(id string) string { return "/cargo/" + url.PathEscape(id) },
		itemTag(EntityCargo, byID[Cargo]))

	weatherTags := func() []querycache.Tag { return []querycache.Tag{querycache.ListTag(EntityWeather)} }
	s.weather = get(s, "weather.current", EntityWeather,
		func(q WeatherQuery) string { return s.weatherPath("/weather/current", coords(q.Lat, q.Lng)) },
		func(WeatherQuery, Weather) []querycache.Tag { return weatherTags() })
	s.forecast = get(s, "weather.forecast", EntityWeather,
		func(q ForecastQuery) string {
			v := coords(q.Lat, q.Lng)
			v.Set("days", strconv.Itoa(q.Days))
			return s.weatherPath("/weather/forecast", v)
		},
		func(ForecastQuery, Forecast) []querycache.Tag { return weatherTags() })
	s.routeForecast = get(s, "weather.routeForecast", EntityWeather,
		func(id string) string { return s.weatherPath("/weather/routes/"+url.PathEscape(id)+"/forecast", url.Values{}) },
		func(id string, _ RouteForecast) []querycache.Tag {
			return append(weatherTags(), querycache.ItemTag(EntityRoute, id))
		})
	s.hazards = get(s, "weather.hazards", EntityWeather,
		func(q HazardQuery) string {
			v := coords(q.Lat, q.Lng)
			v.Set("radiusKm", strconv.FormatFloat(q.RadiusKm, 'f', -1, 64))
			return s.weatherPath("/weather/hazards", v)
		},
		func(HazardQuery, []HazardWarning) []querycache.Tag { return weatherTags() })

	s.geocode = get[GeocodeQuery, []GeocodeResult](s, "geocoding.search", EntityGeocode,
		func(q GeocodeQuery) string {
			v := url.Values{}
			v.Set("q", q.Query)
			if q.Limit > 0 {
				v.Set("limit", strconv.Itoa(q.Limit))
			}
			return s.mapPath("/geocoding/search", v)
		}, nil)
	s.reverseGeocode = get[ReverseGeocodeQuery, GeocodeResult](s, "geocoding.reverse", EntityGeocode,
		func(q ReverseGeocodeQuery) string { return s.mapPath("/geocoding/reverse", coords(q.Lat, q.Lng)) },
		nil)
}

func (s *Service) buildMutations() {
	s.createRoute = send(s, MutationCreateRoute, http.MethodPost,
		func(RouteInput) string { return "/routes" },
		func(_ RouteInput, r Route) string { return r.ID })
	s.updateRoute = send(s, MutationUpdateRoute, http.MethodPut,
		func(u RouteUpdate) string { return "/routes/" + url.PathEscape(u.ID) },
		func(u RouteUpdate, _ Route) string { return u.ID })
	s.deleteRoute = querycache.Mutation[string, struct{}]{
		Name: MutationDeleteRoute,
		Do: func(ctx context.Context, id string) (struct{}, error) {
			if id == "" {
				return struct{}{}, apiclient.NewValidationError(errEmptyID)
			}
			_, err := s.client.Delete(ctx, "/routes/"+url.PathEscape(id))
			return struct{}{}, err
		},
		Invalidates: func(id string, _ struct{}) []querycache.Tag {
			return s.table.Invalidates(MutationDeleteRoute, id)
		},
	}
	s.updateDriver = send(s, MutationUpdateDriverStatus, http.MethodPatch,
		func(u DriverStatusUpdate) string { return "/drivers/" + url.PathEscape(u.DriverID) + "/status" },
		func(u DriverStatusUpdate, _ Driver) string { return u.DriverID })
	s.updateFuel = send(s, MutationUpdateFuel, http.MethodPatch,
		func(u FuelUpdate) string { return "/vehicles/" + url.PathEscape(u.VehicleID) + "/fuel" },
		func(u FuelUpdate, _ Vehicle) string { return u.VehicleID })
	s.updateOdometer = send(s, MutationUpdateOdometer, http.MethodPatch,
		func(u OdometerUpdate) string { return "/vehicles/" + url.PathEscape(u.VehicleID) + "/odometer" },
		func(u OdometerUpdate, _ Vehicle) string { return u.VehicleID })
	s.createCargo = send(s, MutationCreateCargo, http.MethodPost,
		func(CargoInput) string { return "/cargo" },
		func(_ CargoInput, c Cargo) string { return c.ID })
	s.updateCargo = send(s, MutationUpdateCargo, http.MethodPut,
		func(u CargoUpdate) string { return "/cargo/" + url.PathEscape(u.ID) },
		func(u CargoUpdate, _ Cargo) string { return u.ID })
}

func (s *Service) weatherPath(path string, v url.Values) string {
	if s.weatherKey != "" {
		v.Set("key", s.weatherKey)
	}
	return withQuery(path, v)
}

func (s *Service) mapPath(path string, v url.Values) string {
	if s.mapKey != "" {
		v.Set("key", s.mapKey)
	}
	return withQuery(path, v)
}

func coords(lat, lng float64) url.Values {
	v := url.Values{}
	v.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	v.Set("lng", strconv.FormatFloat(lng, 'f', -1, 64))
	return v
}

// filterValues takes name/value pairs and keeps the non-empty ones.
func filterValues(pairs ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			v.Set(pairs[i], pairs[i+1])
		}
	}
	return v
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}
