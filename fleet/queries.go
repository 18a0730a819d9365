package fleet

import (
	"context"
	"errors"
	"net/http"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/querycache"
)

var errEmptyID = errors.New("id is required")

// validated runs the query only when params pass validation.
func validated[P any, T any](ctx context.Context, s *Service, ep querycache.Endpoint[P, T], params P) querycache.Result[T] {
	if err := apiclient.Validate(params); err != nil {
		return querycache.Result[T]{Err: err}
	}
	return querycache.Query(ctx, s.cache, ep, params)
}

func byIDQuery[T any](ctx context.Context, s *Service, ep querycache.Endpoint[string, T], id string) querycache.Result[T] {
	if id == "" {
		return querycache.Result[T]{Err: apiclient.NewValidationError(errEmptyID)}
	}
	return querycache.Query(ctx, s.cache, ep, id)
}

func (s *Service) Routes(ctx context.Context, filter RouteFilter) querycache.Result[[]Route] {
	return validated(ctx, s, s.routes, filter)
}

func (s *Service) Route(ctx context.Context, id string) querycache.Result[Route] {
	return byIDQuery(ctx, s, s.route, id)
}

func (s *Service) CreateRoute(ctx context.Context, in RouteInput) (Route, error) {
	return querycache.Mutate(ctx, s.cache, s.createRoute, in)
}

func (s *Service) UpdateRoute(ctx context.Context, upd RouteUpdate) (Route, error) {
	return querycache.Mutate(ctx, s.cache, s.updateRoute, upd)
}

func (s *Service) DeleteRoute(ctx context.Context, id string) error {
	_, err := querycache.Mutate(ctx, s.cache, s.deleteRoute, id)
	return err
}

// CalculateRoute asks the backend to plan a route. Plans are not cached.
func (s *Service) CalculateRoute(ctx context.Context, req RouteCalculationRequest) (RoutePlan, error) {
	if err := apiclient.Validate(req); err != nil {
		return RoutePlan{}, err
	}
	return apiclient.SendJSON[RoutePlan](ctx, s.client, http.MethodPost, "/routes/calculate", req)
}

func (s *Service) RouteAnalytics(ctx context.Context, routeID string) querycache.Result[RouteAnalytics] {
	return byIDQuery(ctx, s, s.routeAnalytics, routeID)
}

func (s *Service) Drivers(ctx context.Context, filter DriverFilter) querycache.Result[[]Driver] {
	return validated(ctx, s, s.drivers, filter)
}

func (s *Service) Driver(ctx context.Context, id string) querycache.Result[Driver] {
	return byIDQuery(ctx, s, s.driver, id)
}

func (s *Service) UpdateDriverStatus(ctx context.Context, upd DriverStatusUpdate) (Driver, error) {
	return querycache.Mutate(ctx, s.cache, s.updateDriver, upd)
}

func (s *Service) Vehicles(ctx context.Context, filter VehicleFilter) querycache.Result[[]Vehicle] {
	return validated(ctx, s, s.vehicles, filter)
}

func (s *Service) Vehicle(ctx context.Context, id string) querycache.Result[Vehicle] {
	return byIDQuery(ctx, s, s.vehicle, id)
}

func (s *Service) UpdateFuel(ctx context.Context, upd FuelUpdate) (Vehicle, error) {
	return querycache.Mutate(ctx, s.cache, s.updateFuel, upd)
}

func (s *Service) UpdateOdometer(ctx context.Context, upd OdometerUpdate) (Vehicle, error) {
	return querycache.Mutate(ctx, s.cache, s.updateOdometer, upd)
}

func (s *Service) CargoList(ctx context.Context, filter CargoFilter) querycache.Result[[]Cargo] {
	return validated(ctx, s, s.cargoList, filter)
}

func (s *Service) Cargo(ctx context.Context, id string) querycache.Result[Cargo] {
	return byIDQuery(ctx, s, s.cargo, id)
}

func (s *Service) CreateCargo(ctx context.Context, in CargoInput) (Cargo, error) {
	return querycache.Mutate(ctx, s.cache, s.createCargo, in)
}

func (s *Service) UpdateCargo(ctx context.Context, upd CargoUpdate) (Cargo, error) {
	return querycache.Mutate(ctx, s.cache, s.updateCargo, upd)
}

func (s *Service) CurrentWeather(ctx context.Context, q WeatherQuery) querycache.Result[Weather] {
	return validated(ctx, s, s.weather, q)
}

func (s *Service) Forecast(ctx context.Context, q ForecastQuery) querycache.Result[Forecast] {
	return validated(ctx, s, s.forecast, q)
}

func (s *Service) RouteForecast(ctx context.Context, routeID string) querycache.Result[RouteForecast] {
	return byIDQuery(ctx, s, s.routeForecast, routeID)
}

func (s *Service) HazardWarnings(ctx context.Context, q HazardQuery) querycache.Result[[]HazardWarning] {
	return validated(ctx, s, s.hazards, q)
}

// RefreshWeather marks every cached weather answer stale.
func (s *Service) RefreshWeather() int {
	return s.cache.Invalidate(querycache.ListTag(EntityWeather))
}

func (s *Service) Geocode(ctx context.Context, q GeocodeQuery) querycache.Result[[]GeocodeResult] {
	return validated(ctx, s, s.geocode, q)
}

func (s *Service) ReverseGeocode(ctx context.Context, q ReverseGeocodeQuery) querycache.Result[GeocodeResult] {
	return validated(ctx, s, s.reverseGeocode, q)
}
