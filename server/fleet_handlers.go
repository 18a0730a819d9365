package server

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/fleet"
)

func (s *Server) ListRoutesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		filter := fleet.RouteFilter{Status: q.String("status"), DriverID: q.String("driverId")}
		writeResult(s, w, r, s.fleet.Routes(r.Context(), filter))
	}
}

func (s *Server) GetRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.Route(r.Context(), r.PathValue("id")))
	}
}

func (s *Server) CreateRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in fleet.RouteInput
		if err := decodeBody(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		route, err := s.fleet.CreateRoute(r.Context(), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, route)
	}
}

func (s *Server) UpdateRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.RouteUpdate
		if err := decodeBody(r, &upd); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.ID = r.PathValue("id")
		route, err := s.fleet.UpdateRoute(r.Context(), upd)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, route)
	}
}

func (s *Server) DeleteRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.fleet.DeleteRoute(r.Context(), r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) CalculateRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fleet.RouteCalculationRequest
		if err := decodeBody(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		plan, err := s.fleet.CalculateRoute(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, plan)
	}
}

// RouteAnalyticsHandler is only served when analytics are switched on.
func (s *Server) RouteAnalyticsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.AnalyticsEnabled() {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "disabled", Message: "Analytics are not enabled."})
			return
		}
		writeResult(s, w, r, s.fleet.RouteAnalytics(r.Context(), r.PathValue("id")))
	}
}

func (s *Server) RouteForecastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.RouteForecast(r.Context(), r.PathValue("id")))
	}
}

func (s *Server) ListDriversHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.Drivers(r.Context(), fleet.DriverFilter{Status: params(r).String("status")}))
	}
}

func (s *Server) GetDriverHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.Driver(r.Context(), r.PathValue("id")))
	}
}

func (s *Server) UpdateDriverStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.DriverStatusUpdate
		if err := decodeBody(r, &upd); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.DriverID = r.PathValue("id")
		driver, err := s.fleet.UpdateDriverStatus(r.Context(), upd)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, driver)
	}
}

func (s *Server) ListVehiclesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.Vehicles(r.Context(), fleet.VehicleFilter{Status: params(r).String("status")}))
	}
}

func (s *Server) GetVehicleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.Vehicle(r.Context(), r.PathValue("id")))
	}
}

func (s *Server) UpdateFuelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.FuelUpdate
		if err := decodeBody(r, &upd); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.VehicleID = r.PathValue("id")
		vehicle, err := s.fleet.UpdateFuel(r.Context(), upd)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, vehicle)
	}
}

func (s *Server) UpdateOdometerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.OdometerUpdate
		if err := decodeBody(r, &upd); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.VehicleID = r.PathValue("id")
		vehicle, err := s.fleet.UpdateOdometer(r.Context(), upd)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, vehicle)
	}
}

func (s *Server) ListCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		writeResult(s, w, r, s.fleet.CargoList(r.Context(), fleet.CargoFilter{Status: q.String("status"), RouteID: q.String("routeId")}))
	}
}

func (s *Server) GetCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeResult(s, w, r, s.fleet.Cargo(r.Context(), r.PathValue("id")))
	}
}

func (s *Server) CreateCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in fleet.CargoInput
		if err := decodeBody(r, &in); err != nil {
			s.writeError(w, r, err)
			return
		}
		cargo, err := s.fleet.CreateCargo(r.Context(), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, cargo)
	}
}

func (s *Server) UpdateCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.CargoUpdate
		if err := decodeBody(r, &upd); err != nil {
			s.writeError(w, r, err)
			return
		}
		upd.ID = r.PathValue("id")
		cargo, err := s.fleet.UpdateCargo(r.Context(), upd)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cargo)
	}
}

func (s *Server) CurrentWeatherHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		query := fleet.WeatherQuery{Lat: q.Float("lat"), Lng: q.Float("lng")}
		if err := q.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeResult(s, w, r, s.fleet.CurrentWeather(r.Context(), query))
	}
}

func (s *Server) ForecastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		query := fleet.ForecastQuery{Lat: q.Float("lat"), Lng: q.Float("lng"), Days: q.Int("days", 5)}
		if err := q.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeResult(s, w, r, s.fleet.Forecast(r.Context(), query))
	}
}

func (s *Server) HazardsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		query := fleet.HazardQuery{Lat: q.Float("lat"), Lng: q.Float("lng"), RadiusKm: q.Float("radiusKm")}
		if query.RadiusKm == 0 {
			query.RadiusKm = 50
		}
		if err := q.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeResult(s, w, r, s.fleet.HazardWarnings(r.Context(), query))
	}
}

// RefreshWeatherHandler marks every weather entry stale so the next read refetches.
func (s *Server) RefreshWeatherHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]int{"invalidated": s.fleet.RefreshWeather()})
	}
}

func (s *Server) GeocodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		query := fleet.GeocodeQuery{Query: q.String("q"), Limit: q.Int("limit", 0)}
		if err := q.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeResult(s, w, r, s.fleet.Geocode(r.Context(), query))
	}
}

func (s *Server) ReverseGeocodeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := params(r)
		query := fleet.ReverseGeocodeQuery{Lat: q.Float("lat"), Lng: q.Float("lng")}
		if err := q.Err(); err != nil {
			s.writeError(w, r, err)
			return
		}
		writeResult(s, w, r, s.fleet.ReverseGeocode(r.Context(), query))
	}
}

func (s *Server) CacheStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.fleet.Cache().Stats())
	}
}
