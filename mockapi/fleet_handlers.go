package mockapi

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/fleet"
	"github.com/jrsteele09/fleet-console/internal/utils"
)

// getOr404 writes item or a 404 for a missing record.
func getOr404[T any](w http.ResponseWriter, item T, err error) {
	if err != nil {
		writeMessage(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// validBody decodes and validates a request body, answering 400 on failure.
func validBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if !decodeBody(r, v) {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := apiclient.Validate(v); err != nil {
		writeMessage(w, http.StatusBadRequest, apiclient.UserMessage(err))
		return false
	}
	return true
}

func (s *Server) ListRoutesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, driverID := r.URL.Query().Get("status"), r.URL.Query().Get("driverId")
		writeJSON(w, http.StatusOK, s.data.routes.List(func(rt fleet.Route) bool {
			return (status == "" || rt.Status == status) && (driverID == "" || rt.DriverID == driverID)
		}))
	}
}

func (s *Server) GetRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		route, err := s.data.routes.Get(r.PathValue("id"))
		getOr404(w, route, err)
	}
}

func (s *Server) CreateRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in fleet.RouteInput
		if !validBody(w, r, &in) {
			return
		}
		plan := planRoute(in.Origin, in.Destination, in.Waypoints)
		now := s.nowFunc()
		route := fleet.Route{
			ID:                   newID("route"),
			Name:                 in.Name,
			Status:               fleet.RouteStatusPlanned,
			Origin:               in.Origin,
			Destination:          in.Destination,
			Waypoints:            in.Waypoints,
			DriverID:             in.DriverID,
			VehicleID:            in.VehicleID,
			CargoIDs:             in.CargoIDs,
			DistanceKm:           plan.DistanceKm,
			EstimatedDurationMin: plan.DurationMin,
			RiskScore:            plan.RiskScore,
			RTOCompliant:         plan.RTOCompliant,
			ScheduledStart:       in.ScheduledStart,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		s.data.routes.Upsert(route)
		writeJSON(w, http.StatusCreated, route)
	}
}

func (s *Server) UpdateRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.RouteUpdate
		upd.ID = r.PathValue("id")
		if !validBody(w, r, &upd) {
			return
		}
		route, err := s.data.routes.Update(upd.ID, func(rt *fleet.Route) {
			rt.Name = utils.ValueOr(upd.Name, rt.Name)
			rt.Status = utils.ValueOr(upd.Status, rt.Status)
			rt.DriverID = utils.ValueOr(upd.DriverID, rt.DriverID)
			rt.VehicleID = utils.ValueOr(upd.VehicleID, rt.VehicleID)
			rt.UpdatedAt = s.nowFunc()
		})
		getOr404(w, route, err)
	}
}

func (s *Server) DeleteRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.data.routes.Delete(r.PathValue("id")); err != nil {
			writeMessage(w, http.StatusNotFound, "not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ListDriversHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		writeJSON(w, http.StatusOK, s.data.drivers.List(func(d fleet.Driver) bool {
			return status == "" || d.Status == status
		}))
	}
}

func (s *Server) GetDriverHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driver, err := s.data.drivers.Get(r.PathValue("id"))
		getOr404(w, driver, err)
	}
}

func (s *Server) UpdateDriverStatusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.DriverStatusUpdate
		upd.DriverID = r.PathValue("id")
		if !validBody(w, r, &upd) {
			return
		}
		driver, err := s.data.drivers.Update(upd.DriverID, func(d *fleet.Driver) {
			d.Status = upd.Status
			if upd.Location != nil {
				d.Location = upd.Location
			}
			d.UpdatedAt = s.nowFunc()
		})
		getOr404(w, driver, err)
	}
}

func (s *Server) ListVehiclesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := r.URL.Query().Get("status")
		writeJSON(w, http.StatusOK, s.data.vehicles.List(func(v fleet.Vehicle) bool {
			return status == "" || v.Status == status
		}))
	}
}

func (s *Server) GetVehicleHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vehicle, err := s.data.vehicles.Get(r.PathValue("id"))
		getOr404(w, vehicle, err)
	}
}

func (s *Server) UpdateFuelHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.FuelUpdate
		upd.VehicleID = r.PathValue("id")
		if !validBody(w, r, &upd) {
			return
		}
		vehicle, err := s.data.vehicles.Update(upd.VehicleID, func(v *fleet.Vehicle) {
			v.FuelLevel = upd.FuelLevel
			v.UpdatedAt = s.nowFunc()
		})
		getOr404(w, vehicle, err)
	}
}

func (s *Server) UpdateOdometerHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.OdometerUpdate
		upd.VehicleID = r.PathValue("id")
		if !validBody(w, r, &upd) {
			return
		}
		current, err := s.data.vehicles.Get(upd.VehicleID)
		if err != nil {
			writeMessage(w, http.StatusNotFound, "not found")
			return
		}
		if upd.OdometerKm < current.OdometerKm {
			writeMessage(w, http.StatusBadRequest, "Odometer readings cannot go backwards.")
			return
		}
		vehicle, err := s.data.vehicles.Update(upd.VehicleID, func(v *fleet.Vehicle) {
			v.OdometerKm = upd.OdometerKm
			v.UpdatedAt = s.nowFunc()
		})
		getOr404(w, vehicle, err)
	}
}

func (s *Server) ListCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, routeID := r.URL.Query().Get("status"), r.URL.Query().Get("routeId")
		writeJSON(w, http.StatusOK, s.data.cargo.List(func(c fleet.Cargo) bool {
			return (status == "" || c.Status == status) && (routeID == "" || c.RouteID == routeID)
		}))
	}
}

func (s *Server) GetCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cargo, err := s.data.cargo.Get(r.PathValue("id"))
		getOr404(w, cargo, err)
	}
}

func (s *Server) CreateCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in fleet.CargoInput
		if !validBody(w, r, &in) {
			return
		}
		cargo := fleet.Cargo{
			ID:              newID("cargo"),
			Description:     in.Description,
			WeightKg:        in.WeightKg,
			VolumeM3:        in.VolumeM3,
			Status:          fleet.CargoStatusPending,
			RouteID:         in.RouteID,
			Hazardous:       in.Hazardous,
			DeliveryAddress: in.DeliveryAddress,
			UpdatedAt:       s.nowFunc(),
		}
		s.data.cargo.Upsert(cargo)
		writeJSON(w, http.StatusCreated, cargo)
	}
}

func (s *Server) UpdateCargoHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var upd fleet.CargoUpdate
		upd.ID = r.PathValue("id")
		if !validBody(w, r, &upd) {
			return
		}
		cargo, err := s.data.cargo.Update(upd.ID, func(c *fleet.Cargo) {
			c.Status = utils.ValueOr(upd.Status, c.Status)
			c.RouteID = utils.ValueOr(upd.RouteID, c.RouteID)
			c.WeightKg = utils.ValueOr(upd.WeightKg, c.WeightKg)
			c.UpdatedAt = s.nowFunc()
		})
		getOr404(w, cargo, err)
	}
}
