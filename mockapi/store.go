package mockapi

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/fleet-console/fleet"
	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
)

// records is an id keyed table with stable listing order.
type records[T any] struct {
	lock  sync.RWMutex
	items map[string]T
	id    func(T) string
}

func newRecords[T any](id func(T) string, seed ...T) *records[T] {
	r := &records[T]{items: make(map[string]T), id: id}
	for _, item := range seed {
		r.items[id(item)] = item
	}
	return r
}

func (r *records[T]) Get(id string) (T, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, apperrors.Wrapf(apperrors.ErrNotFound, "record %s", id)
	}
	return item, nil
}

func (r *records[T]) List(keep func(T) bool) []T {
	r.lock.RLock()
	defer r.lock.RUnlock()
	list := make([]T, 0, len(r.items))
	for _, item := range r.items {
		if keep == nil || keep(item) {
			list = append(list, item)
		}
	}
	sort.Slice(list, func(i, j int) bool { return r.id(list[i]) < r.id(list[j]) })
	return list
}

func (r *records[T]) Upsert(item T) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.items[r.id(item)] = item
}

// Update applies change to the stored item under the write lock.
func (r *records[T]) Update(id string, change func(*T)) (T, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	item, ok := r.items[id]
	if !ok {
		var zero T
		return zero, apperrors.Wrapf(apperrors.ErrNotFound, "updating record %s", id)
	}
	change(&item)
	r.items[id] = item
	return item, nil
}

func (r *records[T]) Delete(id string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.items[id]; !ok {
		return apperrors.Wrapf(apperrors.ErrNotFound, "deleting record %s", id)
	}
	delete(r.items, id)
	return nil
}

type fleetData struct {
	routes   *records[fleet.Route]
	drivers  *records[fleet.Driver]
	vehicles *records[fleet.Vehicle]
	cargo    *records[fleet.Cargo]
}

func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func seedFleetData(now time.Time) *fleetData {
	sydney := fleet.Location{Lat: -33.8688, Lng: 151.2093, Address: "Sydney NSW"}
	newcastle := fleet.Location{Lat: -32.9283, Lng: 151.7817, Address: "Newcastle NSW"}
	wollongong := fleet.Location{Lat: -34.4278, Lng: 150.8931, Address: "Wollongong NSW"}

	return &fleetData{
		routes: newRecords(func(r fleet.Route) string { return r.ID },
			fleet.Route{
				ID: "route-1", Name: "Sydney to Newcastle", Status: fleet.RouteStatusActive,
				Origin: sydney, Destination: newcastle, DriverID: "driver-1", VehicleID: "vehicle-1",
				CargoIDs: []string{"cargo-1"}, DistanceKm: 162, EstimatedDurationMin: 130,
				RiskScore: 0.32, RTOCompliant: true, CreatedAt: now, UpdatedAt: now,
			},
			fleet.Route{
				ID: "route-2", Name: "Sydney to Wollongong", Status: fleet.RouteStatusPlanned,
				Origin: sydney, Destination: wollongong, DriverID: "driver-2", VehicleID: "vehicle-2",
				DistanceKm: 85, EstimatedDurationMin: 75, RiskScore: 0.18, RTOCompliant: true,
				CreatedAt: now, UpdatedAt: now,
			},
		),
		drivers: newRecords(func(d fleet.Driver) string { return d.ID },
			fleet.Driver{ID: "driver-1", Name: "Alex Morgan", LicenseNumber: "NSW-HC-10422", Status: fleet.DriverStatusOnRoute,
				CurrentRouteID: "route-1", VehicleID: "vehicle-1", Location: &sydney, HoursDrivenToday: 3.5, UpdatedAt: now},
			fleet.Driver{ID: "driver-2", Name: "Sam Patel", LicenseNumber: "NSW-MC-20981", Status: fleet.DriverStatusAvailable,
				VehicleID: "vehicle-2", UpdatedAt: now},
			fleet.Driver{ID: "driver-3", Name: "Jordan Lee", LicenseNumber: "NSW-HR-33310", Status: fleet.DriverStatusOffDuty,
				UpdatedAt: now},
		),
		vehicles: newRecords(func(v fleet.Vehicle) string { return v.ID },
			fleet.Vehicle{ID: "vehicle-1", Registration: "FLT-001", Make: "Isuzu", Model: "FVR 165-300", Type: "rigid",
				Status: fleet.VehicleStatusActive, FuelLevel: 64, OdometerKm: 182340, CapacityKg: 8000,
				DriverID: "driver-1", NextServiceKm: 190000, UpdatedAt: now},
			fleet.Vehicle{ID: "vehicle-2", Registration: "FLT-002", Make: "Hino", Model: "300 Series", Type: "light",
				Status: fleet.VehicleStatusActive, FuelLevel: 88, OdometerKm: 40210, CapacityKg: 4500,
				DriverID: "driver-2", NextServiceKm: 45000, UpdatedAt: now},
			fleet.Vehicle{ID: "vehicle-3", Registration: "FLT-003", Make: "Volvo", Model: "FH16", Type: "prime_mover",
				Status: fleet.VehicleStatusMaintenance, FuelLevel: 12, OdometerKm: 612000, CapacityKg: 26000,
				NextServiceKm: 612500, UpdatedAt: now},
		),
		cargo: newRecords(func(c fleet.Cargo) string { return c.ID },
			fleet.Cargo{ID: "cargo-1", Description: "Palletised groceries", WeightKg: 5200, VolumeM3: 28,
				Status: fleet.CargoStatusInTransit, RouteID: "route-1", DeliveryAddress: "Newcastle DC", UpdatedAt: now},
			fleet.Cargo{ID: "cargo-2", Description: "Pool chlorine", WeightKg: 900, VolumeM3: 3, Hazardous: true,
				Status: fleet.CargoStatusPending, DeliveryAddress: "Wollongong Aquatic Centre", UpdatedAt: now},
		),
	}
}
