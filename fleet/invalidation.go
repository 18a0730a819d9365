package fleet

import (
	"time"

	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/querycache"
)

// Cached entities.
const (
	EntityRoute          = "Route"
	EntityRouteAnalytics = "RouteAnalytics"
	EntityDriver         = "Driver"
	EntityVehicle        = "Vehicle"
	EntityCargo          = "Cargo"
	EntityWeather        = "Weather"
	EntityGeocode        = "Geocode"
)

// Mutation names, also used as metric labels.
const (
	MutationCreateRoute        = "routes.create"
	MutationUpdateRoute        = "routes.update"
	MutationDeleteRoute        = "routes.delete"
	MutationUpdateDriverStatus = "drivers.updateStatus"
	MutationUpdateFuel         = "vehicles.updateFuel"
	MutationUpdateOdometer     = "vehicles.updateOdometer"
	MutationCreateCargo        = "cargo.create"
	MutationUpdateCargo        = "cargo.update"
)

// NewInvalidationTable declares what each fleet mutation makes stale.
func NewInvalidationTable() *querycache.InvalidationTable {
	return querycache.NewInvalidationTable().
		Entity(EntityRoute, EntityRouteAnalytics, EntityDriver, EntityVehicle, EntityCargo, EntityWeather, EntityGeocode).
		Mutation(MutationCreateRoute, querycache.InvalidatesList(EntityRoute)).
		Mutation(MutationUpdateRoute,
			querycache.InvalidatesListAndItem(EntityRoute),
			querycache.InvalidatesItem(EntityRouteAnalytics),
		).
		Mutation(MutationDeleteRoute,
			querycache.InvalidatesListAndItem(EntityRoute),
			querycache.InvalidatesItem(EntityRouteAnalytics),
		).
		Mutation(MutationUpdateDriverStatus, querycache.InvalidatesListAndItem(EntityDriver)).
		Mutation(MutationUpdateFuel, querycache.InvalidatesListAndItem(EntityVehicle)).
		Mutation(MutationUpdateOdometer, querycache.InvalidatesListAndItem(EntityVehicle)).
		Mutation(MutationCreateCargo, querycache.InvalidatesList(EntityCargo)).
		Mutation(MutationUpdateCargo, querycache.InvalidatesListAndItem(EntityCargo))
}

// NewPolicy maps the configured staleness windows onto the fleet entities.
func NewPolicy(ttls config.CacheTTLs) querycache.Policy {
	return querycache.Policy{
		Default: ttls.Default,
		PerEntity: map[string]time.Duration{
			EntityWeather:        ttls.Weather,
			EntityRouteAnalytics: ttls.Analytics,
			EntityGeocode:        ttls.Geocoding,
		},
	}
}
