package server

// Route path constants
// All console routes are defined here to keep handlers and tests in step
const (
	// Auth Routes
	RouteLogin       = "/login"
	RouteAuthLogin   = "/auth/login"
	RouteAuthLogout  = "/auth/logout"
	RouteAuthSession = "/auth/session"

	// System Routes
	RouteHealth   = "/health"
	RouteMetrics  = "/metrics"
	RouteFeatures = "/api/features"
	RouteManifest = "/manifest.webmanifest"
	RouteStatic   = "/static/"

	// Routes
	RouteRoutes         = "/api/routes"
	RouteRoute          = "/api/routes/{id}"
	RouteRouteAnalytics = "/api/routes/{id}/analytics"
	RouteRouteForecast  = "/api/routes/{id}/forecast"
	RouteRouteCalculate = "/api/routes/calculate"

	// Drivers
	RouteDrivers      = "/api/drivers"
	RouteDriver       = "/api/drivers/{id}"
	RouteDriverStatus = "/api/drivers/{id}/status"

	// Vehicles
	RouteVehicles        = "/api/vehicles"
	RouteVehicle         = "/api/vehicles/{id}"
	RouteVehicleFuel     = "/api/vehicles/{id}/fuel"
	RouteVehicleOdometer = "/api/vehicles/{id}/odometer"

	// Cargo
	RouteCargoList = "/api/cargo"
	RouteCargo     = "/api/cargo/{id}"

	// Weather & Geocoding
	RouteWeatherCurrent  = "/api/weather/current"
	RouteWeatherForecast = "/api/weather/forecast"
	RouteWeatherHazards  = "/api/weather/hazards"
	RouteWeatherRefresh  = "/api/weather/refresh"
	RouteGeocodeSearch   = "/api/geocoding/search"
	RouteGeocodeReverse  = "/api/geocoding/reverse"

	// Cache
	RouteCacheStats = "/api/cache/stats"

	// Notifications
	RouteNotifications        = "/api/notifications"
	RouteNotificationRead     = "/api/notifications/{id}/read"
	RouteNotificationsReadAll = "/api/notifications/read-all"
	RouteToasts               = "/api/notifications/toasts"
	RouteToast                = "/api/notifications/toasts/{id}"
	RouteNotificationStream   = "/ws/notifications"
)
