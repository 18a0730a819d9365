package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	// SYSTEM
	s.RegisterRouteFunc("GET "+RouteHealth, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.Handler())
	s.RegisterRouteFunc("OPTIONS /", s.PreflightHandler())
	s.RegisterRouteHandler("GET "+RouteFeatures, ChainMiddleware(s.FeaturesHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteManifest, ChainMiddleware(s.ManifestHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("GET "+RouteStatic, ChainMiddleware(s.StaticHandler().ServeHTTP, s.HTMLMiddleWare()...))

	// LOGIN
	s.RegisterRouteHandler("GET "+RouteLogin, ChainMiddleware(s.LoginPageHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogin, ChainMiddleware(s.LoginSubmissionHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthSession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.DashboardHandler(), s.GuardedMiddleware()...))

	// ROUTES
	s.RegisterRouteHandler("GET "+RouteRoutes, ChainMiddleware(s.ListRoutesHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRoutes, ChainMiddleware(s.CreateRouteHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteRouteCalculate, ChainMiddleware(s.CalculateRouteHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRoute, ChainMiddleware(s.GetRouteHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteRoute, ChainMiddleware(s.UpdateRouteHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteRoute, ChainMiddleware(s.DeleteRouteHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRouteAnalytics, ChainMiddleware(s.RouteAnalyticsHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteRouteForecast, ChainMiddleware(s.RouteForecastHandler(), s.GuardedMiddleware()...))

	// DRIVERS
	s.RegisterRouteHandler("GET "+RouteDrivers, ChainMiddleware(s.ListDriversHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteDriver, ChainMiddleware(s.GetDriverHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("PATCH "+RouteDriverStatus, ChainMiddleware(s.UpdateDriverStatusHandler(), s.GuardedMiddleware()...))

	// VEHICLES
	s.RegisterRouteHandler("GET "+RouteVehicles, ChainMiddleware(s.ListVehiclesHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteVehicle, ChainMiddleware(s.GetVehicleHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("PATCH "+RouteVehicleFuel, ChainMiddleware(s.UpdateFuelHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("PATCH "+RouteVehicleOdometer, ChainMiddleware(s.UpdateOdometerHandler(), s.GuardedMiddleware()...))

	// CARGO
	s.RegisterRouteHandler("GET "+RouteCargoList, ChainMiddleware(s.ListCargoHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteCargoList, ChainMiddleware(s.CreateCargoHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteCargo, ChainMiddleware(s.GetCargoHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("PUT "+RouteCargo, ChainMiddleware(s.UpdateCargoHandler(), s.GuardedMiddleware()...))

	// WEATHER & GEOCODING
	s.RegisterRouteHandler("GET "+RouteWeatherCurrent, ChainMiddleware(s.CurrentWeatherHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWeatherForecast, ChainMiddleware(s.ForecastHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteWeatherHazards, ChainMiddleware(s.HazardsHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteWeatherRefresh, ChainMiddleware(s.RefreshWeatherHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteGeocodeSearch, ChainMiddleware(s.GeocodeHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteGeocodeReverse, ChainMiddleware(s.ReverseGeocodeHandler(), s.GuardedMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteCacheStats, ChainMiddleware(s.CacheStatsHandler(), s.GuardedMiddleware()...))

	// NOTIFICATIONS
	s.RegisterRouteHandler("GET "+RouteNotifications, ChainMiddleware(s.ListNotificationsHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteNotifications, ChainMiddleware(s.ClearNotificationsHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteNotificationRead, ChainMiddleware(s.MarkNotificationReadHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteNotificationsReadAll, ChainMiddleware(s.MarkAllNotificationsReadHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteToasts, ChainMiddleware(s.ToastsHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("DELETE "+RouteToast, ChainMiddleware(s.DismissToastHandler(), s.GuardedMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteNotificationStream, ChainMiddleware(s.NotificationStreamHandler(), s.GuardedMiddleware()...))
}
