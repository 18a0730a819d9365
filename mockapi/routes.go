package mockapi

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET /health", s.HealthHandler())

	// AUTH
	s.RegisterRouteFunc("POST /api/auth/login", s.LoginHandler())
	s.RegisterRouteFunc("POST /api/auth/refresh", s.RefreshHandler())
	s.RegisterRouteFunc("POST /api/auth/logout", s.LogoutHandler())

	// ROUTES
	s.RegisterRouteFunc("GET /api/routes", s.RequireAuth(s.ListRoutesHandler()))
	s.RegisterRouteFunc("POST /api/routes", s.RequireAuth(s.CreateRouteHandler()))
	s.RegisterRouteFunc("POST /api/routes/calculate", s.RequireAuth(s.CalculateRouteHandler()))
	s.RegisterRouteFunc("GET /api/routes/{id}", s.RequireAuth(s.GetRouteHandler()))
	s.RegisterRouteFunc("PUT /api/routes/{id}", s.RequireAuth(s.UpdateRouteHandler()))
	s.RegisterRouteFunc("DELETE /api/routes/{id}", s.RequireAuth(s.DeleteRouteHandler()))
	s.RegisterRouteFunc("GET /api/routes/{id}/analytics", s.RequireAuth(s.RouteAnalyticsHandler()))

	// DRIVERS
	s.RegisterRouteFunc("GET /api/drivers", s.RequireAuth(s.ListDriversHandler()))
	s.RegisterRouteFunc("GET /api/drivers/{id}", s.RequireAuth(s.GetDriverHandler()))
	s.RegisterRouteFunc("PATCH /api/drivers/{id}/status", s.RequireAuth(s.UpdateDriverStatusHandler()))

	// VEHICLES
	s.RegisterRouteFunc("GET /api/vehicles", s.RequireAuth(s.ListVehiclesHandler()))
	s.RegisterRouteFunc("GET /api/vehicles/{id}", s.RequireAuth(s.GetVehicleHandler()))
	s.RegisterRouteFunc("PATCH /api/vehicles/{id}/fuel", s.RequireAuth(s.UpdateFuelHandler()))
	s.RegisterRouteFunc("PATCH /api/vehicles/{id}/odometer", s.RequireAuth(s.UpdateOdometerHandler()))

	// CARGO
	s.RegisterRouteFunc("GET /api/cargo", s.RequireAuth(s.ListCargoHandler()))
	s.RegisterRouteFunc("POST /api/cargo", s.RequireAuth(s.CreateCargoHandler()))
	s.RegisterRouteFunc("GET /api/cargo/{id}", s.RequireAuth(s.GetCargoHandler()))
	s.RegisterRouteFunc("PUT /api/cargo/{id}", s.RequireAuth(s.UpdateCargoHandler()))

	// WEATHER & GEOCODING
	s.RegisterRouteFunc("GET /api/weather/current", s.RequireAuth(s.CurrentWeatherHandler()))
	s.RegisterRouteFunc("GET /api/weather/forecast", s.RequireAuth(s.ForecastHandler()))
	s.RegisterRouteFunc("GET /api/weather/routes/{id}/forecast", s.RequireAuth(s.RouteForecastHandler()))
	s.RegisterRouteFunc("GET /api/weather/hazards", s.RequireAuth(s.HazardsHandler()))
	s.RegisterRouteFunc("GET /api/geocoding/search", s.RequireAuth(s.GeocodeHandler()))
	s.RegisterRouteFunc("GET /api/geocoding/reverse", s.RequireAuth(s.ReverseGeocodeHandler()))

	// NOTIFICATIONS
	s.RegisterRouteFunc("POST /api/notifications", s.RequireAuth(s.PublishNotificationHandler()))
	s.RegisterRouteFunc("GET /ws/notifications", s.RequireAuth(s.NotificationFeedHandler()))
}
