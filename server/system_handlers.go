package server

import (
	"net/http"
)

// HealthHandler reports liveness along with the session and push transport state.
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"session":       s.sessions.State().String(),
			"notifications": s.notifications.IsConnected(),
		})
	}
}

type featuresResponse struct {
	AppName   string `json:"appName"`
	Env       string `json:"env"`
	DevTools  bool   `json:"devTools"`
	Analytics bool   `json:"analytics"`
	PWA       bool   `json:"pwa"`
	RealTime  bool   `json:"realTime"`
}

func (s *Server) FeaturesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, featuresResponse{
			AppName:   s.config.GetAppName(),
			Env:       s.env,
			DevTools:  s.config.DevToolsEnabled(),
			Analytics: s.config.AnalyticsEnabled(),
			PWA:       s.config.PWAEnabled(),
			RealTime:  s.config.RealTimeEnabled(),
		})
	}
}

type dashboardResponse struct {
	Username      string `json:"username"`
	UnreadCount   int    `json:"unreadCount"`
	Connected     bool   `json:"connected"`
	CachedQueries int    `json:"cachedQueries"`
}

// DashboardHandler is the landing view after sign in.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dashboardResponse{
			Username:      s.sessions.Snapshot().Username,
			UnreadCount:   s.notifications.UnreadCount(),
			Connected:     s.notifications.IsConnected(),
			CachedQueries: s.fleet.Cache().Len(),
		})
	}
}
