package config

import (
	"fmt"
	"strings"
	"time"
)

func (c mainConfig) GetPort() string {
	port := c.settings.App.Port
	if port == "" {
		port = "8080"
	}
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (c mainConfig) GetAppName() string {
	return c.settings.App.Name
}

func (c mainConfig) GetDataFolder() string {
	return c.settings.App.DataFolder
}

func (c mainConfig) GetEnv() string {
	if c.settings.App.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(c.settings.App.Env)
}

func (c mainConfig) GetLogLevel() string {
	return c.settings.Log.Level
}

func (c mainConfig) GetLogFormat() string {
	return c.settings.Log.Format
}

// GetAPIBaseURL returns the fleet backend base URL without a trailing slash
// (e.g. "https://api.fleet.example.com/v1").
func (c mainConfig) GetAPIBaseURL() string {
	return strings.TrimRight(c.settings.API.BaseURL, "/")
}

func (c mainConfig) GetAPITimeout() time.Duration {
	if c.settings.API.Timeout <= 0 {
		return 30 * time.Second
	}
	return c.settings.API.Timeout
}

// GetAPIRateLimit is the client-side request budget per second. Zero disables limiting.
func (c mainConfig) GetAPIRateLimit() float64 {
	return c.settings.API.RateLimit
}

func (c mainConfig) GetAPIRateBurst() int {
	if c.settings.API.RateBurst <= 0 {
		return 1
	}
	return c.settings.API.RateBurst
}

func (c mainConfig) GetMapAPIKey() string {
	return c.settings.Providers.MapAPIKey
}

func (c mainConfig) GetWeatherAPIKey() string {
	return c.settings.Providers.WeatherAPIKey
}

func (c mainConfig) GetCacheMaxEntries() int {
	return c.settings.Cache.MaxEntries
}

func (c mainConfig) GetCacheTTLs() CacheTTLs {
	return c.settings.Cache.TTL
}

func (c mainConfig) GetNotifyTransport() string {
	return strings.ToLower(c.settings.Notify.Transport)
}

func (c mainConfig) GetWebSocketURL() string {
	return c.settings.Notify.WebSocketURL
}

func (c mainConfig) GetNATSURL() string {
	return c.settings.Notify.NATSURL
}

func (c mainConfig) GetNATSSubject() string {
	return c.settings.Notify.NATSSubject
}

func (c mainConfig) GetSimulatedInterval() time.Duration {
	return c.settings.Notify.SimulatedInterval
}

func (c mainConfig) GetSessionStore() string {
	return strings.ToLower(c.settings.Session.Store)
}

func (c mainConfig) GetSessionStorePath() string {
	return c.settings.Session.StorePath
}

func (c mainConfig) GetRefreshLeeway() time.Duration {
	return c.settings.Session.RefreshLeeway
}

func (c mainConfig) GetLoginPath() string {
	if c.settings.Session.LoginPath == "" {
		return "/login"
	}
	return c.settings.Session.LoginPath
}

func (c mainConfig) DevToolsEnabled() bool  { return c.settings.Features.DevTools }
func (c mainConfig) AnalyticsEnabled() bool { return c.settings.Features.Analytics }
func (c mainConfig) PWAEnabled() bool       { return c.settings.Features.PWA }
func (c mainConfig) RealTimeEnabled() bool  { return c.settings.Features.RealTime }

func (c mainConfig) GetMockPort() string {
	port := c.settings.Mock.Port
	if port == "" {
		port = "8090"
	}
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (c mainConfig) GetMockJWTSecret() string {
	return c.settings.Mock.JWTSecret
}

func (c mainConfig) GetMockAccessTokenTTL() time.Duration {
	return c.settings.Mock.AccessTokenTTL
}

func (c mainConfig) GetMockRefreshTokenTTL() time.Duration {
	return c.settings.Mock.RefreshTokenTTL
}

func (c mainConfig) GetMockLoginRate() float64 {
	return c.settings.Mock.LoginRate
}

func (c mainConfig) GetMockPushInterval() time.Duration {
	return c.settings.Mock.PushInterval
}

func (c mainConfig) MockEmbeddedNATSEnabled() bool {
	return c.settings.Mock.EmbeddedNATS
}

func (c mainConfig) GetMockUsers() map[string]string {
	return c.settings.Mock.Users
}
