package config

import "time"

type Config interface {
	EnvConfig
	CorsConfig
	APIConfig
	CacheConfig
	NotifyConfig
	SessionConfig
	FeatureConfig
	MockConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetEnv() string
	GetLogLevel() string
	GetLogFormat() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

// APIConfig describes the remote fleet backend and the third-party providers
// the dashboard widgets talk to.
type APIConfig interface {
	GetAPIBaseURL() string
	GetAPITimeout() time.Duration
	GetAPIRateLimit() float64
	GetAPIRateBurst() int
	GetMapAPIKey() string
	GetWeatherAPIKey() string
}

type CacheConfig interface {
	GetCacheMaxEntries() int
	GetCacheTTLs() CacheTTLs
}

type NotifyConfig interface {
	GetNotifyTransport() string
	GetWebSocketURL() string
	GetNATSURL() string
	GetNATSSubject() string
	GetSimulatedInterval() time.Duration
}

type SessionConfig interface {
	GetSessionStore() string
	GetSessionStorePath() string
	GetRefreshLeeway() time.Duration
	GetLoginPath() string
}

type FeatureConfig interface {
	DevToolsEnabled() bool
	AnalyticsEnabled() bool
	PWAEnabled() bool
	RealTimeEnabled() bool
}

// MockConfig drives the mock fleet backend used for local development.
type MockConfig interface {
	GetMockPort() string
	GetMockJWTSecret() string
	GetMockAccessTokenTTL() time.Duration
	GetMockRefreshTokenTTL() time.Duration
	GetMockLoginRate() float64
	GetMockPushInterval() time.Duration
	MockEmbeddedNATSEnabled() bool
	GetMockUsers() map[string]string
}

type mainConfig struct {
	settings *Settings
}

var _ Config = mainConfig{}

// New returns the built-in defaults without consulting the environment.
func New() Config {
	return mainConfig{settings: defaultSettings()}
}

// FromSettings wraps already loaded settings.
func FromSettings(s *Settings) Config {
	return mainConfig{settings: s}
}
