package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when CONFIG_PATH is not set.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

type Settings struct {
	App       AppSettings      `koanf:"app"`
	Log       LogSettings      `koanf:"log"`
	API       APISettings      `koanf:"api"`
	Providers ProviderSettings `koanf:"providers"`
	Cache     CacheSettings    `koanf:"cache"`
	Notify    NotifySettings   `koanf:"notify"`
	Session   SessionSettings  `koanf:"session"`
	Features  FeatureSettings  `koanf:"features"`
	CORS      CORSSettings     `koanf:"cors"`
	Mock      MockSettings     `koanf:"mock"`
}

type AppSettings struct {
	Name       string `koanf:"name"`
	Env        string `koanf:"env"`
	Port       string `koanf:"port"`
	DataFolder string `koanf:"data_folder"`
}

type LogSettings struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type APISettings struct {
	BaseURL   string        `koanf:"base_url"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit"`
	RateBurst int           `koanf:"rate_burst"`
}

type ProviderSettings struct {
	MapAPIKey     string `koanf:"map_api_key"`
	WeatherAPIKey string `koanf:"weather_api_key"`
}

type CacheSettings struct {
	MaxEntries int       `koanf:"max_entries"`
	TTL        CacheTTLs `koanf:"ttl"`
}

// CacheTTLs holds the staleness window per cached entity.
type CacheTTLs struct {
	Default   time.Duration `koanf:"default"`
	Weather   time.Duration `koanf:"weather"`
	Analytics time.Duration `koanf:"analytics"`
	Geocoding time.Duration `koanf:"geocoding"`
}

type NotifySettings struct {
	Transport         string        `koanf:"transport"`
	WebSocketURL      string        `koanf:"websocket_url"`
	NATSURL           string        `koanf:"nats_url"`
	NATSSubject       string        `koanf:"nats_subject"`
	SimulatedInterval time.Duration `koanf:"simulated_interval"`
}

type SessionSettings struct {
	Store         string        `koanf:"store"`
	StorePath     string        `koanf:"store_path"`
	RefreshLeeway time.Duration `koanf:"refresh_leeway"`
	LoginPath     string        `koanf:"login_path"`
}

type FeatureSettings struct {
	DevTools  bool `koanf:"dev_tools"`
	Analytics bool `koanf:"analytics"`
	PWA       bool `koanf:"pwa"`
	RealTime  bool `koanf:"real_time"`
}

type CORSSettings struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type MockSettings struct {
	Port            string            `koanf:"port"`
	JWTSecret       string            `koanf:"jwt_secret"`
	AccessTokenTTL  time.Duration     `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration     `koanf:"refresh_token_ttl"`
	LoginRate       float64           `koanf:"login_rate"` // attempts per second per username
	PushInterval    time.Duration     `koanf:"push_interval"`
	EmbeddedNATS    bool              `koanf:"embedded_nats"`
	Users           map[string]string `koanf:"users"` // username to password
}

func defaultSettings() *Settings {
	return &Settings{
		App: AppSettings{
			Name:       "Fleet Console",
			Env:        "DEV",
			Port:       "8080",
			DataFolder: "./data",
		},
		Log: LogSettings{
			Level:  "info",
			Format: "console",
		},
		API: APISettings{
			BaseURL:   "http://localhost:8090/api",
			Timeout:   30 * time.Second,
			RateLimit: 0,
			RateBurst: 10,
		},
		Cache: CacheSettings{
			MaxEntries: 1000,
			TTL: CacheTTLs{
				Default:   5 * time.Minute,
				Weather:   10 * time.Minute,
				Analytics: 60 * time.Minute,
				Geocoding: 120 * time.Minute,
			},
		},
		Notify: NotifySettings{
			Transport:         "simulated",
			WebSocketURL:      "ws://localhost:8090/ws/notifications",
			NATSURL:           "nats://127.0.0.1:4222",
			NATSSubject:       "fleet.notifications",
			SimulatedInterval: 30 * time.Second,
		},
		Session: SessionSettings{
			Store:         "badger",
			StorePath:     "./data/session",
			RefreshLeeway: 30 * time.Second,
			LoginPath:     "/login",
		},
		Features: FeatureSettings{
			RealTime: true,
		},
		CORS: CORSSettings{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Mock: MockSettings{
			Port:            "8090",
			JWTSecret:       "fleet-mockd-dev-secret",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			LoginRate:       1,
			PushInterval:    20 * time.Second,
			Users:           map[string]string{"dispatch": "dispatch123"},
		},
	}
}

// envPaths maps the environment variables the dashboard has always used onto
// koanf paths. Anything not listed here is ignored.
var envPaths = map[string]string{
	"APP_NAME":            "app.name",
	"ENV":                 "app.env",
	"PORT":                "app.port",
	"FOLDER":              "app.data_folder",
	"LOG_LEVEL":           "log.level",
	"LOG_FORMAT":          "log.format",
	"API_BASE_URL":        "api.base_url",
	"API_TIMEOUT":         "api.timeout",
	"API_RATE_LIMIT":      "api.rate_limit",
	"API_RATE_BURST":      "api.rate_burst",
	"MAP_API_KEY":         "providers.map_api_key",
	"WEATHER_API_KEY":     "providers.weather_api_key",
	"CACHE_MAX_ENTRIES":   "cache.max_entries",
	"CACHE_TTL_DEFAULT":   "cache.ttl.default",
	"CACHE_TTL_WEATHER":   "cache.ttl.weather",
	"CACHE_TTL_ANALYTICS": "cache.ttl.analytics",
	"CACHE_TTL_GEOCODING": "cache.ttl.geocoding",
	"NOTIFY_TRANSPORT":    "notify.transport",
	"WS_URL":              "notify.websocket_url",
	"NATS_URL":            "notify.nats_url",
	"NATS_SUBJECT":        "notify.nats_subject",
	"SIMULATED_INTERVAL":  "notify.simulated_interval",
	"SESSION_STORE":       "session.store",
	"SESSION_STORE_PATH":  "session.store_path",
	"REFRESH_LEEWAY":      "session.refresh_leeway",
	"LOGIN_PATH":          "session.login_path",
	"ENABLE_DEV_TOOLS":    "features.dev_tools",
	"ENABLE_ANALYTICS":    "features.analytics",
	"ENABLE_PWA":          "features.pwa",
	"ENABLE_REAL_TIME":    "features.real_time",
	"CORS_ORIGINS":        "cors.allowed_origins",
	"MOCK_PORT":           "mock.port",
	"MOCK_JWT_SECRET":     "mock.jwt_secret",
	"MOCK_TOKEN_TTL":      "mock.access_token_ttl",
	"MOCK_REFRESH_TTL":    "mock.refresh_token_ttl",
	"MOCK_LOGIN_RATE":     "mock.login_rate",
	"MOCK_PUSH_INTERVAL":  "mock.push_interval",
	"MOCK_EMBEDDED_NATS":  "mock.embedded_nats",
}

func envTransformFunc(key string) string {
	return envPaths[strings.ToUpper(key)]
}

// Load layers defaults, an optional YAML file and the environment (highest
// priority) into a Config.
func Load() (Config, error) {
	settings, err := LoadSettings()
	if err != nil {
		return nil, err
	}
	return FromSettings(settings), nil
}

func LoadSettings() (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitCommaSeparated(k, "cors.allowed_origins"); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := k.Unmarshal("", settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return settings, nil
}

// Validate rejects settings the console cannot start with.
func (s *Settings) Validate() error {
	if s.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch strings.ToLower(s.Notify.Transport) {
	case "simulated", "websocket", "nats":
	default:
		return fmt.Errorf("notify.transport must be simulated, websocket or nats, got %q", s.Notify.Transport)
	}
	switch strings.ToLower(s.Session.Store) {
	case "memory", "badger":
	default:
		return fmt.Errorf("session.store must be memory or badger, got %q", s.Session.Store)
	}
	if s.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive")
	}
	return nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func splitCommaSeparated(k *koanf.Koanf, path string) error {
	strVal, ok := k.Get(path).(string)
	if !ok || strVal == "" {
		return nil
	}
	parts := strings.Split(strVal, ",")
	trimmed := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			trimmed = append(trimmed, p)
		}
	}
	if err := k.Set(path, trimmed); err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	return nil
}
