package config

import (
	"sort"
	"strings"
)

// AllowedOrigins is the set of browser origins the console answers CORS and
// websocket upgrades for. Origins compare case-insensitively and without a
// trailing slash.
type AllowedOrigins map[string]struct{}

const wildcardOrigin = "*"

func NewAllowedOrigins(origins ...string) AllowedOrigins {
	allowed := AllowedOrigins{}
	for _, o := range origins {
		if o = normaliseOrigin(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return allowed
}

func normaliseOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[normaliseOrigin(origin)]
	return ok
}

// AllowsAny reports whether "*" was configured.
func (a AllowedOrigins) AllowsAny() bool {
	_, ok := a[wildcardOrigin]
	return ok
}

func (a AllowedOrigins) String() string {
	origins := make([]string, 0, len(a))
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

func (c mainConfig) GetAllowedOrigins() AllowedOrigins {
	return NewAllowedOrigins(c.settings.CORS.AllowedOrigins...)
}

func (mainConfig) GetAllowedMethods() string {
	return "GET, POST, PUT, PATCH, DELETE, OPTIONS"
}

func (mainConfig) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
