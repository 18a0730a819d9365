package server

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/fleet"
	"github.com/jrsteele09/fleet-console/guard"
	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/notify"
	"github.com/jrsteele09/fleet-console/session"
)

// Deps are the long lived services the console server fronts.
type Deps struct {
	Sessions      *session.Manager
	Fleet         *fleet.Service
	Notifications *notify.Channel
}

type Server struct {
	env           string // Environment (e.g., "DEV", "PROD")
	mux           *http.ServeMux
	routes        []string
	config        config.Config
	sessions      *session.Manager
	guard         *guard.Guard
	fleet         *fleet.Service
	notifications *notify.Channel
	upgrader      websocket.Upgrader
	templates     *template.Template
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if deps.Sessions == nil || deps.Fleet == nil || deps.Notifications == nil {
		return nil, errors.New("[Server New] sessions, fleet and notifications are required")
	}

	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		sessions:      deps.Sessions,
		guard:         guard.New(deps.Sessions, guard.WithLoginPath(cfg.GetLoginPath())),
		fleet:         deps.Fleet,
		notifications: deps.Notifications,
		templates:     templates,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Guard exposes the route guard so the process can watch session changes.
func (s *Server) Guard() *guard.Guard {
	return s.guard
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	log.Info().Msgf("[%-19s] %s", colourMethod(method), path)
}

// checkOrigin accepts same-origin upgrades and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if strings.EqualFold(origin, getScheme(r)+"://"+r.Host) {
		return true
	}
	allowed := s.config.GetAllowedOrigins()
	return allowed.IsAllowedOrigin(origin) || allowed.AllowsAny()
}

func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
