// Package mockapi is an in-memory fleet backend: auth, fleet records, canned
// weather and geocoding answers and a notification push feed. Planning, risk
// and compliance values are fixed, not computed.
package mockapi

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/fleet-console/token"
	"github.com/jrsteele09/fleet-console/users"
)

type Option func(*Server)

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowFunc = nowFunc
	}
}

// WithLoginRate limits login attempts per username.
func WithLoginRate(perSecond float64, burst int) Option {
	return func(s *Server) {
		s.logins = newLoginLimiter(rate.Limit(perSecond), burst)
	}
}

// WithNATS also publishes every pushed notification on subject.
func WithNATS(nc *nats.Conn, subject string) Option {
	return func(s *Server) {
		s.nc = nc
		s.subject = subject
	}
}

type Server struct {
	mux      *http.ServeMux
	routes   []string
	tokens   *token.Manager
	users    users.UserRepo
	data     *fleetData
	logins   *loginLimiter
	hub      *pushHub
	upgrader websocket.Upgrader
	nc       *nats.Conn
	subject  string
	nowFunc  func() time.Time
}

func New(tokens *token.Manager, userRepo users.UserRepo, opts ...Option) *Server {
	s := &Server{
		mux:      http.NewServeMux(),
		tokens:   tokens,
		users:    userRepo,
		hub:      newPushHub(),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logins == nil {
		s.logins = newLoginLimiter(rate.Limit(1), 5)
	}
	s.data = seedFleetData(s.nowFunc())
	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteFunc(pattern string, handler http.HandlerFunc) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// Routes lists the registered patterns.
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("mockapi: failed to write response")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v) == nil
}

func bearerToken(r *http.Request) string {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
