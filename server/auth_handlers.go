package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/session"
)

// LoginPageData contains data for rendering the login page
type LoginPageData struct {
	AppName  string
	Error    string
	Notice   string
	Next     string
	Username string // Preserve username on error
	PWA      bool
}

const sessionExpiredNotice = "Your session has expired. Please sign in again."

// LoginPageHandler serves the login form. An authenticated session skips
// straight to next.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		next := safeNext(query.Get("next"))

		if s.sessions.State() == session.StateAuthenticated {
			http.Redirect(w, r, next, http.StatusFound)
			return
		}

		data := LoginPageData{
			AppName:  s.config.GetAppName(),
			Error:    query.Get("error"),
			Next:     query.Get("next"),
			Username: query.Get("username"),
			PWA:      s.config.PWAEnabled(),
		}
		if query.Get("reason") == session.SessionExpiredReason {
			data.Notice = sessionExpiredNotice
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := s.templates.ExecuteTemplate(w, loginTemplate, data); err != nil {
			log.Error().Err(err).Msg("failed to render login page")
		}
	}
}

type loginResponse struct {
	Username  string     `json:"username"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Next      string     `json:"next"`
}

// LoginSubmissionHandler accepts JSON credentials from scripts and the login
// form from browsers.
func (s *Server) LoginSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if isJSONRequest(r) {
			s.jsonLogin(w, r)
			return
		}
		s.formLogin(w, r)
	}
}

func (s *Server) jsonLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		session.Credentials
		Next string `json:"next"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	sess, err := s.sessions.Login(r.Context(), body.Credentials)
	if err != nil {
		// Wrong credentials, not an ended session: no login location.
		status, resp := errorResponse(err)
		writeJSON(w, status, resp)
		return
	}

	resp := loginResponse{Username: sess.Username, Next: safeNext(body.Next)}
	if !sess.ExpiresAt.IsZero() {
		resp.ExpiresAt = &sess.ExpiresAt
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) formLogin(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, s.loginRedirect("The sign in form could not be read.", "", ""), http.StatusSeeOther)
		return
	}

	creds := session.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: r.PostFormValue("password"),
	}
	next := r.PostFormValue("next")

	if _, err := s.sessions.Login(r.Context(), creds); err != nil {
		http.Redirect(w, r, s.loginRedirect(apiclient.UserMessage(err), creds.Username, next), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, safeNext(next), http.StatusSeeOther)
}

func (s *Server) loginRedirect(message, username, next string) string {
	v := url.Values{}
	v.Set("error", message)
	if username != "" {
		v.Set("username", username)
	}
	if next != "" {
		v.Set("next", next)
	}
	return s.config.GetLoginPath() + "?" + v.Encode()
}

// LogoutHandler ends the session and drops everything cached for it.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.sessions.Logout(r.Context())
		s.fleet.Cache().Reset()

		if r.Method == http.MethodGet {
			http.Redirect(w, r, s.config.GetLoginPath(), http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type sessionResponse struct {
	State         string     `json:"state"`
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// SessionHandler reports the session without exposing tokens.
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := s.sessions.Snapshot()
		resp := sessionResponse{
			State:         snap.State().String(),
			Authenticated: snap.IsAuthenticated,
			Username:      snap.Username,
		}
		if !snap.ExpiresAt.IsZero() {
			resp.ExpiresAt = &snap.ExpiresAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func isJSONRequest(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// safeNext only follows local paths, defaulting to the dashboard root.
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
