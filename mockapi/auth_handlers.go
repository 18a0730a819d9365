package mockapi

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/token"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if !decodeBody(r, &req) || req.Username == "" || req.Password == "" {
			writeMessage(w, http.StatusBadRequest, "username and password are required")
			return
		}
		if !s.logins.Allow(req.Username) {
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "Too many sign in attempts. Please wait and try again.")
			return
		}

		user, err := s.users.GetByUsername(req.Username)
		if err != nil || !user.CheckPassword(req.Password) {
			writeMessage(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		if user.Blocked {
			writeMessage(w, http.StatusForbidden, "This account has been blocked.")
			return
		}

		resp, err := s.tokens.Issue(user)
		if err != nil {
			log.Error().Err(err).Msg("mockapi: issuing tokens")
			writeMessage(w, http.StatusInternalServerError, "could not issue tokens")
			return
		}
		_ = s.users.SetLastLogin(user.ID, s.nowFunc())
		log.Info().Str("username", user.Username).Msg("mockapi: login")
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if !decodeBody(r, &req) || req.RefreshToken == "" {
			writeMessage(w, http.StatusBadRequest, "refreshToken is required")
			return
		}
		resp, err := s.tokens.Refresh(req.RefreshToken)
		switch {
		case errors.Is(err, token.ErrUserBlocked):
			writeMessage(w, http.StatusForbidden, "This account has been blocked.")
		case err != nil:
			writeMessage(w, http.StatusUnauthorized, err.Error())
		default:
			writeJSON(w, http.StatusOK, resp)
		}
	}
}

// LogoutHandler revokes the presented access token and drops the refresh
// token. It always succeeds.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		if decodeBody(r, &req) && req.RefreshToken != "" {
			s.tokens.InvalidateRefreshToken(req.RefreshToken)
		}
		// Revoke last: a rejected access token means the refresh token is gone too.
		if raw := bearerToken(r); raw != "" {
			if err := s.tokens.RevokeAccessToken(raw); err != nil {
				log.Debug().Err(err).Msg("mockapi: logout with unusable access token")
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"subscribers":   s.hub.Len(),
			"revokedTokens": s.tokens.RevokedCount(),
		})
	}
}
