package server

import (
	"net/http"

	"github.com/jrsteele09/fleet-console/notify"
)

type notificationsResponse struct {
	Notifications []notify.Notification `json:"notifications"`
	UnreadCount   int                   `json:"unreadCount"`
	Connected     bool                  `json:"connected"`
}

func (s *Server) notificationState() notificationsResponse {
	return notificationsResponse{
		Notifications: s.notifications.List(),
		UnreadCount:   s.notifications.UnreadCount(),
		Connected:     s.notifications.IsConnected(),
	}
}

func (s *Server) ListNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.notificationState())
	}
}

// MarkNotificationReadHandler toggles the read flag of one notification.
func (s *Server) MarkNotificationReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := s.notifications.MarkAsRead(r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func (s *Server) MarkAllNotificationsReadHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.notifications.MarkAllAsRead()
		writeJSON(w, http.StatusOK, s.notificationState())
	}
}

func (s *Server) ClearNotificationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.notifications.ClearAll()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) ToastsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.notifications.Toasts())
	}
}

func (s *Server) DismissToastHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.notifications.DismissToast(r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	}
}
