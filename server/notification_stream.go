package server

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/notify"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// streamSnapshot is the first frame a stream client receives.
type streamSnapshot struct {
	Kind string `json:"kind"`
	notificationsResponse
}

// NotificationStreamHandler upgrades to a websocket that receives the current
// list once and then every channel event as it happens.
func (s *Server) NotificationStreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.config.RealTimeEnabled() {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "disabled", Message: "Real-time updates are not enabled."})
			return
		}

		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the HTTP error
			log.Warn().Err(err).Msg("notification stream upgrade failed")
			return
		}

		events, cancel := s.notifications.Subscribe()
		c := &streamClient{conn: conn, events: events, cancel: cancel, done: make(chan struct{})}
		if err := c.write(streamSnapshot{Kind: "snapshot", notificationsResponse: s.notificationState()}); err != nil {
			c.close()
			return
		}
		go c.writePump()
		c.readPump()
	}
}

type streamClient struct {
	conn   *websocket.Conn
	events <-chan notify.Event
	cancel func()
	done   chan struct{}
}

// readPump only watches for the peer going away; clients have nothing to say.
func (c *streamClient) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Msg("notification stream closed")
			}
			return
		}
	}
}

func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case e, ok := <-c.events:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if err := c.write(e); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *streamClient) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *streamClient) close() {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	c.cancel()
	_ = c.conn.Close()
}
