package mockapi

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/notify"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// pushHub fans each notification out to the connected feed clients. A client
// that cannot keep up is disconnected.
type pushHub struct {
	mu      sync.RWMutex
	clients map[*feedClient]struct{}
}

func newPushHub() *pushHub {
	return &pushHub{clients: make(map[*feedClient]struct{})}
}

func (h *pushHub) register(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	log.Debug().Int("clients", len(h.clients)).Msg("push feed client connected")
}

func (h *pushHub) unregister(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *pushHub) broadcast(payload []byte) {
	h.mu.RLock()
	var slow []*feedClient
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		log.Warn().Msg("push feed client too slow, disconnecting")
		h.unregister(c)
	}
}

func (h *pushHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Publish completes n and delivers it to feed clients and, when configured,
// to the NATS subject.
func (s *Server) Publish(n notify.Notification) (notify.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = s.nowFunc()
	}
	if n.Priority == "" {
		n.Priority = notify.PriorityMedium
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return n, errors.Wrap(err, "[Server.Publish] encoding notification")
	}
	s.hub.broadcast(payload)
	if s.nc != nil {
		if err := s.nc.Publish(s.subject, payload); err != nil {
			return n, errors.Wrapf(err, "[Server.Publish] publishing to %s", s.subject)
		}
	}
	return n, nil
}

func (s *Server) PublishNotificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var n notify.Notification
		if !decodeBody(r, &n) || n.Title == "" {
			writeMessage(w, http.StatusBadRequest, "title is required")
			return
		}
		if !slices.Contains(notify.Types, n.Type) {
			writeMessage(w, http.StatusBadRequest, "unknown notification type")
			return
		}
		n, err := s.Publish(n)
		if err != nil {
			log.Error().Err(err).Msg("publishing notification")
			writeMessage(w, http.StatusInternalServerError, "could not publish notification")
			return
		}
		if info := tokenFromContext(r.Context()); info != nil {
			log.Info().Str("by", info.Username).Str("id", n.ID).Str("type", string(n.Type)).Msg("notification published")
		}
		writeJSON(w, http.StatusAccepted, n)
	}
}

// NotificationFeedHandler upgrades to the push websocket.
func (s *Server) NotificationFeedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Msg("push feed upgrade failed")
			return
		}
		c := &feedClient{conn: conn, send: make(chan []byte, sendBuffer)}
		s.hub.register(c)
		go c.writePump()
		c.readPump(s.hub)
	}
}

func (c *feedClient) readPump(hub *pushHub) {
	defer func() {
		hub.unregister(c)
		_ = c.conn.Close()
	}()
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

// PushService publishes a synthetic notification every interval. It runs
// under the mock backend's supervisor.
type PushService struct {
	server   *Server
	interval time.Duration
}

func (s *Server) PushService(interval time.Duration) *PushService {
	return &PushService{server: s, interval: interval}
}

func (p *PushService) Serve(ctx context.Context) error {
	source := notify.NewSimulatedTransport(p.interval, notify.WithSimulatedNowFunc(p.server.nowFunc))
	if err := source.Connect(ctx, func(batch []notify.Notification) {
		for _, n := range batch {
			if _, err := p.server.Publish(n); err != nil {
				log.Warn().Err(err).Msg("push publish failed")
			}
		}
	}); err != nil {
		return errors.Wrap(err, "[PushService.Serve] starting generator")
	}
	<-ctx.Done()
	if err := source.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("push generator stop failed")
	}
	return ctx.Err()
}

func (p *PushService) String() string {
	return "push-service"
}
