package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const (
	defaultMinBackoff   = 1 * time.Second
	defaultMaxBackoff   = 32 * time.Second
	defaultReadDeadline = 60 * time.Second
	handshakeTimeout    = 10 * time.Second
)

var _ Transport = (*WebSocketTransport)(nil)

type WebSocketOption func(*WebSocketTransport)

// WithBackoff bounds the reconnect delay, which doubles after each failure.
func WithBackoff(minDelay, maxDelay time.Duration) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.minBackoff = minDelay
		t.maxBackoff = maxDelay
	}
}

func WithReadDeadline(d time.Duration) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.readDeadline = d
	}
}

// WithTokenSource authenticates each dial with the current bearer token.
func WithTokenSource(ts oauth2.TokenSource) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.tokens = ts
	}
}

// WebSocketTransport receives notifications as JSON text frames and keeps
// reconnecting until Disconnect.
type WebSocketTransport struct {
	url          string
	dialer       websocket.Dialer
	tokens       oauth2.TokenSource
	minBackoff   time.Duration
	maxBackoff   time.Duration
	readDeadline time.Duration

	mu     sync.RWMutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewWebSocketTransport(url string, opts ...WebSocketOption) *WebSocketTransport {
	t := &WebSocketTransport{
		url: url,
		dialer: websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
		minBackoff:   defaultMinBackoff,
		maxBackoff:   defaultMaxBackoff,
		readDeadline: defaultReadDeadline,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Connect starts the connection loop. The first dial happens in the
// background; use Connected to observe it.
func (t *WebSocketTransport) Connect(ctx context.Context, onMessage func([]Notification)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return errors.New("[WebSocketTransport.Connect] already connected")
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.listen(ctx, onMessage)
	return nil
}

func (t *WebSocketTransport) listen(ctx context.Context, onMessage func([]Notification)) {
	defer t.wg.Done()

	delay := t.minBackoff
	for {
		if ctx.Err() != nil {
			return
		}
		conn, err := t.dial(ctx)
		if err != nil {
			log.Debug().Err(err).Dur("delay", delay).Str("url", t.url).Msg("notification websocket dial failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay *= 2
			if delay > t.maxBackoff {
				delay = t.maxBackoff
			}
			continue
		}

		delay = t.minBackoff
		if !t.setConn(ctx, conn) {
			return
		}
		log.Info().Str("url", t.url).Msg("notification websocket connected")
		t.read(ctx, conn, onMessage)
		t.closeConn()
	}
}

func (t *WebSocketTransport) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if t.tokens != nil {
		if tok, err := t.tokens.Token(); err == nil && tok.AccessToken != "" {
			header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
		}
	}
	conn, resp, err := t.dialer.DialContext(ctx, t.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(err, "websocket dial failed (status %d)", resp.StatusCode)
		}
		return nil, errors.Wrap(err, "websocket dial failed")
	}
	return conn, nil
}

func (t *WebSocketTransport) read(ctx context.Context, conn *websocket.Conn, onMessage func([]Notification)) {
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(t.readDeadline))
	})
	for {
		if err := conn.SetReadDeadline(time.Now().Add(t.readDeadline)); err != nil {
			return
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("notification websocket read failed")
			}
			return
		}
		if batch := decodeNotifications(message); len(batch) > 0 {
			onMessage(batch)
		}
	}
}

// decodeNotifications accepts a single notification or an array of them.
func decodeNotifications(data []byte) []Notification {
	var batch []Notification
	if err := json.Unmarshal(data, &batch); err == nil {
		return batch
	}
	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		log.Debug().Err(err).Msg("ignoring malformed notification frame")
		return nil
	}
	return []Notification{n}
}

// setConn publishes the live connection unless Disconnect already ran.
func (t *WebSocketTransport) setConn(ctx context.Context, conn *websocket.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	t.conn = conn
	metrics.TransportConnected.Set(1)
	return true
}

func (t *WebSocketTransport) closeConn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return
	}
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = t.conn.Close()
	t.conn = nil
	metrics.TransportConnected.Set(0)
}

func (t *WebSocketTransport) Disconnect() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	t.closeConn()
	t.wg.Wait()
	return nil
}

func (t *WebSocketTransport) Connected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn != nil
}
