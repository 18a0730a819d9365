// Package notify holds the in-app notification list, its toasts and the
// transports that feed it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const (
	MaxNotifications = 50
	ToastDuration    = 5 * time.Second

	subscriberBuffer = 32
)

type EventKind string

const (
	EventAdded   EventKind = "added"
	EventUpdated EventKind = "updated"
	EventCleared EventKind = "cleared"
	EventToast   EventKind = "toast"
)

// Event is what subscribers receive when the list changes.
type Event struct {
	Kind         EventKind     `json:"kind"`
	Notification *Notification `json:"notification,omitempty"`
	UnreadCount  int           `json:"unreadCount"`
}

type Option func(*Channel)

func WithTransport(t Transport) Option {
	return func(c *Channel) {
		c.transport = t
	}
}

func WithNowFunc(nowFunc func() time.Time) Option {
	return func(c *Channel) {
		c.nowFunc = nowFunc
	}
}

func WithToastDuration(d time.Duration) Option {
	return func(c *Channel) {
		c.toastDuration = d
	}
}

// Channel keeps the most recent notifications, newest first, capped at
// MaxNotifications.
type Channel struct {
	mu            sync.RWMutex
	items         []Notification
	toasts        []Toast
	transport     Transport
	nowFunc       func() time.Time
	toastDuration time.Duration

	subMu     sync.Mutex
	subs      map[int]chan Event
	nextSubID int
}

// BindTransport attaches the transport after construction. It must be called
// before Serve.
func (c *Channel) BindTransport(t Transport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transport = t
}

func (c *Channel) currentTransport() Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.transport
}

func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		nowFunc:       time.Now,
		toastDuration: ToastDuration,
		subs:          make(map[int]chan Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push records one arrival event, in arrival order: the last notification of
// the batch ends up at the head. IDs already in the list are ignored so a
// replayed frame neither duplicates entries nor raises toasts again. At most
// one toast is raised, for the newest unread high-priority arrival.
func (c *Channel) Push(batch ...Notification) {
	if len(batch) == 0 {
		return
	}
	now := c.nowFunc()

	c.mu.Lock()
	known := make(map[string]struct{}, len(c.items)+len(batch))
	for _, n := range c.items {
		known[n.ID] = struct{}{}
	}
	arrivals := make([]Notification, 0, len(batch))
	for _, n := range batch {
		if n.ID == "" {
			n.ID = uuid.NewString()
		}
		if _, dup := known[n.ID]; dup {
			log.Debug().Str("id", n.ID).Msg("duplicate notification ignored")
			continue
		}
		known[n.ID] = struct{}{}
		if n.Timestamp.IsZero() {
			n.Timestamp = now
		}
		if n.Priority == "" {
			n.Priority = PriorityMedium
		}
		arrivals = append(arrivals, n)
	}
	if len(arrivals) == 0 {
		c.mu.Unlock()
		return
	}

	for _, n := range arrivals {
		c.items = append([]Notification{n}, c.items...)
	}
	if len(c.items) > MaxNotifications {
		c.items = c.items[:MaxNotifications]
	}
	var toast *Toast
	for i := len(arrivals) - 1; i >= 0; i-- {
		if n := arrivals[i]; n.Priority == PriorityHigh && !n.Read {
			toast = &Toast{Notification: n, ExpiresAt: now.Add(c.toastDuration)}
			c.toasts = append(c.pruneToastsLocked(now), *toast)
			break
		}
	}
	unread := c.unreadLocked()
	c.mu.Unlock()

	for i := range arrivals {
		n := arrivals[i]
		metrics.Notifications.WithLabelValues(string(n.Type), string(n.Priority)).Inc()
		c.publish(Event{Kind: EventAdded, Notification: &n, UnreadCount: unread})
	}
	if toast != nil {
		n := toast.Notification
		c.publish(Event{Kind: EventToast, Notification: &n, UnreadCount: unread})
	}
}

// Receive is the transport callback: one call is one arrival event.
func (c *Channel) Receive(batch []Notification) {
	c.Push(batch...)
}

// MarkAsRead flips the read flag of one notification.
func (c *Channel) MarkAsRead(id string) (Notification, error) {
	c.mu.Lock()
	var updated *Notification
	for i := range c.items {
		if c.items[i].ID == id {
			c.items[i].Read = !c.items[i].Read
			n := c.items[i]
			updated = &n
			break
		}
	}
	unread := c.unreadLocked()
	c.mu.Unlock()

	if updated == nil {
		return Notification{}, errors.Wrapf(apperrors.ErrNotificationNotFound, "[Channel.MarkAsRead] %s", id)
	}
	c.publish(Event{Kind: EventUpdated, Notification: updated, UnreadCount: unread})
	return *updated, nil
}

func (c *Channel) MarkAllAsRead() {
	c.mu.Lock()
	for i := range c.items {
		c.items[i].Read = true
	}
	c.mu.Unlock()
	c.publish(Event{Kind: EventUpdated})
}

func (c *Channel) ClearAll() {
	c.mu.Lock()
	c.items = nil
	c.toasts = nil
	c.mu.Unlock()
	c.publish(Event{Kind: EventCleared})
}

// List returns a copy of the notifications, newest first.
func (c *Channel) List() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Notification(nil), c.items...)
}

func (c *Channel) UnreadCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.unreadLocked()
}

func (c *Channel) unreadLocked() int {
	count := 0
	for _, n := range c.items {
		if !n.Read {
			count++
		}
	}
	return count
}

// Toasts returns the toasts that have not yet auto-dismissed.
func (c *Channel) Toasts() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.toasts = c.pruneToastsLocked(c.nowFunc())
	return append([]Toast(nil), c.toasts...)
}

func (c *Channel) DismissToast(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if t.Notification.ID != id {
			kept = append(kept, t)
		}
	}
	c.toasts = kept
}

func (c *Channel) pruneToastsLocked(now time.Time) []Toast {
	kept := c.toasts[:0]
	for _, t := range c.toasts {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	return kept
}

// IsConnected reports what the transport reports; without a transport the
// channel is never connected.
func (c *Channel) IsConnected() bool {
	t := c.currentTransport()
	return t != nil && t.Connected()
}

// Subscribe streams list changes. Slow subscribers miss events rather than
// block the producer.
func (c *Channel) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	c.subMu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subs[id] = ch
	c.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

func (c *Channel) publish(e Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for _, ch := range c.subs {
		select {
		case ch <- e:
		default:
			log.Debug().Str("event", string(e.Kind)).Msg("notification subscriber full, event dropped")
		}
	}
}

// Serve connects the transport and keeps the channel fed until ctx ends. It
// is run by the console supervisor.
func (c *Channel) Serve(ctx context.Context) error {
	transport := c.currentTransport()
	if transport == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := transport.Connect(ctx, c.Receive); err != nil {
		return errors.Wrap(err, "[Channel.Serve] connecting transport")
	}
	log.Info().Msg("notification transport started")

	<-ctx.Done()
	if err := transport.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("notification transport disconnect failed")
	}
	metrics.TransportConnected.Set(0)
	return ctx.Err()
}

func (c *Channel) String() string {
	return "notification-channel"
}
