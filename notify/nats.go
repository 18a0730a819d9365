package notify

import (
	"context"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const DefaultNATSSubject = "fleet.notifications"

var _ Transport = (*NATSTransport)(nil)

// NATSTransport subscribes to a NATS subject carrying JSON notifications.
type NATSTransport struct {
	url     string
	subject string
	opts    []nats.Option

	mu   sync.Mutex
	nc   *nats.Conn
	sub  *nats.Subscription
	stop func() bool
}

func NewNATSTransport(url, subject string, opts ...nats.Option) *NATSTransport {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATSTransport{url: url, subject: subject, opts: opts}
}

func (t *NATSTransport) Connect(ctx context.Context, onMessage func([]Notification)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nc != nil {
		return errors.New("[NATSTransport.Connect] already connected")
	}

	opts := append([]nats.Option{
		nats.Name("fleet-console"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.ConnectHandler(func(*nats.Conn) { metrics.TransportConnected.Set(1) }),
		nats.ReconnectHandler(func(*nats.Conn) {
			metrics.TransportConnected.Set(1)
			log.Info().Msg("notification NATS connection restored")
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			metrics.TransportConnected.Set(0)
			if err != nil {
				log.Warn().Err(err).Msg("notification NATS connection lost")
			}
		}),
	}, t.opts...)

	nc, err := nats.Connect(t.url, opts...)
	if err != nil {
		return errors.Wrapf(err, "[NATSTransport.Connect] connecting to %s", t.url)
	}
	sub, err := nc.Subscribe(t.subject, func(msg *nats.Msg) {
		if batch := decodeNotifications(msg.Data); len(batch) > 0 {
			onMessage(batch)
		}
	})
	if err != nil {
		nc.Close()
		return errors.Wrapf(err, "[NATSTransport.Connect] subscribing to %s", t.subject)
	}
	// Make sure the server has the subscription before reporting success.
	if err := nc.FlushTimeout(2 * time.Second); err != nil {
		log.Debug().Err(err).Msg("notification NATS flush failed, subscription pending")
	}
	t.nc = nc
	t.sub = sub
	t.stop = context.AfterFunc(ctx, func() { _ = t.Disconnect() })
	log.Info().Str("url", t.url).Str("subject", t.subject).Msg("notification NATS transport subscribed")
	return nil
}

func (t *NATSTransport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nc == nil {
		return nil
	}
	if t.stop != nil {
		t.stop()
	}
	var err error
	if t.sub != nil {
		err = t.sub.Unsubscribe()
	}
	t.nc.Close()
	t.nc, t.sub, t.stop = nil, nil, nil
	metrics.TransportConnected.Set(0)
	return errors.Wrap(err, "[NATSTransport.Disconnect]")
}

func (t *NATSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nc != nil && t.nc.IsConnected()
}

// Subject is the subject the transport listens on.
func (t *NATSTransport) Subject() string {
	return t.subject
}
