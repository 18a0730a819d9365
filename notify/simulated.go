package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/internal/metrics"
)

const DefaultSimulatedInterval = 30 * time.Second

var _ Transport = (*SimulatedTransport)(nil)

// SimulatedTransport stands in for a real push channel during development.
// It reports connected as soon as Connect is called and emits a synthetic
// notification every interval.
type SimulatedTransport struct {
	interval time.Duration
	nowFunc  func() time.Time

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	done      chan struct{}
	seq       int
}

type SimulatedOption func(*SimulatedTransport)

func WithSimulatedNowFunc(nowFunc func() time.Time) SimulatedOption {
	return func(t *SimulatedTransport) {
		t.nowFunc = nowFunc
	}
}

func NewSimulatedTransport(interval time.Duration, opts ...SimulatedOption) *SimulatedTransport {
	if interval <= 0 {
		interval = DefaultSimulatedInterval
	}
	t := &SimulatedTransport{interval: interval, nowFunc: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *SimulatedTransport) Connect(ctx context.Context, onMessage func([]Notification)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.connected = true
	metrics.TransportConnected.Set(1)

	go t.run(ctx, onMessage, t.done)
	log.Info().Dur("interval", t.interval).Msg("simulated notification transport connected")
	return nil
}

func (t *SimulatedTransport) run(ctx context.Context, onMessage func([]Notification), done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			onMessage([]Notification{t.next()})
		}
	}
}

// next builds the synthetic event for the current tick, cycling through the
// notification types.
func (t *SimulatedTransport) next() Notification {
	t.mu.Lock()
	seq := t.seq
	t.seq++
	t.mu.Unlock()

	kind := Types[seq%len(Types)]
	priority := PriorityLow
	switch kind {
	case TypeWeatherAlert, TypeRTOCompliance:
		priority = PriorityHigh
	case TypeRouteUpdate, TypeVehicleMaintenance:
		priority = PriorityMedium
	}
	return Notification{
		ID:        uuid.NewString(),
		Type:      kind,
		Title:     simulatedTitles[kind],
		Message:   fmt.Sprintf("Simulated %s event #%d", kind, seq+1),
		Timestamp: t.nowFunc(),
		Priority:  priority,
	}
}

var simulatedTitles = map[Type]string{
	TypeRouteUpdate:        "Route updated",
	TypeWeatherAlert:       "Severe weather ahead",
	TypeDriverStatus:       "Driver status changed",
	TypeVehicleMaintenance: "Vehicle service due",
	TypeCargoUpdate:        "Cargo status changed",
	TypeRTOCompliance:      "RTO compliance warning",
	TypeSystem:             "System message",
}

func (t *SimulatedTransport) Disconnect() error {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel = nil
	t.connected = false
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	metrics.TransportConnected.Set(0)
	return nil
}

func (t *SimulatedTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}
