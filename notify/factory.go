package notify

import (
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/fleet-console/internal/config"
	apperrors "github.com/jrsteele09/fleet-console/internal/errors"
)

const (
	TransportSimulated = "simulated"
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

// NewTransport picks the configured transport. The token source, when set,
// authenticates websocket dials.
func NewTransport(cfg config.NotifyConfig, tokens oauth2.TokenSource) (Transport, error) {
	switch cfg.GetNotifyTransport() {
	case TransportSimulated, "":
		return NewSimulatedTransport(cfg.GetSimulatedInterval()), nil
	case TransportWebSocket:
		var opts []WebSocketOption
		if tokens != nil {
			opts = append(opts, WithTokenSource(tokens))
		}
		return NewWebSocketTransport(cfg.GetWebSocketURL(), opts...), nil
	case TransportNATS:
		return NewNATSTransport(cfg.GetNATSURL(), cfg.GetNATSSubject()), nil
	default:
		return nil, errors.Wrapf(apperrors.ErrUnsupported, "[notify.NewTransport] transport %q", cfg.GetNotifyTransport())
	}
}
