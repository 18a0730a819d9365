package notify

import "context"

// Transport delivers notifications from the backend. Connect starts delivery
// in the background and returns once it has been started. Each onMessage call
// carries one arrival event, however many notifications the frame held, and
// may come from any goroutine.
type Transport interface {
	Connect(ctx context.Context, onMessage func([]Notification)) error
	Disconnect() error
	Connected() bool
}
