// Package supervisor runs the long-lived parts of a binary under a suture
// supervisor so that a failing service is restarted instead of taking the
// process down.
package supervisor

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/thejerf/suture/v4"
)

const DefaultShutdownTimeout = 10 * time.Second

// New returns a root supervisor that logs its events through zerolog.
func New(name string) *suture.Supervisor {
	return suture.New(name, suture.Spec{
		EventHook: func(e suture.Event) {
			log.Warn().Fields(e.Map()).Msg(e.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          DefaultShutdownTimeout,
	})
}

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type HTTPService struct {
	name            string
	server          HTTPServer
	shutdownTimeout time.Duration
}

func NewHTTPService(name string, server HTTPServer, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &HTTPService{name: name, server: server, shutdownTimeout: shutdownTimeout}
}

// Serve listens until ctx ends and then shuts the server down gracefully.
func (h *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrapf(err, "[HTTPService.Serve] %s", h.name)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return errors.Wrapf(err, "[HTTPService.Serve] %s shutdown", h.name)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPService) String() string {
	return h.name
}

type funcService struct {
	name string
	run  func(ctx context.Context) error
}

// Func adapts a blocking function to a supervised service.
func Func(name string, run func(ctx context.Context) error) suture.Service {
	return &funcService{name: name, run: run}
}

func (f *funcService) Serve(ctx context.Context) error {
	return f.run(ctx)
}

func (f *funcService) String() string {
	return f.name
}
