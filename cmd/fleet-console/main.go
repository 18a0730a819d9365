package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/apiclient"
	"github.com/jrsteele09/fleet-console/fleet"
	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/internal/logging"
	"github.com/jrsteele09/fleet-console/internal/supervisor"
	"github.com/jrsteele09/fleet-console/notify"
	"github.com/jrsteele09/fleet-console/querycache"
	"github.com/jrsteele09/fleet-console/server"
	"github.com/jrsteele09/fleet-console/session"
	"github.com/jrsteele09/fleet-console/session/badgerstore"
)

func main() {
	for {
		if err := run(); err != nil {
			log.Error().Err(err).Msg("console stopped with error, restarting")
			time.Sleep(1 * time.Second)
		} else {
			break
		}
	}
	log.Info().Msg("console stopped")
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("stack", string(debug.Stack())).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	c, err := config.Load()
	if err != nil {
		// Logging is not configured yet.
		fmt.Fprintf(os.Stderr, "fleet-console: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: c.GetLogLevel(), Format: c.GetLogFormat()})
	displayAppname(c.GetAppName())

	store, err := openSessionStore(c)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn().Err(err).Msg("closing session store")
		}
	}()

	channel := notify.NewChannel()
	mgr := session.NewManager(store,
		session.WithNavigator(server.NotificationNavigator(channel)),
		session.WithRefreshLeeway(c.GetRefreshLeeway()),
		session.WithLoginPath(c.GetLoginPath()),
	)
	defer mgr.Close()

	transport, err := notify.NewTransport(c, mgr)
	if err != nil {
		return err
	}
	channel.BindTransport(transport)

	client := apiclient.NewFromConfig(c, apiclient.WithSession(mgr))
	mgr.BindAuthenticator(fleet.NewAuthAPI(client))
	state := mgr.Hydrate()
	log.Info().Str("state", state.State().String()).Msg("session hydrated")

	cache, err := querycache.New(
		querycache.WithPolicy(fleet.NewPolicy(c.GetCacheTTLs())),
		querycache.WithMaxEntries(c.GetCacheMaxEntries()),
	)
	if err != nil {
		return err
	}
	fleetService := fleet.NewService(client, cache, fleet.WithProviderKeys(c.GetMapAPIKey(), c.GetWeatherAPIKey()))

	srv, err := server.New(c, server.Deps{Sessions: mgr, Fleet: fleetService, Notifications: channel})
	if err != nil {
		return err
	}

	root := supervisor.New(c.GetAppName())
	root.Add(supervisor.NewHTTPService("console-http", &http.Server{Addr: c.GetPort(), Handler: srv}, 5*time.Second))
	if c.RealTimeEnabled() {
		root.Add(channel)
	}
	root.Add(supervisor.Func("session-watch", func(ctx context.Context) error {
		srv.Guard().Watch(ctx, func(state session.State) {
			if state == session.StateUnauthenticated {
				cache.Reset()
			}
			log.Info().Str("state", state.String()).Msg("session state changed")
		})
		return ctx.Err()
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", c.GetPort()).Str("api", c.GetAPIBaseURL()).Msg("console listening")
	if err := root.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "supervisor")
	}
	return nil
}

func openSessionStore(c config.Config) (*badgerstore.Store, error) {
	if c.GetSessionStore() == "memory" {
		return badgerstore.OpenInMemory()
	}
	if err := os.MkdirAll(c.GetSessionStorePath(), 0o700); err != nil {
		return nil, errors.Wrapf(err, "creating %s", c.GetSessionStorePath())
	}
	return badgerstore.Open(c.GetSessionStorePath())
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
