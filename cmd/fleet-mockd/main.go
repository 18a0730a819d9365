package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/fleet-console/internal/config"
	"github.com/jrsteele09/fleet-console/internal/logging"
	"github.com/jrsteele09/fleet-console/internal/supervisor"
	"github.com/jrsteele09/fleet-console/mockapi"
	"github.com/jrsteele09/fleet-console/token"
	tokenfakerepo "github.com/jrsteele09/fleet-console/token/repofake"
	"github.com/jrsteele09/fleet-console/users"
	fakeuserrepo "github.com/jrsteele09/fleet-console/users/repofake"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("mock backend failed")
	}
	log.Info().Msg("mock backend stopped")
}

func run() error {
	c, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fleet-mockd: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: c.GetLogLevel(), Format: c.GetLogFormat()})
	figure.NewFigure("fleet mockd", "cybermedium", true).Print()
	fmt.Println()

	userRepo, err := seedUsers(c.GetMockUsers())
	if err != nil {
		return err
	}
	tokens := token.New(tokenfakerepo.NewFakeTokensRepo(), userRepo, token.NewHMACSigner(c.GetMockJWTSecret()),
		token.WithTokenExpiry(c.GetMockAccessTokenTTL(), c.GetMockRefreshTokenTTL()),
	)

	opts := []mockapi.Option{mockapi.WithLoginRate(c.GetMockLoginRate(), 5)}
	if c.MockEmbeddedNATSEnabled() {
		ns, nc, err := startEmbeddedNATS()
		if err != nil {
			return err
		}
		defer ns.Shutdown()
		defer nc.Close()
		opts = append(opts, mockapi.WithNATS(nc, c.GetNATSSubject()))
	}
	mock := mockapi.New(tokens, userRepo, opts...)

	root := supervisor.New("fleet-mockd")
	root.Add(supervisor.NewHTTPService("mock-http", &http.Server{Addr: c.GetMockPort(), Handler: mock}, 5*time.Second))
	root.Add(mock.PushService(c.GetMockPushInterval()))
	root.Add(supervisor.Func("token-cleanup", func(ctx context.Context) error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n := tokens.CleanupRevokedTokens(); n > 0 {
					log.Debug().Int("removed", n).Msg("expired revocations dropped")
				}
			}
		}
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Str("addr", c.GetMockPort()).Strs("routes", mock.Routes()).Msg("mock backend listening")
	if err := root.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "supervisor")
	}
	return nil
}

func seedUsers(accounts map[string]string) (users.UserRepo, error) {
	repo := fakeuserrepo.NewFakeUserRepo()
	names := make([]string, 0, len(accounts))
	for name := range accounts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		user, err := users.NewUser(name, name, accounts[name])
		if err != nil {
			return nil, errors.Wrapf(err, "seeding user %s", name)
		}
		if err := repo.Upsert(user); err != nil {
			return nil, errors.Wrapf(err, "seeding user %s", name)
		}
		log.Info().Str("username", name).Msg("mock user seeded")
	}
	return repo, nil
}

// startEmbeddedNATS runs an in-process NATS server on the default client port
// so consoles configured with the nats transport can connect to it.
func startEmbeddedNATS() (*natsserver.Server, *nats.Conn, error) {
	ns, err := natsserver.NewServer(&natsserver.Options{
		Host:   "127.0.0.1",
		Port:   natsserver.DEFAULT_PORT,
		NoSigs: true,
		NoLog:  true,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "creating embedded NATS server")
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, nil, errors.New("embedded NATS server not ready")
	}
	nc, err := nats.Connect(ns.ClientURL(), nats.Name("fleet-mockd"))
	if err != nil {
		ns.Shutdown()
		return nil, nil, errors.Wrap(err, "connecting to embedded NATS server")
	}
	log.Info().Str("url", ns.ClientURL()).Msg("embedded NATS server started")
	return ns, nc, nil
}
