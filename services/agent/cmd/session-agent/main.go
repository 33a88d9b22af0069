package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sessiond/pkg/bus"
	"sessiond/pkg/fingerprint"
	"sessiond/services/agent"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	userFlag := flag.String("user", "", "user id to sign in as")
	flag.Parse()

	userID, err := uuid.Parse(*userFlag)
	if err != nil {
		log.Fatal().Msg("a valid -user id is required")
	}

	cfg, err := agent.LoadConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	device := fingerprint.NewDeriver(nil).Derive(ctx)
	log.Info().
		Str("fingerprint", device.Hash[:12]).
		Str("device", device.DeviceName).
		Msg("device identity derived")

	token := agent.NewTokenStore(cfg.StateDir).Token()
	client := agent.NewClient(cfg.APIBaseURL, token, device, log.Logger)

	// Session lifetime is bound to signedInCtx; forced sign-out cancels it.
	signedInCtx, signOut := context.WithCancel(ctx)
	defer signOut()

	auth := agent.AuthFunc(func(_ context.Context, reason string) error {
		log.Info().Str("reason", reason).Msg("signing out")
		signOut()
		return nil
	})

	if reg, err := client.CheckDeviceRegistration(ctx); err != nil {
		log.Warn().Err(err).Msg("device registration check failed")
	} else if reg == nil {
		if err := client.RegisterDevice(ctx, userID); err != nil {
			log.Warn().Err(err).Msg("device registration failed")
		}
	}

	prompter := &agent.TerminalPrompter{In: os.Stdin, Out: os.Stdout}
	resolver := agent.NewResolver(client, prompter, auth, log.Logger)

	state, err := resolver.Resolve(ctx, userID)
	if err != nil {
		log.Fatal().Err(err).Stringer("state", state).Msg("conflict resolution interrupted")
	}
	if state != agent.StateResolved {
		log.Info().Stringer("state", state).Msg("login abandoned")
		return
	}

	var eventBus *bus.Bus
	if cfg.NATSURL != "" {
		eventBus, err = bus.New(cfg.NATSURL)
		if err != nil {
			log.Fatal().Err(err).Msg("connect nats")
		}
		defer eventBus.Close()
	} else {
		log.Warn().Msg("NATS_URL not set; kicks will not arrive in real time")
	}

	listener := agent.NewListener(client, eventBus, auth, userID, token, cfg.HeartbeatInterval, log.Logger)
	if err := listener.Start(signedInCtx); err != nil {
		log.Fatal().Err(err).Msg("start heartbeat listener")
	}
	defer listener.Close()

	log.Info().Stringer("user_id", userID).Msg("session active")

	<-signedInCtx.Done()

	if listener.Kicked() {
		log.Warn().Msg("signed out: this account was used on another device")
		return
	}

	// Clean shutdown: release the session so the next login sees no ghost.
	deactivateCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.DeactivateCurrentSession(deactivateCtx); err != nil {
		log.Warn().Err(err).Msg("deactivate session on shutdown failed")
	}
}
