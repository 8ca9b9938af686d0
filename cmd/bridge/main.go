package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/qteco/mall-mollie-bridge/internal/config"
	"github.com/qteco/mall-mollie-bridge/internal/events"
	"github.com/qteco/mall-mollie-bridge/internal/gateway/mollie"
	"github.com/qteco/mall-mollie-bridge/internal/order"
	"github.com/qteco/mall-mollie-bridge/internal/payment"
	"github.com/qteco/mall-mollie-bridge/internal/store/memory"
	"github.com/qteco/mall-mollie-bridge/internal/store/postgres"
	"github.com/qteco/mall-mollie-bridge/internal/web"
	"github.com/qteco/mall-mollie-bridge/internal/worker"
)

func main() {
	// Logger
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})

	_ = godotenv.Load()
	cfg := config.Load()

	log.Info().
		Str("addr", cfg.HTTPAddr).
		Str("mode", cfg.MollieMode).
		Str("public_url", cfg.PublicBaseURL).
		Msg("starting mollie bridge")

	if cfg.APIKey() == "" {
		log.Fatal().Str("mode", cfg.MollieMode).Msg("no mollie api key configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Order store
	var store order.Store
	if cfg.DatabaseURL != "" {
		pg, err := postgres.NewStore(cfg.DatabaseURL)
		must(err)
		defer pg.Close()
		must(pg.EnsureSchema(ctx))
		store = pg
	} else {
		log.Warn().Msg("DATABASE_URL not set, using in-memory order store")
		store = memory.NewStore()
	}

	// Event publisher
	var publisher payment.Publisher
	if cfg.RabbitURL != "" {
		rp, err := events.NewRabbitPublisher(cfg.RabbitURL, cfg.EventsName)
		must(err)
		defer rp.Close()
		publisher = rp
	} else {
		log.Warn().Msg("RABBITMQ_URL not set, payment events are dropped")
		publisher = events.NopPublisher{}
	}

	// Gateway + reconciler
	gateway := mollie.NewClient(cfg.APIKey(), log.Logger)
	rec := payment.NewReconciler(store, gateway, publisher, log.Logger)

	// Stale-payment poller
	poller := worker.NewPoller(store, rec, log.Logger, cfg.PollInterval, cfg.PollMaxAge, cfg.PollBatchSize)
	go poller.Run(ctx)

	// HTTP surface
	srv := web.NewServer(rec, store, web.Options{
		PublicBaseURL: cfg.PublicBaseURL,
		SuccessURL:    cfg.SuccessURL,
		FailureURL:    cfg.FailureURL,
	}, log.Logger)

	errc := make(chan error, 1)
	go func() { errc <- srv.Run(cfg.HTTPAddr) }()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		must(err)
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	must(srv.Shutdown(shutdownCtx))
}

func must(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("fatal")
	}
}
