package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	rcache "github.com/open-builders/giveaway-draw/internal/cache/redis"
	"github.com/open-builders/giveaway-draw/internal/common/logger"
	"github.com/open-builders/giveaway-draw/internal/config"
	apphttp "github.com/open-builders/giveaway-draw/internal/http"
	"github.com/open-builders/giveaway-draw/internal/metrics"
	"github.com/open-builders/giveaway-draw/internal/platform/db"
	redisplatform "github.com/open-builders/giveaway-draw/internal/platform/redis"
	pgrepo "github.com/open-builders/giveaway-draw/internal/repository/postgres"
	gsvc "github.com/open-builders/giveaway-draw/internal/service/giveaway"
	isvc "github.com/open-builders/giveaway-draw/internal/service/identity"
	nsvc "github.com/open-builders/giveaway-draw/internal/service/notifications"
	"github.com/open-builders/giveaway-draw/internal/workers"
)

func main() {
	// Create cancellable root context for graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	logger.Init("giveaway-draw", cfg.Debug)

	pg, err := db.Open(ctx, cfg.Postgres.DatabaseURL, db.PoolConfig{
		MaxOpenConns:    cfg.Postgres.MaxOpenConns,
		MaxIdleConns:    cfg.Postgres.MaxIdleConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("postgres open")
	}
	defer pg.Close()

	if cfg.Postgres.AutoMigrate {
		if err := db.Migrate(ctx, pg); err != nil {
			log.Fatal().Err(err).Msg("postgres migrate")
		}
	}

	rdb, err := redisplatform.Open(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("redis open")
	}
	defer rdb.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Repositories
	identityRepo := pgrepo.NewIdentityRepository(pg)
	channelRepo := pgrepo.NewChannelRepository(pg)
	giveawayRepo := pgrepo.NewGiveawayRepository(pg)
	participantRepo := pgrepo.NewParticipantRepository(pg)
	winnerRepo := pgrepo.NewWinnerRepository(pg)
	notificationRepo := pgrepo.NewNotificationRepository(pg)

	// Services
	identities := isvc.NewService(identityRepo, channelRepo, rcache.NewIdentityCache(rdb, cfg.IdentityCacheTTL))
	notifier := nsvc.NewService(notificationRepo)
	announcer := nsvc.NewAnnouncer(channelRepo, identityRepo, rdb, cfg.NotifyStream, cfg.CurrencyScale)
	giveaways := gsvc.NewService(gsvc.Deps{
		Giveaways:    giveawayRepo,
		Participants: participantRepo,
		Winners:      winnerRepo,
		Channels:     channelRepo,
		Identities:   identityRepo,
		Notifier:     notifier,
	},
		gsvc.WithCurrencyScale(cfg.CurrencyScale),
		gsvc.WithAnnouncer(announcer),
		gsvc.WithMetrics(m),
	)

	// Workers
	dispatcher := workers.NewDispatcher(notifier, identities, giveaways, rdb, cfg.NotifyStream, m)
	sched, err := workers.NewScheduler(ctx, giveaways, dispatcher, cfg.SweepInterval, cfg.NotifyDispatchInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("scheduler init")
	}
	sched.Start()

	consumerName, _ := os.Hostname()
	if consumerName == "" {
		consumerName = "giveaway-draw"
	}
	consumer := workers.NewBotEventsConsumer(rdb, cfg.BotEventsStream, consumerName, identities, giveaways, m)
	go consumer.Start(ctx)

	app := apphttp.NewFiberApp(cfg, apphttp.Deps{
		Identities:    identities,
		Giveaways:     giveaways,
		Notifications: notifier,
		Redis:         rdb,
		Metrics:       m,
		Gatherer:      reg,
	})
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server (Fiber) listening")
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	<-ctx.Done()
	stop()

	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if err := sched.Shutdown(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown")
	}
	log.Info().Msg("server stopped")
}
