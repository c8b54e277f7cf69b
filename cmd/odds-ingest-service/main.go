package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/alerting"
	alertrepo "github.com/radieske/paper-sportsbook/internal/alerting/repo"
	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/odds-ingest/pipeline"
	"github.com/radieske/paper-sportsbook/internal/odds-ingest/publisher"
	"github.com/radieske/paper-sportsbook/internal/odds-ingest/repository"
	"github.com/radieske/paper-sportsbook/internal/oddsapi"
	"github.com/radieske/paper-sportsbook/internal/shared/cache"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
	"github.com/radieske/paper-sportsbook/internal/shared/db"
	"github.com/radieske/paper-sportsbook/internal/shared/jobs"
	sharedkafka "github.com/radieske/paper-sportsbook/internal/shared/kafka"
	"github.com/radieske/paper-sportsbook/internal/shared/logger"
	"github.com/radieske/paper-sportsbook/internal/shared/metrics"
	"github.com/radieske/paper-sportsbook/internal/shared/pubsub"
)

func main() {
	once := flag.Bool("once", false, "run a single ingestion cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if cfg.RunMigrations {
		applied, err := db.Migrate(context.Background(), pg)
		if err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		log.Info("migrations applied", zap.Strings("versions", applied))
	}

	// Kafka Publisher
	pub, err := publisher.NewKafkaPublisher(sharedkafka.SplitBrokers(cfg.KafkaBrokers), cfg.TopicOddsUpdates, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	// Alertas são gravados mesmo sem Redis; só o push em tempo real se perde
	alerts := &alerting.Engine{
		Log:     log,
		Store:   alertrepo.NewPostgresStore(pg),
		Channel: cfg.AlertChannel,
	}
	if rdb, err := cache.ConnectRedis(cfg.RedisAddr); err != nil {
		log.Warn("redis unavailable, alerts will not be pushed", zap.Error(err))
	} else {
		defer rdb.Close()
		alerts.Broadcaster = pubsub.NewRedisBroadcaster(rdb)
	}

	eventsN := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_events_total", Help: "eventos gravados"})
	quotesN := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_quotes_total", Help: "cotações gravadas"})
	firedN := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_ingest_alerts_fired_total", Help: "alertas de preço disparados"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_ingest_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(eventsN, quotesN, firedN, errorsBy)

	p := &pipeline.Pipeline{
		Log:       log,
		Provider:  oddsapi.New(cfg.OddsAPIBaseURL, cfg.OddsAPIKey, cfg.OddsAPITimeout, log),
		Store:     repository.NewPostgresRepo(pg),
		Alerts:    alerts,
		Publisher: pub,
		Sports:    cfg.Sports,
		Regions:   cfg.Regions,
		Markets:   cfg.Markets,
		Filter:    normalizer.OddsFilter{BlockedMarkets: cfg.BlockedMarkets, Bookmaker: cfg.Bookmaker},
		Parallel:  cfg.IngestParallel,
		Pause:     cfg.IngestPause,
		OnEvents:  func(n int) { eventsN.Add(float64(n)) },
		OnQuotes:  func(n int) { quotesN.Add(float64(n)) },
		OnFired:   func(n int) { firedN.Add(float64(n)) },
		OnError:   func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	run := func(ctx context.Context) {
		start := time.Now()
		rep, err := p.RunOnce(ctx)
		if err != nil {
			log.Error("ingestion cycle failed", zap.Error(err))
			return
		}
		log.Info("ingestion cycle done",
			zap.Int("sports", rep.Sports),
			zap.Strings("sports_failed", rep.SportsFailed),
			zap.Int("events", rep.Events),
			zap.Int("events_failed", rep.EventsFailed),
			zap.Int("quotes", rep.Quotes),
			zap.Int("skipped", rep.Skipped),
			zap.Int("alerts", rep.Alerts),
			zap.Duration("took", time.Since(start)))
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		run(ctx)
		return
	}

	srv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(pg.PingContext))
	defer srv.Close()

	if err := jobs.Run(ctx, log, "odds-ingest", cfg.IngestSchedule, true, run); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
}
