package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/normalizer"
	"github.com/radieske/paper-sportsbook/internal/oddsapi"
	"github.com/radieske/paper-sportsbook/internal/settlement"
	settlerepo "github.com/radieske/paper-sportsbook/internal/settlement/repo"
	"github.com/radieske/paper-sportsbook/internal/shared/cache"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
	"github.com/radieske/paper-sportsbook/internal/shared/db"
	"github.com/radieske/paper-sportsbook/internal/shared/jobs"
	"github.com/radieske/paper-sportsbook/internal/shared/kafka"
	"github.com/radieske/paper-sportsbook/internal/shared/logger"
	"github.com/radieske/paper-sportsbook/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	var opt settlement.Options
	once := flag.Bool("once", false, "run a single settlement pass and exit")
	flag.StringVar(&opt.Sport, "sport", "", "only settle bets of this sport key")
	flag.StringVar(&opt.EventID, "event", "", "only settle bets of this event id")
	flag.IntVar(&opt.DaysFrom, "days-from", cfg.SettleDaysFrom, "scores window in days (provider daysFrom)")
	flag.BoolVar(&opt.IncludeUpcoming, "include-upcoming", false, "also consider events that have not started")
	flag.BoolVar(&opt.DumpScores, "dump-scores", false, "log the raw scores payload per sport")
	flag.Parse()

	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

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

	// Redis só serve ao lock de execução; indisponível = roda sem lock
	var locker *cache.Locker
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, running without run lock", zap.Error(err))
	} else {
		locker = cache.NewLocker(rdb)
	}

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	defer writer.Close()

	settled := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_settled_total", Help: "apostas liquidadas por status"}, []string{"status"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_bets_skipped_total", Help: "apostas mantidas pendentes por motivo"}, []string{"reason"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_errors_total", Help: "erros por estágio"}, []string{"stage"})
	runs := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_runs_total", Help: "execuções completas"})
	prometheus.MustRegister(settled, skipped, errorsBy, runs)

	matcher := normalizer.NewTeamMatcher(cfg.TeamMaxEdits)
	engine := &settlement.Engine{
		Log:       log,
		Store:     settlerepo.NewPostgresStore(pg),
		Scores:    oddsapi.New(cfg.OddsAPIBaseURL, cfg.OddsAPIKey, cfg.OddsAPITimeout, log),
		Registry:  settlement.NewRegistry(matcher),
		Matcher:   matcher,
		Publisher: kafka.NewJSONPublisher(writer),
		OnSettled: func(status string) { settled.WithLabelValues(status).Inc() },
		OnSkipped: func(reason string) { skipped.WithLabelValues(reason).Inc() },
		OnError:   func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	run := func(ctx context.Context) {
		if locker != nil {
			release, err := locker.Acquire(ctx, "settlement", cfg.SettleLockTTL)
			switch {
			case errors.Is(err, cache.ErrLockHeld):
				log.Info("settlement already running elsewhere, skipping")
				return
			case err != nil:
				log.Warn("run lock unavailable, settling anyway", zap.Error(err))
			default:
				defer release()
			}
		}

		start := time.Now()
		rep, err := engine.Run(ctx, opt)
		if err != nil {
			log.Error("settlement run failed", zap.Error(err))
			return
		}
		runs.Inc()
		log.Info("settlement run done",
			zap.Int("candidates", rep.Candidates),
			zap.Int("won", rep.Won),
			zap.Int("lost", rep.Lost),
			zap.Int("void", rep.Void),
			zap.Int("skipped", rep.Skipped),
			zap.Int("failed", rep.Failed),
			zap.Strings("sports_failed", rep.SportsFailed),
			zap.Duration("took", time.Since(start)))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		run(ctx)
		return
	}

	srv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(pg.PingContext))
	defer srv.Close()

	if err := jobs.Run(ctx, log, "settlement", cfg.SettleSchedule, true, run); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
}
