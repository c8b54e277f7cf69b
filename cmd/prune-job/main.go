package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/maintenance"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
	"github.com/radieske/paper-sportsbook/internal/shared/db"
	"github.com/radieske/paper-sportsbook/internal/shared/jobs"
	"github.com/radieske/paper-sportsbook/internal/shared/logger"
	"github.com/radieske/paper-sportsbook/internal/shared/metrics"
)

func main() {
	once := flag.Bool("once", false, "prune once and exit")
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

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	deleted := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "prune_rows_deleted_total", Help: "linhas removidas por etapa"}, []string{"step"})
	prometheus.MustRegister(deleted)

	pruner := &maintenance.Pruner{
		DB:  pg,
		Log: log,
		Policy: maintenance.Policy{
			OddsAge:        cfg.OddsRetention,
			EventAge:       cfg.EventRetention,
			LedgerAge:      cfg.LedgerRetention,
			BlockedMarkets: cfg.BlockedMarkets,
			Bookmaker:      cfg.Bookmaker,
		},
		OnDeleted: func(step string, n int64) { deleted.WithLabelValues(step).Add(float64(n)) },
	}

	run := func(ctx context.Context) {
		rep, err := pruner.Run(ctx)
		if err != nil {
			log.Error("prune finished with errors", zap.Error(err))
		}
		log.Info("prune complete",
			zap.Int64("odds", rep.Odds),
			zap.Int64("events", rep.Events),
			zap.Int64("wallet_transactions", rep.LedgerRows),
			zap.Int64("blocked_quotes", rep.BlockedQuotes),
			zap.Int64("foreign_quotes", rep.ForeignQuotes))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		run(ctx)
		return
	}

	srv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(pg.PingContext))
	defer srv.Close()

	if err := jobs.Run(ctx, log, "prune", cfg.PruneSchedule, false, run); err != nil {
		log.Fatal("scheduler", zap.Error(err))
	}
}
