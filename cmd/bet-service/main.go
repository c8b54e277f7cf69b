package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/alerting"
	alertrepo "github.com/radieske/paper-sportsbook/internal/alerting/repo"
	bhttp "github.com/radieske/paper-sportsbook/internal/bet-service/http"
	"github.com/radieske/paper-sportsbook/internal/bet-service/odds"
	kpub "github.com/radieske/paper-sportsbook/internal/bet-service/producer"
	"github.com/radieske/paper-sportsbook/internal/bet-service/repo"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
	"github.com/radieske/paper-sportsbook/internal/shared/db"
	"github.com/radieske/paper-sportsbook/internal/shared/kafka"
	"github.com/radieske/paper-sportsbook/internal/shared/logger"
	"github.com/radieske/paper-sportsbook/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()
	if cfg.RunMigrations {
		applied, err := db.Migrate(context.Background(), pg)
		if err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		log.Info("migrations applied", zap.Strings("versions", applied))
	}

	// Redis: sem ele a odd corrente vem do Postgres
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	var prices bhttp.Prices
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, validating odds against postgres only", zap.Error(err))
	} else {
		prices = odds.NewValidator(rdb)
	}

	// Kafka writer (topic bet_placed)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	defer writer.Close()

	tracker := &alerting.Engine{Log: log, Store: alertrepo.NewPostgresStore(pg)}

	// HTTP público
	api := bhttp.NewServer(log, repo.NewPostgres(pg), prices, kpub.NewKafkaPublisher(writer), tracker)
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// metrics/health
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(pg.PingContext))
	defer msrv.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = apiSrv.Shutdown(sctx)
	}()

	log.Info("bet-service listening", zap.String("addr", apiSrv.Addr))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
