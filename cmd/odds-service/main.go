package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	oddscache "github.com/radieske/paper-sportsbook/internal/odds-service/cache"
	httpapi "github.com/radieske/paper-sportsbook/internal/odds-service/http"
	"github.com/radieske/paper-sportsbook/internal/odds-service/repo"
	"github.com/radieske/paper-sportsbook/internal/odds-service/ws"
	"github.com/radieske/paper-sportsbook/internal/shared/cache"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
	"github.com/radieske/paper-sportsbook/internal/shared/db"
	"github.com/radieske/paper-sportsbook/internal/shared/logger"
	"github.com/radieske/paper-sportsbook/internal/shared/metrics"
)

func main() {
	// carrega config
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	// conecta com db Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	log.Info("postgres connected")

	// conecta com cache Redis
	redisClient, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redisClient.Close()
	log.Info("redis connected")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// hub WS recebe odds e alertas publicados no Redis
	hub := ws.NewHub(log, func(*http.Request) bool { return true })
	ws.StartRedisSubscriber(ctx, log, redisClient, hub, cfg.OddsChannel, cfg.AlertChannel)

	api := &httpapi.API{
		Log:      log,
		ReadRepo: &repo.ReadRepo{DB: pg},
		Cache:    oddscache.New(redisClient),
		CacheTTL: cfg.QuoteCacheTTL,
	}
	router := api.Router()
	router.Get("/ws", hub.HandleWS)

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, metrics.Checks(
		pg.PingContext,
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	))
	defer msrv.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Info("api listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api srv", zap.Error(err))
	}
}
