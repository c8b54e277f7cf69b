package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/gateway"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
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

	h, err := gateway.New(log, gateway.Upstreams{
		Odds:   cfg.OddsServiceURL,
		Wallet: cfg.WalletServiceURL,
		Bet:    cfg.BetServiceURL,
	})
	if err != nil {
		log.Fatal("gateway config", zap.Error(err))
	}

	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	log.Info("api-gateway listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
