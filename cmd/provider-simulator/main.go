package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	simulator "github.com/radieske/paper-sportsbook/internal/provider-simulator"
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

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_sim_requests_total",
		Help: "Requisições atendidas por endpoint",
	}, []string{"endpoint"})
	prometheus.MustRegister(requests)

	sim := simulator.New(log, cfg.SimulatorSeed, time.Now().UTC())
	sim.Quota = cfg.SimulatorQuota
	sim.OnRequest = func(ep string) { requests.WithLabelValues(ep).Inc() }

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	msrv := metrics.StartMetricsServer(log, cfg.MetricsPort, nil)
	defer msrv.Close()

	// Servidor público (contrato do provedor em /v4)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           sim.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info("provider simulator running",
		zap.String("addr", srv.Addr),
		zap.String("paths", "/v4/sports,/v4/sports/{sport}/odds,/v4/sports/{sport}/scores"),
		zap.Int64("seed", cfg.SimulatorSeed))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("public server error", zap.Error(err))
	}
}
