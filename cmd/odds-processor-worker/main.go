package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/paper-sportsbook/internal/odds-processor/cache"
	"github.com/radieske/paper-sportsbook/internal/odds-processor/consumer"
	sharedcache "github.com/radieske/paper-sportsbook/internal/shared/cache"
	"github.com/radieske/paper-sportsbook/internal/shared/config"
	"github.com/radieske/paper-sportsbook/internal/shared/kafka"
	"github.com/radieske/paper-sportsbook/internal/shared/logger"
	"github.com/radieske/paper-sportsbook/internal/shared/metrics"
	"github.com/radieske/paper-sportsbook/internal/shared/pubsub"
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

	// O processor não toca o Postgres: a ingestão já gravou; aqui é cache + push
	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Configura o consumer Kafka (consumer group odds-processor)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicOddsUpdates, "odds-processor")
	defer reader.Close()

	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicOddsUpdatesDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_cache_sets_total", Help: "sets no cache"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "odds_proc_broadcasts_total", Help: "updates publicados para o hub WS"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "odds_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, broadcast, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Cache:       cache.NewRedisCache(redisClient, cfg.QuoteCacheTTL),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient),
		Channel:     cfg.OddsChannel,
		DLQ:         dlq,
		OnConsumed:  func() { consumed.Inc() },
		OnCached:    func() { cached.Inc() },
		OnBroadcast: func() { broadcast.Inc() },
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	srv := metrics.StartMetricsServer(log, cfg.MetricsPort, func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	defer srv.Close()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("odds-processor started", zap.String("topic", cfg.TopicOddsUpdates), zap.String("dlq", cfg.TopicOddsUpdatesDLQ))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("odds-processor stopped")
}
