package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	sharedcache "github.com/radieske/paper-sportsbook/internal/shared/cache"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

// RedisCache guarda o snapshot de cada evento e o melhor preço por seleção,
// lido pelo bet-service na validação da aposta
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// BestPrices reduz as cotações de todos os bookmakers ao maior preço por seleção
func BestPrices(e events.OddsUpdate) map[string]decimal.Decimal {
	best := make(map[string]decimal.Decimal, len(e.Quotes))
	for _, q := range e.Quotes {
		k := sharedcache.QuoteKey(e.EventID, q.Market, q.Outcome, q.Line)
		if cur, ok := best[k]; !ok || q.Price.GreaterThan(cur) {
			best[k] = q.Price
		}
	}
	return best
}

// SetEvent grava snapshot e melhores preços num único pipeline
func (r *RedisCache) SetEvent(ctx context.Context, e events.OddsUpdate) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := r.Client.TxPipeline()
	pipe.Set(ctx, sharedcache.EventKey(e.EventID), b, r.TTL)
	for k, price := range BestPrices(e) {
		pipe.Set(ctx, k, price.String(), r.TTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}
