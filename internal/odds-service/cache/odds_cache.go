package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	sharedcache "github.com/radieske/paper-sportsbook/internal/shared/cache"
	"github.com/radieske/paper-sportsbook/pkg/contracts/events"
)

// Cache lê o snapshot gravado pelo odds-processor; em miss o odds-service
// regrava a partir do Postgres com TTL curto
type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

func (c *Cache) GetOdds(ctx context.Context, eventID string) (events.OddsUpdate, bool, error) {
	var u events.OddsUpdate
	b, err := c.R.Get(ctx, sharedcache.EventKey(eventID)).Bytes()
	if err == redis.Nil {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	if err := json.Unmarshal(b, &u); err != nil {
		return u, false, err
	}
	return u, true, nil
}

func (c *Cache) SetOdds(ctx context.Context, u events.OddsUpdate, ttl time.Duration) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	// não sobrescreve um snapshot mais novo do processor
	return c.R.SetNX(ctx, sharedcache.EventKey(u.EventID), b, ttl).Err()
}
