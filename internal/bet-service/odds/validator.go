package odds

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	sharedcache "github.com/radieske/paper-sportsbook/internal/shared/cache"
)

type Validator struct {
	Rdb *redis.Client
}

func NewValidator(r *redis.Client) *Validator { return &Validator{Rdb: r} }

// CurrentPrice lê o melhor preço gravado pelo odds-processor.
// ok=false em cache miss; o chamador cai para o Postgres.
func (v *Validator) CurrentPrice(ctx context.Context, eventID, market, outcome string, line decimal.NullDecimal) (decimal.Decimal, bool, error) {
	val, err := v.Rdb.Get(ctx, sharedcache.QuoteKey(eventID, market, outcome, line)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	d, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false, err
	}
	return d, true, nil
}
