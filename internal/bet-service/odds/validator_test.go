package odds

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

func TestCurrentPrice(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	v := NewValidator(rdb)
	line := decimal.NewNullDecimal(decimal.RequireFromString("-3.5"))

	_ = mr.Set("odds:e1:spreads:lakers:-3.500", "1.91")

	got, ok, err := v.CurrentPrice(context.Background(), "e1", "spreads", "Lakers", line)
	if err != nil || !ok || !got.Equal(decimal.RequireFromString("1.91")) {
		t.Errorf("CurrentPrice() = %s, %v, %v", got, ok, err)
	}

	_, ok, err = v.CurrentPrice(context.Background(), "e1", "h2h", "Lakers", decimal.NullDecimal{})
	if err != nil || ok {
		t.Errorf("miss = %v, %v; want false, nil", ok, err)
	}
}
