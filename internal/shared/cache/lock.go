package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockHeld indica que outra instância já possui o lock
var ErrLockHeld = errors.New("lock held by another owner")

// só apaga a chave se o token ainda for o nosso
const unlockScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Locker implementa um lock distribuído simples com SET NX + TTL
type Locker struct {
	rdb    *redis.Client
	unlock *redis.Script
}

func NewLocker(rdb *redis.Client) *Locker {
	return &Locker{rdb: rdb, unlock: redis.NewScript(unlockScript)}
}

// Acquire tenta obter o lock "lock:{name}". Retorna a função de liberação,
// que pode ser chamada mais de uma vez.
func (l *Locker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), error) {
	key := "lock:" + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = l.unlock.Run(ctx, l.rdb, []string{key}, token).Err()
	}, nil
}
