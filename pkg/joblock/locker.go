package joblock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost возвращается при освобождении блокировки, которая уже истекла или перехвачена
var ErrLockLost = errors.New("joblock: lock lost")

// Unlock освобождает блокировку
type Unlock func(ctx context.Context) error

// Locker распределённая блокировка задач планировщика.
// Планировщик не вызывает Unlock: его ключи привязаны к моменту запуска и истекают по ttl.
// Unlock нужен тем, кто держит блокировку только на время работы.
type Locker interface {
	// TryLock пытается захватить блокировку name на ttl
	// ok = false означает, что блокировку держит другой экземпляр
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock Unlock, ok bool, err error)
}

// Снимаем ключ, только если он всё ещё принадлежит нам
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker блокировка на SET NX PX
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker создает блокировку поверх redis клиента
func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "joblock"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, name string, ttl time.Duration) (Unlock, bool, error) {
	key := l.prefix + ":" + name
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("joblock: acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		res, err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("joblock: release %s: %w", key, err)
		}
		if res == 0 {
			return ErrLockLost
		}
		return nil
	}
	return unlock, true, nil
}

// NopLocker всегда отдаёт блокировку (один экземпляр сервиса, redis не настроен)
type NopLocker struct{}

func (NopLocker) TryLock(context.Context, string, time.Duration) (Unlock, bool, error) {
	return func(context.Context) error { return nil }, true, nil
}
