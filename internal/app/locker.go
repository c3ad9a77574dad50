package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/wellness_booking/internal/config"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker не даёт нескольким инстансам одновременно выполнять один обход
type Locker interface {
	// TryLock возвращает release и true, если блокировка получена
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

const sweepLockPrefix = "wellness:sweep:"

// снимаем блокировку только если она всё ещё наша
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker блокировка через SET NX PX
type RedisLocker struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewRedisLocker подключается к redis и проверяет соединение
func NewRedisLocker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*RedisLocker, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	logger.Info("Connected to redis", zap.String("addr", cfg.Addr))

	return &RedisLocker{rdb: rdb, logger: logger}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	fullKey := sweepLockPrefix + key

	ok, err := l.rdb.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, l.rdb, []string{fullKey}, token).Err(); err != nil {
			l.logger.Warn("Failed to release sweep lock", zap.String("key", key), zap.Error(err))
		}
	}

	return release, true, nil
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}

// LocalLocker используется без redis (один инстанс): блокировка всегда получена
type LocalLocker struct{}

func (LocalLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
