// Package cache реализует хранилище одноразовых кодов привязки Telegram
// на основе Redis. TTL ключа даёт фоновую уборку истёкших кодов на уровне
// хранилища, SET NX — уникальность кода среди активных, GETDEL — атомарное
// одноразовое погашение.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/chronosdev/chronos-backend/internal/config"
)

// ErrLinkCodeNotFound — код отсутствует, уже погашен либо истёк.
// Три случая намеренно неразличимы для вызывающей стороны.
var ErrLinkCodeNotFound = errors.New("link code not found")

const linkCodePrefix = "telegram:link:"

// Cache инкапсулирует клиент Redis.
type Cache struct {
	Db *redis.Client
}

// InitServer подключается к Redis согласно конфигу.
func InitServer(ctx context.Context, cfg config.RedisConnection) (*Cache, error) {
	const op = "cache.InitServer"
	db := redis.NewClient(&redis.Options{
		Addr:         cfg.AddressRedis,
		Password:     cfg.Password,
		DB:           cfg.DB,
		Username:     cfg.User,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.TimeoutRedis,
		WriteTimeout: cfg.TimeoutRedis,
	})

	if err := db.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Cache{Db: db}, nil
}

// SaveLinkCode сохраняет код с привязкой к пользователю и TTL.
// Возвращает false без ошибки, если код уже существует среди активных —
// вызывающая сторона генерирует новый код и повторяет.
func (c *Cache) SaveLinkCode(ctx context.Context, code, userUID string, ttl time.Duration) (bool, error) {
	const op = "cache.SaveLinkCode"
	stored, err := c.Db.SetNX(ctx, linkCodePrefix+code, userUID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return stored, nil
}

// ConsumeLinkCode атомарно изымает код и возвращает UID владельца.
// Повторное погашение того же кода, как и погашение истёкшего или
// несуществующего, даёт ErrLinkCodeNotFound.
func (c *Cache) ConsumeLinkCode(ctx context.Context, code string) (string, error) {
	const op = "cache.ConsumeLinkCode"
	userUID, err := c.Db.GetDel(ctx, linkCodePrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%s: %w", op, ErrLinkCodeNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return userUID, nil
}
