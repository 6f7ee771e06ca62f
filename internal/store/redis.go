package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/go-redis/redis/v8"
)

// Redis keeps one JSON document per exchange under triarb:universe:<exchange>.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(addr, password string, db int, ttl time.Duration) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: rdb, ttl: ttl}
}

func universeKey(exchange string) string { return "triarb:universe:" + exchange }

func (r *Redis) SaveUniverse(ctx context.Context, u Universe) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, universeKey(u.Exchange), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", u.Exchange, err)
	}
	return nil
}

func (r *Redis) LoadUniverse(ctx context.Context, exchange string) (Universe, error) {
	b, err := r.client.Get(ctx, universeKey(exchange)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Universe{}, ErrNotFound
	}
	if err != nil {
		return Universe{}, fmt.Errorf("redis load %s: %w", exchange, err)
	}
	var u Universe
	if err := json.Unmarshal(b, &u); err != nil {
		return Universe{}, fmt.Errorf("redis decode %s: %w", exchange, err)
	}
	return u, nil
}

func (r *Redis) Close() error { return r.client.Close() }
