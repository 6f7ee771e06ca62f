// Package store persists the enumerated universe so a restart can resume
// surface scanning before the first exchange-info round trip completes.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"triarb/internal/config"
	"triarb/internal/exchange/common"
	"triarb/internal/graph"
)

var ErrNotFound = errors.New("universe not stored")

// Universe is the enumerator output for one exchange.
type Universe struct {
	Exchange  string                   `json:"exchange"`
	Symbols   []common.TradeableSymbol `json:"symbols"`
	Triangles []graph.Triangular       `json:"triangles"`
	SavedAt   time.Time                `json:"saved_at"`
}

type Store interface {
	SaveUniverse(ctx context.Context, u Universe) error
	// LoadUniverse returns ErrNotFound when nothing usable is stored.
	LoadUniverse(ctx context.Context, exchange string) (Universe, error)
	Close() error
}

// Open selects the driver named in cfg.Store.
func Open(cfg config.Config, logger zerolog.Logger) (Store, error) {
	ttl := time.Duration(cfg.Store.TTLSeconds) * time.Second
	switch strings.ToLower(cfg.Store.Driver) {
	case "", "none":
		return Nop{}, nil
	case "redis":
		logger.Info().Str("addr", cfg.Store.RedisAddr).Int("db", cfg.Store.RedisDB).Msg("using redis universe store")
		return NewRedis(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, ttl), nil
	case "sqlite":
		logger.Info().Str("path", cfg.Store.SQLitePath).Msg("using sqlite universe store")
		return OpenSQLite(cfg.Store.SQLitePath, ttl)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Store.Driver)
	}
}

// Nop stores nothing.
type Nop struct{}

func (Nop) SaveUniverse(ctx context.Context, u Universe) error { return nil }
func (Nop) LoadUniverse(ctx context.Context, exchange string) (Universe, error) {
	return Universe{}, ErrNotFound
}
func (Nop) Close() error { return nil }

func expired(savedAt time.Time, ttl time.Duration, now time.Time) bool {
	return ttl > 0 && now.Sub(savedAt) > ttl
}
