package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `CREATE TABLE IF NOT EXISTS universe (
	exchange TEXT PRIMARY KEY,
	payload  BLOB NOT NULL,
	saved_at INTEGER NOT NULL
)`

// SQLite keeps the latest universe per exchange in a single table.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func OpenSQLite(path string, ttl time.Duration) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLite) SaveUniverse(ctx context.Context, u Universe) error {
	b, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO universe (exchange, payload, saved_at) VALUES (?, ?, ?)
		 ON CONFLICT(exchange) DO UPDATE SET payload = excluded.payload, saved_at = excluded.saved_at`,
		u.Exchange, b, u.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("sqlite save %s: %w", u.Exchange, err)
	}
	return nil
}

func (s *SQLite) LoadUniverse(ctx context.Context, exchange string) (Universe, error) {
	var (
		b       []byte
		savedMs int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT payload, saved_at FROM universe WHERE exchange = ?`, exchange).Scan(&b, &savedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return Universe{}, ErrNotFound
	}
	if err != nil {
		return Universe{}, fmt.Errorf("sqlite load %s: %w", exchange, err)
	}
	if expired(time.UnixMilli(savedMs), s.ttl, s.now()) {
		return Universe{}, ErrNotFound
	}
	var u Universe
	if err := json.Unmarshal(b, &u); err != nil {
		return Universe{}, fmt.Errorf("sqlite decode %s: %w", exchange, err)
	}
	return u, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
