package skyodyssey

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const faresSchema = `
CREATE TABLE IF NOT EXISTS fares (
	key        TEXT PRIMARY KEY,
	price      DOUBLE PRECISION NOT NULL,
	raw_price  TEXT NOT NULL DEFAULT '',
	carrier    TEXT NOT NULL DEFAULT '',
	stops      INTEGER NOT NULL DEFAULT 0,
	depart     TEXT NOT NULL DEFAULT '',
	arrive     TEXT NOT NULL DEFAULT '',
	duration   TEXT NOT NULL DEFAULT '',
	link       TEXT NOT NULL DEFAULT '',
	no_fare    BOOLEAN NOT NULL DEFAULT FALSE,
	origin     TEXT NOT NULL DEFAULT '',
	dest       TEXT NOT NULL DEFAULT '',
	date       TEXT NOT NULL DEFAULT '',
	stored_at  TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
)`

// PostgresCache is a postgres-backed CacheStore. The table mirrors the
// persisted cache layout: one row per canonical leg query.
type PostgresCache struct {
	pool   *pgxpool.Pool
	ttl    time.Duration
	logger Logger
}

// NewPostgresCache ensures the fares table exists and returns the store.
func NewPostgresCache(ctx context.Context, pool *pgxpool.Pool, logger Logger) (*PostgresCache, error) {
	if pool == nil {
		return nil, errors.New("nil postgres pool")
	}
	if _, err := pool.Exec(ctx, faresSchema); err != nil {
		return nil, err
	}
	return &PostgresCache{pool: pool, ttl: DefaultCacheTTL, logger: logger}, nil
}

// Get returns the fresh entry for key. Backend errors degrade to a miss.
func (c *PostgresCache) Get(ctx context.Context, key string) (*CacheEntry, bool) {
	row := c.pool.QueryRow(ctx, `
		SELECT price, raw_price, carrier, stops, depart, arrive, duration, link,
		       no_fare, origin, dest, date, stored_at
		FROM fares
		WHERE key = $1 AND expires_at > now()
	`, key)

	var p persistedFare
	if err := row.Scan(&p.Price, &p.RawPrice, &p.Carrier, &p.Stops, &p.Depart,
		&p.Arrive, &p.Duration, &p.Link, &p.NoFare, &p.Origin, &p.Dest, &p.Date, &p.StoredAt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) && c.logger != nil {
			c.logger.Warn("cache read error", "backend", "postgres", "err", err)
		}
		return nil, false
	}
	entry := p.toEntry(key)
	if entry.invalid() {
		c.Delete(ctx, key)
		return nil, false
	}
	return entry, true
}

// Set upserts entry under key; last write wins.
func (c *PostgresCache) Set(ctx context.Context, key string, entry *CacheEntry, ttl time.Duration) {
	if entry == nil || entry.invalid() {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	p := persistEntry(entry)
	storedAt := p.StoredAt
	if storedAt.IsZero() {
		storedAt = time.Now().UTC()
	}
	_, err := c.pool.Exec(ctx, `
		INSERT INTO fares (
			key, price, raw_price, carrier, stops, depart, arrive, duration,
			link, no_fare, origin, dest, date, stored_at, expires_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (key) DO UPDATE SET
			price = EXCLUDED.price,
			raw_price = EXCLUDED.raw_price,
			carrier = EXCLUDED.carrier,
			stops = EXCLUDED.stops,
			depart = EXCLUDED.depart,
			arrive = EXCLUDED.arrive,
			duration = EXCLUDED.duration,
			link = EXCLUDED.link,
			no_fare = EXCLUDED.no_fare,
			origin = EXCLUDED.origin,
			dest = EXCLUDED.dest,
			date = EXCLUDED.date,
			stored_at = EXCLUDED.stored_at,
			expires_at = EXCLUDED.expires_at
	`, key, p.Price, p.RawPrice, p.Carrier, p.Stops, p.Depart, p.Arrive, p.Duration,
		p.Link, p.NoFare, p.Origin, p.Dest, p.Date, storedAt, storedAt.Add(ttl))
	if err != nil && c.logger != nil {
		c.logger.Warn("cache write error", "backend", "postgres", "err", err)
	}
}

// Delete removes key.
func (c *PostgresCache) Delete(ctx context.Context, key string) {
	if _, err := c.pool.Exec(ctx, `DELETE FROM fares WHERE key = $1`, key); err != nil && c.logger != nil {
		c.logger.Warn("cache delete error", "backend", "postgres", "err", err)
	}
}

// Sweep drops expired rows and every row holding a non-positive price.
func (c *PostgresCache) Sweep(ctx context.Context) int {
	tag, err := c.pool.Exec(ctx, `
		DELETE FROM fares
		WHERE expires_at <= now() OR (NOT no_fare AND price <= 0)
	`)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn("cache sweep error", "backend", "postgres", "err", err)
		}
		return 0
	}
	return int(tag.RowsAffected())
}
