package kvcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andres-erbsen/clock"

	"github.com/dmitrijs2005/casedge/internal/dbx"
)

// PostgresStore keeps hot entries in the cache_entries table so several
// edge processes can share them. Expired rows are invisible to Get and are
// removed by DeleteExpired.
type PostgresStore struct {
	db    dbx.DBTX
	clock clock.Clock
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db dbx.DBTX, c clock.Clock) *PostgresStore {
	if c == nil {
		c = clock.New()
	}
	return &PostgresStore{db: db, clock: c}
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	query :=
		`SELECT value FROM cache_entries
		 WHERE key = $1 AND (expires_at IS NULL OR expires_at > $2)`

	var value []byte
	err := s.db.QueryRowContext(ctx, query, key, s.clock.Now().UTC()).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("db error: %w", err)
	}
	return value, true, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query :=
		`INSERT INTO cache_entries (key, value, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`

	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: s.clock.Now().Add(ttl).UTC(), Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query, key, value, expiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose TTL has passed and returns how many
// were deleted.
func (s *PostgresStore) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= $1`,
		s.clock.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
