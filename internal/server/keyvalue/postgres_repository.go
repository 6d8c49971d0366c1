package keyvalue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/casedge/internal/common"
	"github.com/dmitrijs2005/casedge/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

var _ Repository = (*PostgresRepository)(nil)

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, key string) ([]byte, error) {
	query :=
		`SELECT entries::text FROM keyvalue_entries
		 WHERE key = $1`

	var entries string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&entries)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return []byte(entries), nil
}

func (r *PostgresRepository) Put(ctx context.Context, key string, entries []byte) error {
	query :=
		`INSERT INTO keyvalue_entries (key, entries, updated_at)
		 VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (key) DO UPDATE SET entries = EXCLUDED.entries, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, key, string(entries)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
