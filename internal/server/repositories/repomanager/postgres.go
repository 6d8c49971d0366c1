// Package repomanager opens the edge node's Postgres database, applies the
// embedded goose migrations and vends the repositories built on it.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andres-erbsen/clock"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/casedge/internal/dbx"
	"github.com/dmitrijs2005/casedge/internal/server/keyvalue"
	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
	"github.com/dmitrijs2005/casedge/internal/server/migrations"
)

type PostgresRepositoryManager struct{}

// KeyValues returns the durable entry-list repository bound to db.
func (m *PostgresRepositoryManager) KeyValues(db dbx.DBTX) keyvalue.Repository {
	return keyvalue.NewPostgresRepository(db)
}

// CacheEntries returns the shared hot-cache store bound to db.
func (m *PostgresRepositoryManager) CacheEntries(db dbx.DBTX, c clock.Clock) *kvcache.PostgresStore {
	return kvcache.NewPostgresStore(db, c)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations to db.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open connects to dsn through the pgx driver and checks the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sqlOpen("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return db, nil
}
