package repomanager

import (
	"context"
	"database/sql"

	"github.com/andres-erbsen/clock"

	"github.com/dmitrijs2005/casedge/internal/dbx"
	"github.com/dmitrijs2005/casedge/internal/server/keyvalue"
	"github.com/dmitrijs2005/casedge/internal/server/kvcache"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	KeyValues(db dbx.DBTX) keyvalue.Repository
	CacheEntries(db dbx.DBTX, c clock.Clock) *kvcache.PostgresStore
}
