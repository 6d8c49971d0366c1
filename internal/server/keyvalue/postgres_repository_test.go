package keyvalue

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/casedge/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_Get(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT entries::text FROM keyvalue_entries WHERE key = \$1`).
		WithArgs("keyvalue:acme:app:abc").
		WillReturnRows(sqlmock.NewRows([]string{"entries"}).AddRow(`[{"value":"x"}]`))

	got, err := r.Get(context.Background(), "keyvalue:acme:app:abc")
	require.NoError(t, err)
	assert.JSONEq(t, `[{"value":"x"}]`, string(got))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_GetNotFound(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT entries::text FROM keyvalue_entries`).WillReturnError(sql.ErrNoRows)

	_, err := r.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgresRepository_GetError(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT entries::text FROM keyvalue_entries`).WillReturnError(errors.New("conn reset"))

	_, err := r.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "db error: conn reset")
	assert.NotErrorIs(t, err, common.ErrorNotFound)
}

func TestPostgresRepository_PutUpserts(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO keyvalue_entries .* ON CONFLICT \(key\) DO UPDATE SET entries = EXCLUDED.entries`).
		WithArgs("k", `[{"value":"v"}]`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, r.Put(context.Background(), "k", []byte(`[{"value":"v"}]`)))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_PutError(t *testing.T) {
	r, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO keyvalue_entries`).WillReturnError(errors.New("disk full"))

	err := r.Put(context.Background(), "k", []byte(`[]`))
	assert.ErrorContains(t, err, "db error: disk full")
}
