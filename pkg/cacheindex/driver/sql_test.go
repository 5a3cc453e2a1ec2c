/*
Copyright The Helm Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package driver

import (
	"database/sql"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunny352/YooAsset/internal/logging"
)

func newTestFixtureSQL(t *testing.T) (*SQL, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error when opening stub database connection: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	sqlxDB := sqlx.NewDb(sqlDB, "sqlmock")
	return &SQL{
		db:               sqlxDB,
		packageName:      "Demo",
		statementBuilder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		Log:              logging.Discard(),
	}, mock
}

func recordRows(mock sqlmock.Sqlmock, recs ...*Record) *sqlmock.Rows {
	rows := mock.NewRows(recordColumns)
	for _, r := range recs {
		rows.AddRow(r.CacheGUID, r.FileName, r.FileHash, r.FileSize, r.CreatedAt)
	}
	return rows
}

func TestSQLName(t *testing.T) {
	sqlDriver, _ := newTestFixtureSQL(t)
	assert.Equal(t, SQLDriverName, sqlDriver.Name())
}

func TestSQLGet(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)
	rec := recordStub("c0ffee01")

	mock.
		ExpectQuery("SELECT (.+) FROM yoo_cache_records WHERE (.+)").
		WithArgs("Demo", "c0ffee01").
		WillReturnRows(recordRows(mock, rec))

	got, err := sqlDriver.Get("c0ffee01")
	require.NoError(t, err)
	assert.Equal(t, "Demo", got.PackageName)
	assert.Equal(t, rec.FileHash, got.FileHash)
	assert.Equal(t, rec.FileSize, got.FileSize)

	mock.
		ExpectQuery("SELECT (.+) FROM yoo_cache_records WHERE (.+)").
		WithArgs("Demo", "ffffffff").
		WillReturnRows(recordRows(mock))

	_, err = sqlDriver.Get("ffffffff")
	assert.True(t, errors.Is(err, ErrRecordNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLList(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)

	mock.
		ExpectQuery("SELECT (.+) FROM yoo_cache_records WHERE (.+) ORDER BY cache_guid").
		WithArgs("Demo").
		WillReturnRows(recordRows(mock, recordStub("a0ffee02"), recordStub("c0ffee01")))

	ls, err := sqlDriver.List()
	require.NoError(t, err)
	require.Len(t, ls, 2)
	assert.Equal(t, "a0ffee02", ls[0].CacheGUID)
	assert.Equal(t, "Demo", ls[1].PackageName)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCreate(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)
	rec := recordStub("c0ffee01")

	mock.ExpectBegin()
	mock.
		ExpectExec("INSERT INTO yoo_cache_records (.+) VALUES (.+)").
		WithArgs("Demo", rec.CacheGUID, rec.FileName, rec.FileHash, rec.FileSize, rec.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, sqlDriver.Create(rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCreateAlreadyExists(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)
	rec := recordStub("c0ffee01")

	mock.ExpectBegin()
	mock.
		ExpectExec("INSERT INTO yoo_cache_records (.+) VALUES (.+)").
		WithArgs("Demo", rec.CacheGUID, rec.FileName, rec.FileHash, rec.FileSize, rec.CreatedAt).
		WillReturnError(errors.New("duplicate key value violates unique constraint"))
	// the lookup must not run inside the aborted transaction
	mock.ExpectRollback()
	mock.
		ExpectQuery("SELECT cache_guid FROM yoo_cache_records WHERE (.+)").
		WithArgs("Demo", rec.CacheGUID).
		WillReturnRows(mock.NewRows([]string{"cache_guid"}).AddRow(rec.CacheGUID))

	err := sqlDriver.Create(rec)
	assert.True(t, errors.Is(err, ErrRecordExists))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLCreateFails(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)
	rec := recordStub("c0ffee01")

	mock.ExpectBegin()
	mock.
		ExpectExec("INSERT INTO yoo_cache_records (.+) VALUES (.+)").
		WithArgs("Demo", rec.CacheGUID, rec.FileName, rec.FileHash, rec.FileSize, rec.CreatedAt).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()
	mock.
		ExpectQuery("SELECT cache_guid FROM yoo_cache_records WHERE (.+)").
		WithArgs("Demo", rec.CacheGUID).
		WillReturnError(sql.ErrNoRows)

	err := sqlDriver.Create(rec)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRecordExists))
	assert.Equal(t, "connection reset", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLUpdate(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)
	rec := recordStub("c0ffee01")

	mock.
		ExpectExec("UPDATE yoo_cache_records SET (.+) WHERE (.+)").
		WithArgs(rec.FileName, rec.FileHash, rec.FileSize, rec.CreatedAt, "Demo", rec.CacheGUID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, sqlDriver.Update(rec))

	mock.
		ExpectExec("UPDATE yoo_cache_records SET (.+) WHERE (.+)").
		WithArgs(rec.FileName, rec.FileHash, rec.FileSize, rec.CreatedAt, "Demo", "ffffffff").
		WillReturnResult(sqlmock.NewResult(0, 0))

	missing := recordStub("ffffffff")
	missing.FileName, missing.FileHash, missing.FileSize = rec.FileName, rec.FileHash, rec.FileSize
	assert.True(t, errors.Is(sqlDriver.Update(missing), ErrRecordNotFound))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLDelete(t *testing.T) {
	sqlDriver, mock := newTestFixtureSQL(t)
	rec := recordStub("c0ffee01")

	mock.
		ExpectQuery("SELECT (.+) FROM yoo_cache_records WHERE (.+)").
		WithArgs("Demo", rec.CacheGUID).
		WillReturnRows(recordRows(mock, rec))
	mock.
		ExpectExec("DELETE FROM yoo_cache_records WHERE (.+)").
		WithArgs("Demo", rec.CacheGUID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	got, err := sqlDriver.Delete(rec.CacheGUID)
	require.NoError(t, err)
	assert.Equal(t, rec.CacheGUID, got.CacheGUID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
