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
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"

	// Import pq for postgres dialect
	_ "github.com/lib/pq"

	"github.com/sunny352/YooAsset/internal/logging"
)

var _ Driver = (*SQL)(nil)

// SQLDriverName is the string name of this driver.
const SQLDriverName = "SQL"

const postgreSQLDialect = "postgres"

const (
	sqlRecordTableName = "yoo_cache_records"

	sqlRecordTablePackageColumn   = "package_name"
	sqlRecordTableGUIDColumn      = "cache_guid"
	sqlRecordTableFileNameColumn  = "file_name"
	sqlRecordTableHashColumn      = "file_hash"
	sqlRecordTableSizeColumn      = "file_size"
	sqlRecordTableCreatedAtColumn = "created_at"
)

// SQL stores the records of one package in a PostgreSQL table shared by
// all packages.
type SQL struct {
	db               *sqlx.DB
	packageName      string
	statementBuilder sq.StatementBuilderType

	Log logrus.FieldLogger
}

// Name returns the name of the driver.
func (s *SQL) Name() string {
	return SQLDriverName
}

func (s *SQL) ensureDBSetup() error {
	migrations := &migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "init",
				Up: []string{
					fmt.Sprintf(`
						CREATE TABLE %s (
							%s VARCHAR(128) NOT NULL,
							%s VARCHAR(128) NOT NULL,
							%s TEXT NOT NULL,
							%s VARCHAR(128) NOT NULL,
							%s BIGINT NOT NULL,
							%s BIGINT NOT NULL,
							PRIMARY KEY (%s, %s)
						);
					`,
						sqlRecordTableName,
						sqlRecordTablePackageColumn,
						sqlRecordTableGUIDColumn,
						sqlRecordTableFileNameColumn,
						sqlRecordTableHashColumn,
						sqlRecordTableSizeColumn,
						sqlRecordTableCreatedAtColumn,
						sqlRecordTablePackageColumn,
						sqlRecordTableGUIDColumn,
					),
				},
				Down: []string{
					fmt.Sprintf(`DROP TABLE %s;`, sqlRecordTableName),
				},
			},
		},
	}

	_, err := migrate.Exec(s.db.DB, postgreSQLDialect, migrations, migrate.Up)
	return err
}

// NewSQL connects to PostgreSQL and prepares the record table.
func NewSQL(connectionString, packageName string, log logrus.FieldLogger) (*SQL, error) {
	db, err := sqlx.Connect(postgreSQLDialect, connectionString)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Discard()
	}

	driver := &SQL{
		db:               db,
		packageName:      packageName,
		statementBuilder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		Log:              log,
	}

	if err := driver.ensureDBSetup(); err != nil {
		return nil, err
	}

	return driver, nil
}

var recordColumns = []string{
	sqlRecordTableGUIDColumn,
	sqlRecordTableFileNameColumn,
	sqlRecordTableHashColumn,
	sqlRecordTableSizeColumn,
	sqlRecordTableCreatedAtColumn,
}

// Get returns the record for cacheGUID.
func (s *SQL) Get(cacheGUID string) (*Record, error) {
	query, args, err := s.statementBuilder.
		Select(recordColumns...).
		From(sqlRecordTableName).
		Where(sq.Eq{sqlRecordTablePackageColumn: s.packageName}).
		Where(sq.Eq{sqlRecordTableGUIDColumn: cacheGUID}).
		ToSql()
	if err != nil {
		s.Log.WithError(err).Debug("failed to build query")
		return nil, err
	}

	var rec Record
	if err := s.db.Get(&rec, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil, notFound(cacheGUID)
		}
		s.Log.WithError(err).Debugf("got SQL error when getting record %s", cacheGUID)
		return nil, err
	}
	rec.PackageName = s.packageName
	return &rec, nil
}

// List returns every record of the package.
func (s *SQL) List() ([]*Record, error) {
	query, args, err := s.statementBuilder.
		Select(recordColumns...).
		From(sqlRecordTableName).
		Where(sq.Eq{sqlRecordTablePackageColumn: s.packageName}).
		OrderBy(sqlRecordTableGUIDColumn).
		ToSql()
	if err != nil {
		s.Log.WithError(err).Debug("failed to build query")
		return nil, err
	}

	var records []Record
	if err := s.db.Select(&records, query, args...); err != nil {
		s.Log.WithError(err).Debug("list: failed to list")
		return nil, err
	}

	ls := make([]*Record, 0, len(records))
	for i := range records {
		records[i].PackageName = s.packageName
		ls = append(ls, &records[i])
	}
	return ls, nil
}

// Create inserts a new record.
func (s *SQL) Create(rec *Record) error {
	transaction, err := s.db.Beginx()
	if err != nil {
		s.Log.WithError(err).Debug("failed to start SQL transaction")
		return fmt.Errorf("error beginning transaction: %v", err)
	}

	insertQuery, args, err := s.statementBuilder.
		Insert(sqlRecordTableName).
		Columns(
			sqlRecordTablePackageColumn,
			sqlRecordTableGUIDColumn,
			sqlRecordTableFileNameColumn,
			sqlRecordTableHashColumn,
			sqlRecordTableSizeColumn,
			sqlRecordTableCreatedAtColumn,
		).
		Values(
			s.packageName,
			rec.CacheGUID,
			rec.FileName,
			rec.FileHash,
			rec.FileSize,
			createdAt(rec),
		).ToSql()
	if err != nil {
		transaction.Rollback()
		return err
	}

	if _, err := transaction.Exec(insertQuery, args...); err != nil {
		// A failed statement aborts a PostgreSQL transaction, so the
		// duplicate check runs after the rollback.
		transaction.Rollback()
		if s.has(rec.CacheGUID) {
			s.Log.Debugf("record %s already exists", rec.CacheGUID)
			return exists(rec.CacheGUID)
		}
		s.Log.WithError(err).Debugf("failed to store record %s in SQL database", rec.CacheGUID)
		return err
	}
	return transaction.Commit()
}

func (s *SQL) has(cacheGUID string) bool {
	query, args, err := s.statementBuilder.
		Select(sqlRecordTableGUIDColumn).
		From(sqlRecordTableName).
		Where(sq.Eq{sqlRecordTablePackageColumn: s.packageName}).
		Where(sq.Eq{sqlRecordTableGUIDColumn: cacheGUID}).
		ToSql()
	if err != nil {
		return false
	}
	var guid string
	return s.db.Get(&guid, query, args...) == nil
}

// Update replaces an existing record.
func (s *SQL) Update(rec *Record) error {
	query, args, err := s.statementBuilder.
		Update(sqlRecordTableName).
		Set(sqlRecordTableFileNameColumn, rec.FileName).
		Set(sqlRecordTableHashColumn, rec.FileHash).
		Set(sqlRecordTableSizeColumn, rec.FileSize).
		Set(sqlRecordTableCreatedAtColumn, createdAt(rec)).
		Where(sq.Eq{sqlRecordTablePackageColumn: s.packageName}).
		Where(sq.Eq{sqlRecordTableGUIDColumn: rec.CacheGUID}).
		ToSql()
	if err != nil {
		return err
	}

	res, err := s.db.Exec(query, args...)
	if err != nil {
		s.Log.WithError(err).Debugf("failed to update record %s in SQL database", rec.CacheGUID)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(rec.CacheGUID)
	}
	return nil
}

// Delete removes a record and returns it.
func (s *SQL) Delete(cacheGUID string) (*Record, error) {
	rec, err := s.Get(cacheGUID)
	if err != nil {
		return nil, err
	}

	query, args, err := s.statementBuilder.
		Delete(sqlRecordTableName).
		Where(sq.Eq{sqlRecordTablePackageColumn: s.packageName}).
		Where(sq.Eq{sqlRecordTableGUIDColumn: cacheGUID}).
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(query, args...); err != nil {
		s.Log.WithError(err).Debugf("failed to delete record %s", cacheGUID)
		return nil, err
	}
	return rec, nil
}

func createdAt(rec *Record) int64 {
	if rec.CreatedAt != 0 {
		return rec.CreatedAt
	}
	return time.Now().Unix()
}
