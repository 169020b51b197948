package store

import (
	"context"
	"database/sql"
	stderrors "errors"
	"net/netip"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/recon/internal/errors"
	"github.com/anstrom/recon/internal/logging"
	"github.com/anstrom/recon/internal/output"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = conn.Close()
	})
	return New(sqlx.NewDb(conn, "postgres"), logging.Discard()), mock
}

func records() []output.Record {
	return []output.Record{
		{Addr: netip.MustParseAddr("10.0.0.1"), Port: 22, State: "open", Method: "tcp", Latency: 1500 * time.Microsecond},
		{Addr: netip.MustParseAddr("10.0.0.1"), Port: 23, State: "closed", Method: "tcp"},
		{Addr: netip.MustParseAddr("10.0.0.2"), Port: 22, State: "error:timeout", Error: "timeout"},
	}
}

func TestMigrate_AppliesPending(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scans").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").
		WithArgs("001_probe_results", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, db.Migrate(context.Background()))
}

func TestMigrate_SkipsApplied(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("001_probe_results"))

	require.NoError(t, db.Migrate(context.Background()))
}

func TestMigrate_FailureIsFatal(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT name FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"name"}))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scans").
		WillReturnError(&pq.Error{Code: "42501", Message: "permission denied"})
	mock.ExpectRollback()

	err := db.Migrate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseMigration))
	assert.True(t, errors.IsFatal(err))
}

func TestSaveBatch(t *testing.T) {
	db, mock := newMockDB(t)
	scanID := NewScan("tcp", []string{"10.0.0.0/30"}, "22,23").ID

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO probe_results").
		WithArgs(
			scanID, "10.0.0.1", 22, "open", "tcp", "", "", 1.5,
			scanID, "10.0.0.1", 23, "closed", "tcp", "", "", 0.0,
			scanID, "10.0.0.2", 22, "error:timeout", "", "", "timeout", 0.0,
		).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, db.SaveBatch(context.Background(), scanID, records()))
}

func TestSaveBatch_Empty(t *testing.T) {
	db, _ := newMockDB(t)
	require.NoError(t, db.SaveBatch(context.Background(), NewScan("tcp", nil, "").ID, nil))
}

func TestSaveBatch_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO probe_results").
		WillReturnError(&pq.Error{Code: "23503", Message: "violates foreign key constraint"})
	mock.ExpectRollback()

	err := db.SaveBatch(context.Background(), NewScan("tcp", nil, "").ID, records())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.NotContains(t, err.Error(), "foreign key", "driver detail stays in the cause")
}

func TestSink(t *testing.T) {
	db, mock := newMockDB(t)
	scan := NewScan("socks5", []string{"10.0.0.0/24", "10.1.0.1"}, "1080")

	mock.ExpectExec("INSERT INTO scans").
		WithArgs(scan.ID, "socks5", "10.0.0.0/24,10.1.0.1", "1080").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO probe_results").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()
	mock.ExpectExec("UPDATE scans SET finished_at").
		WithArgs(sqlmock.AnyArg(), 3, scan.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink, err := NewSink(context.Background(), db, scan)
	require.NoError(t, err)
	assert.Equal(t, scan.ID, sink.ScanID())

	require.NoError(t, sink.Write(records()))
	require.NoError(t, sink.Close())
}

func TestSanitizeDBError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code errors.ErrorCode
	}{
		{"canceled", context.Canceled, errors.CodeCanceled},
		{"conn done", sql.ErrConnDone, errors.CodeDatabaseConnection},
		{"not null", &pq.Error{Code: "23502"}, errors.CodeValidation},
		{"query canceled", &pq.Error{Code: "57014"}, errors.CodeCanceled},
		{"connection failure", &pq.Error{Code: "08006"}, errors.CodeDatabaseConnection},
		{"unknown pq error", &pq.Error{Code: "42P01"}, errors.CodeDatabaseQuery},
		{"plain", stderrors.New("boom"), errors.CodeDatabaseQuery},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sanitizeDBError("op", tt.err)
			assert.Equal(t, tt.code, errors.GetCode(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.NoError(t, sanitizeDBError("op", nil))
}

func TestStripDSN(t *testing.T) {
	err := stripDSN(&pq.Error{Code: "28P01", Message: "password authentication failed for user \"recon\""})
	assert.Equal(t, "28P01: password authentication failed for user \"recon\"", err.Error())

	plain := stderrors.New("dial tcp: connection refused")
	assert.Equal(t, plain, stripDSN(plain))
}
