package dbx

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nyashahama/nlsql-queryengine/internal/apperr"
)

func TestPoolExecutorExecuteReturnsRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	rows := sqlmock.NewRows([]string{"id", "name"}).
		AddRow(1, "alice").
		AddRow(2, "bob")
	mock.ExpectQuery("SELECT id, name FROM users").WillReturnRows(rows)
	mock.ExpectRollback()

	exec := NewPoolExecutor("primary", db)
	result, count, err := exec.Execute(context.Background(), "SELECT id, name FROM users")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
	if result[0]["name"] != "alice" || result[1]["name"] != "bob" {
		t.Fatalf("result = %+v", result)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPoolExecutorWrapsEngineErrorAsRetryable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillReturnError(errors.New(`relation "missing" does not exist`))
	mock.ExpectRollback()

	exec := NewPoolExecutor("primary", db)
	_, _, err = exec.Execute(context.Background(), "SELECT * FROM missing")
	ae := apperr.AsError(err)
	if ae == nil || ae.Code != apperr.CodeDBError {
		t.Fatalf("err = %v, want db_error", err)
	}
	if !ae.IsRetryable() {
		t.Fatal("db_error must be retryable")
	}
}

func TestPoolExecutorWrapsConnectionFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	exec := NewPoolExecutor("primary", db)
	_, _, err = exec.Execute(context.Background(), "SELECT 1")
	ae := apperr.AsError(err)
	if ae == nil || ae.Code != apperr.CodeDBConnectionError {
		t.Fatalf("err = %v, want db_connection_error", err)
	}
	if ae.IsRetryable() {
		t.Fatal("db_connection_error must not be retryable")
	}
}
