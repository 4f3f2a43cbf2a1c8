package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestLockDocumentTakesAndReleasesAdvisoryLock(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec(`SELECT pg_advisory_lock\(\$1, hashtext\(\$2\)\)`).
		WithArgs(documentLockSpace, "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1, hashtext\(\$2\)\)`).
		WithArgs(documentLockSpace, "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	locker := NewDocumentLocker(db)
	unlock, err := locker.LockDocument(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("LockDocument() error = %v", err)
	}
	unlock()

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLockDocumentReportsLockError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("SELECT pg_advisory_lock").WillReturnError(errors.New("canceling statement"))

	locker := NewDocumentLocker(db)
	if _, err := locker.LockDocument(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected lock error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
