package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
)

func TestSnapshotStore_Save(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO document_snapshots").
		WithArgs("doc1", uint64(3), "Hello").
		WillReturnResult(sqlmock.NewResult(1, 1))

	s := NewSnapshotStore(db)
	if err := s.SaveDocumentSnapshot(context.Background(), "doc1", 3, "Hello"); err != nil {
		t.Fatalf("SaveDocumentSnapshot() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

// 唯一键冲突说明这一版已经写过，当成功处理。
func TestSnapshotStore_DuplicateTolerated(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO document_snapshots").
		WithArgs("doc1", uint64(3), "Hello").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	s := NewSnapshotStore(db)
	if err := s.SaveDocumentSnapshot(context.Background(), "doc1", 3, "Hello"); err != nil {
		t.Fatalf("SaveDocumentSnapshot() error = %v, want nil on duplicate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSnapshotStore_OtherErrorPropagates(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO document_snapshots").
		WithArgs("doc1", uint64(3), "Hello").
		WillReturnError(boom)

	s := NewSnapshotStore(db)
	if err := s.SaveDocumentSnapshot(context.Background(), "doc1", 3, "Hello"); !errors.Is(err, boom) {
		t.Fatalf("SaveDocumentSnapshot() error = %v, want %v", err, boom)
	}
}
