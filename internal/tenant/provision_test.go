package tenant

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestProvision(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	schema, err := DeriveSchemaName("kraft")
	if err != nil {
		t.Fatalf("DeriveSchemaName: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`create schema if not exists "org_kraft"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`insert into "org_kraft"."users"`).
		WithArgs(sqlmock.AnyArg(), "admin@kraft.example", "$2a$fakehash", "First Admin").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	err = Provision(context.Background(), tx, schema, AdminSeed{
		Email:        "admin@kraft.example",
		PasswordHash: "$2a$fakehash",
		FullName:     "First Admin",
	})
	if err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArchive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	from, err := DeriveSchemaName("kraft")
	if err != nil {
		t.Fatalf("DeriveSchemaName: %v", err)
	}
	to, err := ArchiveSchemaName("kraft")
	if err != nil {
		t.Fatalf("ArchiveSchemaName: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectExec(`alter schema "org_kraft" rename to "del_kraft"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := Archive(context.Background(), tx, from, to); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
