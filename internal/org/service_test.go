package org

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"orgctl/internal/audit"
)

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	return NewService(db, audit.NewRecorder()), mock, func() { _ = db.Close() }
}

func controlRow(t *testing.T, id, schema string, active bool) *sqlmock.Rows {
	t.Helper()
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "schema_name", "max_users", "is_active", "created_by_id", "created_at", "updated_at",
	}).AddRow(id, "Org "+id, schema, 25, active, "sad_1", now, now)
}

func validCreateInput(id string) CreateInput {
	return CreateInput{
		ID:            id,
		Name:          "Org " + id,
		MaxUsers:      25,
		AdminEmail:    "admin@" + id + ".example",
		AdminPassword: "a strong admin password",
		AdminFullName: "First Admin",
	}
}

func TestCreateOrganization(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, is_active from public.organizations`).WithArgs("kraft").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(`insert into public.organizations`).
		WithArgs("kraft", "Org kraft", "org_kraft", 25, "sad_1").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`create schema if not exists "org_kraft"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`insert into "org_kraft"."users"`).
		WithArgs(sqlmock.AnyArg(), "admin@kraft.example", sqlmock.AnyArg(), "First Admin").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`insert into public.global_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "SUPER_ADMIN", "sad_1", "ORGANIZATION_CREATED", "kraft", "ORGANIZATION", "kraft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`from public.organizations`).WithArgs("kraft").
		WillReturnRows(controlRow(t, "kraft", "org_kraft", true))

	o, err := svc.Create(context.Background(), "sad_1", validCreateInput("kraft"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.ID != "kraft" || o.Schema.String() != "org_kraft" || !o.Status.Active() {
		t.Fatalf("unexpected organization: %+v", o)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOrganizationAlreadyExists(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, is_active from public.organizations`).WithArgs("kraft").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active"}).AddRow("kraft", true))
	mock.ExpectRollback()

	if _, err := svc.Create(context.Background(), "sad_1", validCreateInput("kraft")); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOrganizationReactivatesArchivedRow(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`select id, is_active from public.organizations`).WithArgs("kraft").
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active"}).AddRow("kraft", false))
	mock.ExpectExec(`update public.organizations`).
		WithArgs("Org kraft", "org_kraft", 25, "sad_1", "kraft").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`create schema if not exists "org_kraft"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`insert into "org_kraft"."users"`).
		WithArgs(sqlmock.AnyArg(), "admin@kraft.example", sqlmock.AnyArg(), "First Admin").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`insert into public.global_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "SUPER_ADMIN", "sad_1", "ORGANIZATION_CREATED", "kraft", "ORGANIZATION", "kraft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`from public.organizations`).WithArgs("kraft").
		WillReturnRows(controlRow(t, "kraft", "org_kraft", true))

	o, err := svc.Create(context.Background(), "sad_1", validCreateInput("kraft"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !o.Status.Active() {
		t.Fatalf("reactivated organization must be active: %+v", o)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateOrganizationValidation(t *testing.T) {
	svc, _, done := newTestService(t)
	defer done()

	cases := []CreateInput{
		{ID: "Kraft!", Name: "Org", MaxUsers: 5, AdminEmail: "a@b.c", AdminPassword: "long enough password", AdminFullName: "Admin"},
		func() CreateInput { in := validCreateInput("kraft"); in.Name = "x"; return in }(),
		func() CreateInput { in := validCreateInput("kraft"); in.MaxUsers = 0; return in }(),
		func() CreateInput { in := validCreateInput("kraft"); in.AdminEmail = "nope"; return in }(),
		func() CreateInput { in := validCreateInput("kraft"); in.AdminPassword = "short"; return in }(),
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), "sad_1", in); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestDeleteOrganization(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`select name, schema_name, is_active from public.organizations`).WithArgs("kraft").
		WillReturnRows(sqlmock.NewRows([]string{"name", "schema_name", "is_active"}).
			AddRow("Org kraft", "org_kraft", true))
	mock.ExpectExec(`alter schema "org_kraft" rename to "del_kraft"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`update public.organizations`).WithArgs("del_kraft", "kraft").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into public.global_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "SUPER_ADMIN", "sad_1", "ORGANIZATION_DELETED", "kraft", "ORGANIZATION", "kraft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery(`from public.organizations`).WithArgs("kraft").
		WillReturnRows(controlRow(t, "kraft", "del_kraft", false))

	o, err := svc.Delete(context.Background(), "sad_1", "kraft")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if o.Status.Active() {
		t.Fatalf("archived organization must not be active: %+v", o)
	}
	if o.Schema.String() != "del_kraft" {
		t.Fatalf("schema must be renamed to the archive name: %s", o.Schema)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteOrganizationAlreadyArchived(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`select name, schema_name, is_active from public.organizations`).WithArgs("kraft").
		WillReturnRows(sqlmock.NewRows([]string{"name", "schema_name", "is_active"}).
			AddRow("Org kraft", "del_kraft", false))
	mock.ExpectRollback()

	if _, err := svc.Delete(context.Background(), "sad_1", "kraft"); !errors.Is(err, ErrAlreadyArchived) {
		t.Fatalf("expected ErrAlreadyArchived, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDeleteOrganizationNotFound(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectQuery(`select name, schema_name, is_active from public.organizations`).WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	if _, err := svc.Delete(context.Background(), "sad_1", "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMaxUsers(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec(`update public.organizations set max_users`).WithArgs(50, "kraft").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`insert into public.global_audit_logs`).
		WithArgs(sqlmock.AnyArg(), "SUPER_ADMIN", "sad_1", "ORGANIZATION_MAX_USERS_UPDATED", "kraft", "ORGANIZATION", "kraft", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`from public.organizations`).WithArgs("kraft").
		WillReturnRows(controlRow(t, "kraft", "org_kraft", true))

	if _, err := svc.UpdateMaxUsers(context.Background(), "sad_1", "kraft", 50); err != nil {
		t.Fatalf("UpdateMaxUsers: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateMaxUsersNotFound(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	mock.ExpectExec(`update public.organizations set max_users`).WithArgs(50, "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := svc.UpdateMaxUsers(context.Background(), "sad_1", "ghost", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateMaxUsers(context.Background(), "sad_1", "kraft", 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListActiveOldestFirst(t *testing.T) {
	svc, mock, done := newTestService(t)
	defer done()

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "name", "schema_name", "max_users", "is_active", "created_by_id", "created_at", "updated_at",
	}).
		AddRow("alpha", "Org alpha", "org_alpha", 10, true, "sad_1", now.Add(-time.Hour), now).
		AddRow("beta", "Org beta", "org_beta", 10, true, "sad_1", now, now)
	mock.ExpectQuery(`order by created_at asc`).WillReturnRows(rows)

	orgs, err := svc.ListActiveOldestFirst(context.Background())
	if err != nil {
		t.Fatalf("ListActiveOldestFirst: %v", err)
	}
	if len(orgs) != 2 || orgs[0].ID != "alpha" || orgs[1].ID != "beta" {
		t.Fatalf("unexpected ordering: %+v", orgs)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
