package org

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"orgctl/internal/audit"
	"orgctl/internal/password"
	"orgctl/internal/tenant"
)

const minAdminPasswordLen = 12

// Service implements the organization lifecycle against the control table.
type Service struct {
	db  *sql.DB
	rec *audit.Recorder
}

// NewService constructs a Service.
func NewService(db *sql.DB, rec *audit.Recorder) *Service {
	return &Service{db: db, rec: rec}
}

// CreateInput describes a new organization and its seed administrator.
type CreateInput struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	MaxUsers      int    `json:"max_users"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
	AdminFullName string `json:"admin_full_name"`
}

func (in CreateInput) validate() error {
	if len(strings.TrimSpace(in.Name)) < 2 {
		return fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
	}
	if in.MaxUsers < 1 {
		return fmt.Errorf("%w: max_users must be at least 1", ErrInvalidInput)
	}
	if !strings.Contains(in.AdminEmail, "@") {
		return fmt.Errorf("%w: admin_email is not an email address", ErrInvalidInput)
	}
	if len(in.AdminPassword) < minAdminPasswordLen {
		return fmt.Errorf("%w: admin_password must be at least %d characters", ErrInvalidInput, minAdminPasswordLen)
	}
	if len(strings.TrimSpace(in.AdminFullName)) < 2 {
		return fmt.Errorf("%w: admin_full_name must be at least 2 characters", ErrInvalidInput)
	}
	return nil
}

// Create provisions a new organization. When an archived row with the same
// identifier exists it is reactivated in place with a fresh schema; an active
// row with that identifier fails with ErrAlreadyExists. The control-row
// write, the schema provisioning and the audit entry commit atomically.
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*Organization, error) {
	schema, err := tenant.DeriveSchemaName(in.ID)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	hash, err := password.Hash(in.AdminPassword)
	if err != nil {
		return nil, fmt.Errorf("org: hash admin password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		existingID string
		active     bool
	)
	err = tx.QueryRowContext(ctx, `
		select id, is_active from public.organizations where id = $1 for update
	`, in.ID).Scan(&existingID, &active)
	recreated := err == nil
	switch {
	case err == nil && active:
		return nil, ErrAlreadyExists
	case err != nil && !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}

	if recreated {
		_, err = tx.ExecContext(ctx, `
			update public.organizations
			set name = $1, schema_name = $2, max_users = $3, is_active = true,
				created_by_id = $4, updated_at = now()
			where id = $5
		`, in.Name, schema, in.MaxUsers, actorID, in.ID)
	} else {
		_, err = tx.ExecContext(ctx, `
			insert into public.organizations (id, name, schema_name, max_users, created_by_id)
			values ($1, $2, $3, $4, $5)
		`, in.ID, in.Name, schema, in.MaxUsers, actorID)
	}
	if err != nil {
		return nil, err
	}

	if err := tenant.Provision(ctx, tx, schema, tenant.AdminSeed{
		Email:        in.AdminEmail,
		PasswordHash: hash,
		FullName:     in.AdminFullName,
	}); err != nil {
		return nil, err
	}

	if err := s.rec.Platform(ctx, tx, audit.PlatformEntry{
		ActorType:      audit.ActorSuperAdmin,
		ActorID:        actorID,
		Action:         "ORGANIZATION_CREATED",
		OrganizationID: in.ID,
		TargetType:     "ORGANIZATION",
		TargetID:       in.ID,
		Metadata: map[string]any{
			"schema_name": schema.String(),
			"max_users":   in.MaxUsers,
			"admin_email": in.AdminEmail,
			"recreated":   recreated,
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Find(ctx, in.ID)
}

// List returns all active organizations, newest first.
func (s *Service) List(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, schema_name, max_users, is_active, created_by_id, created_at, updated_at
		from public.organizations
		where is_active = true
		order by created_at desc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// ListActiveOldestFirst returns active organizations in creation order. The
// login scan depends on this ordering for deterministic candidate enumeration.
func (s *Service) ListActiveOldestFirst(ctx context.Context) ([]*Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, schema_name, max_users, is_active, created_by_id, created_at, updated_at
		from public.organizations
		where is_active = true
		order by created_at asc
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// Find returns the organization with the given identifier in any state.
func (s *Service) Find(ctx context.Context, id string) (*Organization, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, name, schema_name, max_users, is_active, created_by_id, created_at, updated_at
		from public.organizations
		where id = $1
	`, id)
	o, err := scanOrganization(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

// FindActive returns the organization only when it exists and is active.
// Archived organizations are indistinguishable from missing ones here.
func (s *Service) FindActive(ctx context.Context, id string) (*Organization, error) {
	o, err := s.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.Active() {
		return nil, ErrNotFound
	}
	return o, nil
}

// UpdateMaxUsers changes the organization's capacity limit. Lowering it below
// the current active count is permitted; the limit is enforced lazily on the
// next user creation.
func (s *Service) UpdateMaxUsers(ctx context.Context, actorID, orgID string, maxUsers int) (*Organization, error) {
	if maxUsers < 1 {
		return nil, fmt.Errorf("%w: max_users must be at least 1", ErrInvalidInput)
	}
	res, err := s.db.ExecContext(ctx, `
		update public.organizations set max_users = $1, updated_at = now() where id = $2
	`, maxUsers, orgID)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	if err := s.rec.Platform(ctx, s.db, audit.PlatformEntry{
		ActorType:      audit.ActorSuperAdmin,
		ActorID:        actorID,
		Action:         "ORGANIZATION_MAX_USERS_UPDATED",
		OrganizationID: orgID,
		TargetType:     "ORGANIZATION",
		TargetID:       orgID,
		Metadata:       map[string]any{"max_users": maxUsers},
	}); err != nil {
		return nil, err
	}
	return s.Find(ctx, orgID)
}

// Delete archives the organization: the schema is renamed to its archive
// name, the active flag is cleared and the new schema name persisted on the
// same row, all in one transaction. Data is retained; only access is cut off.
func (s *Service) Delete(ctx context.Context, actorID, orgID string) (*Organization, error) {
	archived, err := tenant.ArchiveSchemaName(orgID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var (
		current tenant.SchemaName
		active  bool
		name    string
	)
	err = tx.QueryRowContext(ctx, `
		select name, schema_name, is_active from public.organizations where id = $1 for update
	`, orgID).Scan(&name, &current, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrAlreadyArchived
	}

	if err := tenant.Archive(ctx, tx, current, archived); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `
		update public.organizations
		set is_active = false, schema_name = $1, updated_at = now()
		where id = $2
	`, archived, orgID); err != nil {
		return nil, err
	}

	if err := s.rec.Platform(ctx, tx, audit.PlatformEntry{
		ActorType:      audit.ActorSuperAdmin,
		ActorID:        actorID,
		Action:         "ORGANIZATION_DELETED",
		OrganizationID: orgID,
		TargetType:     "ORGANIZATION",
		TargetID:       orgID,
		Metadata: map[string]any{
			"previous_schema_name": current.String(),
			"archived_schema_name": archived.String(),
		},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return s.Find(ctx, orgID)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*Organization, error) {
	var (
		o      Organization
		active bool
	)
	if err := row.Scan(&o.ID, &o.Name, &o.Schema, &o.MaxUsers, &active,
		&o.CreatedByID, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	o.Status = statusFromFlag(active)
	return &o, nil
}
