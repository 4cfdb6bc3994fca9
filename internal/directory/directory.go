// Package directory implements per-tenant user administration: listing,
// creation under the capacity enforcer, role changes and activation toggles.
// Every operation requires an already-resolved tenant schema and runs in one
// transaction together with its audit entry.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"orgctl/internal/audit"
	"orgctl/internal/auth"
	"orgctl/internal/ids"
	"orgctl/internal/org"
	"orgctl/internal/password"
	"orgctl/internal/tenant"
)

const minPasswordLen = 12

var (
	ErrUserNotFound = errors.New("directory: user not found")
	ErrInvalidInput = errors.New("directory: invalid input")
)

// UserLimitError reports a rejected creation because the organization is at
// capacity. Current and Max let the caller correct the request.
type UserLimitError struct {
	Current int
	Max     int
}

func (e *UserLimitError) Error() string {
	return fmt.Sprintf("directory: user limit reached (%d/%d)", e.Current, e.Max)
}

// User is one row of a tenant partition's user table.
type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Service operates on tenant user tables.
type Service struct {
	db  *sql.DB
	rec *audit.Recorder
}

// NewService constructs a Service.
func NewService(db *sql.DB, rec *audit.Recorder) *Service {
	return &Service{db: db, rec: rec}
}

// List returns all users in the partition, newest first.
func (s *Service) List(ctx context.Context, schema tenant.SchemaName) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		select id, email, full_name, role, is_active, last_login_at, created_at, updated_at
		from %s
		order by created_at desc
	`, schema.Table("users")))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive,
			&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		res = append(res, &u)
	}
	return res, rows.Err()
}

// CreateInput describes a new tenant user. Role must be one of the three
// non-administrator tiers.
type CreateInput struct {
	Email    string    `json:"email"`
	Password string    `json:"password"`
	FullName string    `json:"full_name"`
	Role     auth.Role `json:"role"`
}

func (in CreateInput) validate() error {
	if !strings.Contains(in.Email, "@") {
		return fmt.Errorf("%w: email is not an email address", ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	if len(strings.TrimSpace(in.FullName)) < 2 {
		return fmt.Errorf("%w: full_name must be at least 2 characters", ErrInvalidInput)
	}
	if !in.Role.Assignable() {
		return fmt.Errorf("%w: role must be one of READ_WRITE, VIEW_ONLY, SERVICE_SUPPORT", ErrInvalidInput)
	}
	return nil
}

// Create inserts a user after the capacity check passes, writing the
// USER_CREATED audit entry in the same transaction. The locks taken by
// enforceCapacity are held until commit so concurrent creations serialize.
func (s *Service) Create(ctx context.Context, actorID, orgID string, schema tenant.SchemaName, in CreateInput) (*User, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("directory: hash password: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := enforceCapacity(ctx, tx, schema, orgID); err != nil {
		return nil, err
	}

	userID := ids.NewPrefixed("usr")
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, email, password_hash, full_name, role, is_active)
		values ($1, $2, $3, $4, $5, true)
	`, schema.Table("users")), userID, in.Email, hash, in.FullName, in.Role); err != nil {
		return nil, err
	}

	if err := s.rec.Tenant(ctx, tx, schema, audit.TenantEntry{
		ActorUserID: actorID,
		Action:      "USER_CREATED",
		TargetType:  "USER",
		TargetID:    userID,
		Metadata:    map[string]any{"email": in.Email, "role": in.Role},
	}); err != nil {
		return nil, err
	}

	created, err := selectUser(ctx, tx, schema, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return created, nil
}

// UpdateRole changes a user's role to one of the assignable tiers.
func (s *Service) UpdateRole(ctx context.Context, actorID string, schema tenant.SchemaName, userID string, role auth.Role) (*User, error) {
	if !role.Assignable() {
		return nil, fmt.Errorf("%w: role must be one of READ_WRITE, VIEW_ONLY, SERVICE_SUPPORT", ErrInvalidInput)
	}
	return s.mutate(ctx, schema, userID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			update %s set role = $1, updated_at = now() where id = $2
		`, schema.Table("users")), role, userID); err != nil {
			return err
		}
		return s.rec.Tenant(ctx, tx, schema, audit.TenantEntry{
			ActorUserID: actorID,
			Action:      "USER_ROLE_CHANGED",
			TargetType:  "USER",
			TargetID:    userID,
			Metadata:    map[string]any{"role": role},
		})
	})
}

// SetActive toggles a user's active flag.
func (s *Service) SetActive(ctx context.Context, actorID string, schema tenant.SchemaName, userID string, isActive bool) (*User, error) {
	action := "USER_DEACTIVATED"
	if isActive {
		action = "USER_ACTIVATED"
	}
	return s.mutate(ctx, schema, userID, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			update %s set is_active = $1, updated_at = now() where id = $2
		`, schema.Table("users")), isActive, userID); err != nil {
			return err
		}
		return s.rec.Tenant(ctx, tx, schema, audit.TenantEntry{
			ActorUserID: actorID,
			Action:      action,
			TargetType:  "USER",
			TargetID:    userID,
			Metadata:    map[string]any{"is_active": isActive},
		})
	})
}

// mutate runs fn and the post-state re-select in one transaction so the
// caller observes a consistent result.
func (s *Service) mutate(ctx context.Context, schema tenant.SchemaName, userID string, fn func(tx *sql.Tx) error) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return nil, err
	}
	updated, err := selectUser(ctx, tx, schema, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return updated, nil
}

// enforceCapacity admits or rejects a user creation. Ordering is load-bearing
// and must match at every creation call site: lock the partition's user
// table, lock the organization's limit row, count, decide. The locks release
// only at transaction end.
func enforceCapacity(ctx context.Context, tx *sql.Tx, schema tenant.SchemaName, orgID string) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`lock table %s in share row exclusive mode`, schema.Table("users"))); err != nil {
		return err
	}

	var maxUsers int
	err := tx.QueryRowContext(ctx, `
		select max_users from public.organizations where id = $1 for update
	`, orgID).Scan(&maxUsers)
	if errors.Is(err, sql.ErrNoRows) {
		return org.ErrNotFound
	}
	if err != nil {
		return err
	}

	var current int
	if err := tx.QueryRowContext(ctx, fmt.Sprintf(`
		select count(*) from %s where is_active = true
	`, schema.Table("users"))).Scan(&current); err != nil {
		return err
	}

	if current >= maxUsers {
		return &UserLimitError{Current: current, Max: maxUsers}
	}
	return nil
}

func selectUser(ctx context.Context, tx *sql.Tx, schema tenant.SchemaName, userID string) (*User, error) {
	var u User
	err := tx.QueryRowContext(ctx, fmt.Sprintf(`
		select id, email, full_name, role, is_active, last_login_at, created_at, updated_at
		from %s
		where id = $1
	`, schema.Table("users")), userID).Scan(
		&u.ID, &u.Email, &u.FullName, &u.Role, &u.IsActive,
		&u.LastLoginAt, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
