package tenant

import (
	"context"
	"database/sql"
	"fmt"

	"orgctl/internal/ids"
)

// AdminSeed describes the first administrator inserted into a fresh partition.
// The password arrives already hashed; this package never sees plaintext.
type AdminSeed struct {
	Email        string
	PasswordHash string
	FullName     string
}

// Provision creates the tenant schema with its baseline tables and seeds the
// first ORG_ADMIN. It is idempotent: tables are create-if-missing and the
// admin insert is skipped when the email already exists in the partition.
// Runs inside the caller's transaction.
func Provision(ctx context.Context, tx *sql.Tx, schema SchemaName, admin AdminSeed) error {
	if _, err := tx.ExecContext(ctx, buildSchemaDDL(schema)); err != nil {
		return fmt.Errorf("tenant: create schema %s: %w", schema, err)
	}
	_, err := tx.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, email, password_hash, full_name, role, is_active)
		values ($1, $2, $3, $4, 'ORG_ADMIN', true)
		on conflict (email) do nothing
	`, schema.Table("users")),
		ids.NewPrefixed("usr"), admin.Email, admin.PasswordHash, admin.FullName,
	)
	if err != nil {
		return fmt.Errorf("tenant: seed admin in %s: %w", schema, err)
	}
	return nil
}

// Archive renames the tenant schema. The caller must flip the organization's
// active flag in the same transaction; a partial result is a correctness
// violation.
func Archive(ctx context.Context, tx *sql.Tx, from, to SchemaName) error {
	stmt := fmt.Sprintf(`alter schema %s rename to %s`, from.Quoted(), to.Quoted())
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("tenant: archive schema %s: %w", from, err)
	}
	return nil
}

func buildSchemaDDL(schema SchemaName) string {
	return fmt.Sprintf(`
		create schema if not exists %[1]s;

		create table if not exists %[1]s.users (
			id text primary key,
			email text not null unique,
			password_hash text not null,
			full_name text not null,
			role text not null check (role in ('ORG_ADMIN', 'SERVICE_SUPPORT', 'VIEW_ONLY', 'READ_WRITE')),
			is_active boolean not null default true,
			last_login_at timestamptz,
			created_at timestamptz not null default now(),
			updated_at timestamptz not null default now()
		);

		create index if not exists %[2]s_users_role_idx on %[1]s.users(role);
		create index if not exists %[2]s_users_active_idx on %[1]s.users(is_active);

		create table if not exists %[1]s.audit_logs (
			id text primary key,
			actor_user_id text,
			action text not null,
			target_type text not null,
			target_id text,
			metadata jsonb,
			created_at timestamptz not null default now()
		);

		create index if not exists %[2]s_audit_logs_created_idx
			on %[1]s.audit_logs(created_at desc);
	`, schema.Quoted(), schema.String())
}
