// Package audit appends immutable records to the platform-wide audit log and
// to per-tenant audit logs. Entries are written in the same transaction as
// the mutation they describe; this package only ever writes.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"orgctl/internal/ids"
	"orgctl/internal/tenant"
)

// Actor kinds recorded in the platform log.
const (
	ActorSuperAdmin = "SUPER_ADMIN"
	ActorOrgUser    = "ORG_USER"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// PlatformEntry is one row of the platform-wide log.
type PlatformEntry struct {
	ActorType      string
	ActorID        string
	Action         string
	OrganizationID string
	TargetType     string
	TargetID       string
	Metadata       map[string]any
}

// TenantEntry is one row of a tenant partition's log.
type TenantEntry struct {
	ActorUserID string
	Action      string
	TargetType  string
	TargetID    string
	Metadata    map[string]any
}

// Recorder writes audit rows.
type Recorder struct{}

// NewRecorder constructs a Recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Platform appends an entry to public.global_audit_logs. Pass the enclosing
// transaction when the entry must be atomic with a mutation.
func (r *Recorder) Platform(ctx context.Context, db DBTX, e PlatformEntry) error {
	if err := validateAction(e.Action); err != nil {
		return err
	}
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `
		insert into public.global_audit_logs
			(id, actor_type, actor_id, action, organization_id, target_type, target_id, metadata)
		values ($1, $2, $3, $4, $5, $6, $7, $8::jsonb)
	`, ids.NewPrefixed("aud"), e.ActorType, e.ActorID, e.Action,
		nullable(e.OrganizationID), e.TargetType, nullable(e.TargetID), meta)
	if err != nil {
		return fmt.Errorf("audit: platform %s: %w", e.Action, err)
	}
	return nil
}

// Tenant appends an entry to the partition's audit_logs table using the same
// transaction as the triggering mutation, so both commit or roll back together.
func (r *Recorder) Tenant(ctx context.Context, tx DBTX, schema tenant.SchemaName, e TenantEntry) error {
	if err := validateAction(e.Action); err != nil {
		return err
	}
	meta, err := marshalMetadata(e.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		insert into %s (id, actor_user_id, action, target_type, target_id, metadata)
		values ($1, $2, $3, $4, $5, $6::jsonb)
	`, schema.Table("audit_logs")),
		ids.NewPrefixed("aud"), nullable(e.ActorUserID), e.Action, e.TargetType, nullable(e.TargetID), meta)
	if err != nil {
		return fmt.Errorf("audit: tenant %s in %s: %w", e.Action, schema, err)
	}
	return nil
}

func validateAction(action string) error {
	if strings.TrimSpace(action) == "" {
		return errors.New("audit: action is required")
	}
	return nil
}

func marshalMetadata(meta map[string]any) ([]byte, error) {
	if meta == nil {
		meta = map[string]any{}
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("audit: marshal metadata: %w", err)
	}
	return data, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
