package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"orgctl/internal/audit"
)

// SudoResult carries the impersonation token and a banner identifying the
// impersonated organization.
type SudoResult struct {
	Token        string       `json:"token"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Banner       string       `json:"banner"`
	Organization OrgCandidate `json:"organization"`
}

// CreateSudoToken issues a token that acts as the target organization's
// administrator while recording the real platform operator. The tenant audit
// entry is attributed to the impersonated admin and names the initiating
// platform administrator in its metadata; the platform entry names the
// platform administrator as actor. A caller that is itself impersonating is
// rejected.
func (s *Service) CreateSudoToken(ctx context.Context, caller *Claims, organizationID string) (*SudoResult, error) {
	if caller == nil || caller.Role != RoleSuperAdmin {
		return nil, ErrInvalidCredentials
	}
	if caller.Sudo {
		return nil, ErrNestedImpersonation
	}

	o, err := s.orgs.FindActive(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var admin tenantUser
	err = tx.QueryRowContext(ctx, fmt.Sprintf(`
		select id, email, full_name
		from %s
		where role = 'ORG_ADMIN' and is_active = true
		order by created_at asc
		limit 1
	`, o.Schema.Table("users"))).Scan(&admin.ID, &admin.Email, &admin.FullName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveAdmin
	}
	if err != nil {
		return nil, err
	}

	if err := s.rec.Tenant(ctx, tx, o.Schema, audit.TenantEntry{
		ActorUserID: admin.ID,
		Action:      "SUDO_SESSION_STARTED",
		TargetType:  "USER",
		TargetID:    admin.ID,
		Metadata:    map[string]any{"super_admin_id": caller.UserID},
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Sign(Claims{
		UserID:         admin.ID,
		Email:          admin.Email,
		FullName:       admin.FullName,
		Role:           RoleOrgAdmin,
		OrganizationID: o.ID,
		SchemaName:     o.Schema.String(),
		Sudo:           true,
		ImpersonatedBy: caller.UserID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.rec.Platform(ctx, s.db, audit.PlatformEntry{
		ActorType:      audit.ActorSuperAdmin,
		ActorID:        caller.UserID,
		Action:         "SUDO_SESSION_STARTED",
		OrganizationID: o.ID,
		TargetType:     "ORG_ADMIN",
		TargetID:       admin.ID,
		Metadata:       map[string]any{"organization_name": o.Name},
	}); err != nil {
		return nil, err
	}

	return &SudoResult{
		Token:        token,
		ExpiresAt:    expiresAt,
		Banner:       fmt.Sprintf("You are impersonating ORG_ADMIN of %s", o.Name),
		Organization: OrgCandidate{ID: o.ID, Name: o.Name},
	}, nil
}
