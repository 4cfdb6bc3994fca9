// Package auth implements the authentication resolver, token issuance and
// the impersonation issuer for the control plane.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"orgctl/internal/audit"
	"orgctl/internal/ids"
	"orgctl/internal/obs"
	"orgctl/internal/org"
	"orgctl/internal/password"
)

// Service resolves logins across the platform tier and all tenant partitions.
type Service struct {
	db     *sql.DB
	orgs   *org.Service
	rec    *audit.Recorder
	tokens *TokenService
}

// NewService constructs the resolver.
func NewService(db *sql.DB, orgs *org.Service, rec *audit.Recorder, tokens *TokenService) *Service {
	return &Service{db: db, orgs: orgs, rec: rec, tokens: tokens}
}

// Tokens exposes the token service for boundary verification.
func (s *Service) Tokens() *TokenService { return s.tokens }

// LoginInput is the single input of the login state machine.
type LoginInput struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// UserInfo is the authenticated identity returned beside the token.
type UserInfo struct {
	ID             string `json:"id"`
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"organization_id,omitempty"`
}

// LoginResult carries the issued token and the resolved identity.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      UserInfo  `json:"user"`
}

type tenantUser struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	IsActive     bool
}

type tenantMatch struct {
	Org  *org.Organization
	User tenantUser
}

// Login runs the login state machine. Without an organization id it first
// tries the platform administrator table, then scans every active tenant
// partition in creation order; multiple matches surface as an
// *OrgSelectionError rather than silently picking one. With an organization
// id only that partition is consulted.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, ErrInvalidCredentials
	}

	if in.OrganizationID == "" {
		if res, handled, err := s.superAdminLogin(ctx, in); handled {
			return res, err
		}
		matches, err := s.scanTenantMatches(ctx, in.Email, in.Password)
		if err != nil {
			return nil, err
		}
		switch len(matches) {
		case 0:
			return nil, ErrInvalidCredentials
		case 1:
			return s.issueTenantLogin(ctx, matches[0])
		default:
			selection := &OrgSelectionError{}
			for _, m := range matches {
				selection.Organizations = append(selection.Organizations, OrgCandidate{ID: m.Org.ID, Name: m.Org.Name})
			}
			return nil, selection
		}
	}

	o, err := s.orgs.FindActive(ctx, in.OrganizationID)
	if err != nil {
		return nil, err
	}
	match, err := s.matchInOrganization(ctx, o, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTenantLogin(ctx, match)
}

// superAdminLogin handles the platform tier. handled is false when the email
// is not a platform administrator at all, so the tenant scan may proceed.
func (s *Service) superAdminLogin(ctx context.Context, in LoginInput) (*LoginResult, bool, error) {
	var (
		admin    tenantUser
		isActive bool
	)
	err := s.db.QueryRowContext(ctx, `
		select id, email, password_hash, full_name, is_active
		from public.super_admins
		where email = $1
	`, in.Email).Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &isActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, true, err
	}
	if !isActive || !password.Verify(in.Password, admin.PasswordHash) {
		return nil, true, ErrInvalidCredentials
	}

	if _, err := s.db.ExecContext(ctx, `
		update public.super_admins set last_login_at = now(), updated_at = now() where id = $1
	`, admin.ID); err != nil {
		return nil, true, err
	}
	if err := s.rec.Platform(ctx, s.db, audit.PlatformEntry{
		ActorType:  audit.ActorSuperAdmin,
		ActorID:    admin.ID,
		Action:     "SUPER_ADMIN_LOGIN",
		TargetType: "SUPER_ADMIN",
		TargetID:   admin.ID,
	}); err != nil {
		return nil, true, err
	}

	token, expiresAt, err := s.tokens.Sign(Claims{
		UserID:   admin.ID,
		Email:    admin.Email,
		FullName: admin.FullName,
		Role:     RoleSuperAdmin,
	})
	if err != nil {
		return nil, true, err
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: UserInfo{
			ID:       admin.ID,
			Email:    admin.Email,
			FullName: admin.FullName,
			Role:     RoleSuperAdmin,
		},
	}, true, nil
}

// scanTenantMatches checks every active partition for an email+password
// match, oldest organization first. A partition whose lookup fails is skipped
// with a warning so one broken tenant cannot block platform-wide logins;
// password mismatches short-circuit silently.
func (s *Service) scanTenantMatches(ctx context.Context, email, pw string) ([]*tenantMatch, error) {
	orgs, err := s.orgs.ListActiveOldestFirst(ctx)
	if err != nil {
		return nil, err
	}
	var matches []*tenantMatch
	for _, o := range orgs {
		match, err := s.matchInOrganization(ctx, o, email, pw)
		if err != nil {
			obs.Log().Warn().Err(err).Str("organization_id", o.ID).
				Msg("skipping unreachable tenant partition during login scan")
			continue
		}
		if match != nil {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// matchInOrganization looks the email up inside one partition. It returns
// (nil, nil) on no user, inactive user or password mismatch so that a failed
// candidate is not distinguishable from an absent one.
func (s *Service) matchInOrganization(ctx context.Context, o *org.Organization, email, pw string) (*tenantMatch, error) {
	if !o.Status.Active() {
		return nil, nil
	}
	var u tenantUser
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		select id, email, password_hash, full_name, role, is_active
		from %s
		where email = $1
		limit 1
	`, o.Schema.Table("users")), email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &u.Role, &u.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !u.IsActive || !password.Verify(pw, u.PasswordHash) {
		return nil, nil
	}
	return &tenantMatch{Org: o, User: u}, nil
}

// issueTenantLogin commits the last-login update and the ORG_USER_LOGIN
// tenant audit entry atomically, then signs the tenant-scoped claim.
func (s *Service) issueTenantLogin(ctx context.Context, match *tenantMatch) (*LoginResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
		update %s set last_login_at = now(), updated_at = now() where id = $1
	`, match.Org.Schema.Table("users")), match.User.ID); err != nil {
		return nil, err
	}
	if err := s.rec.Tenant(ctx, tx, match.Org.Schema, audit.TenantEntry{
		ActorUserID: match.User.ID,
		Action:      "ORG_USER_LOGIN",
		TargetType:  "USER",
		TargetID:    match.User.ID,
	}); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.tokens.Sign(Claims{
		UserID:         match.User.ID,
		Email:          match.User.Email,
		FullName:       match.User.FullName,
		Role:           match.User.Role,
		OrganizationID: match.Org.ID,
		SchemaName:     match.Org.Schema.String(),
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: UserInfo{
			ID:             match.User.ID,
			Email:          match.User.Email,
			FullName:       match.User.FullName,
			Role:           match.User.Role,
			OrganizationID: match.Org.ID,
		},
	}, nil
}

// SeedSuperAdmin inserts the bootstrap platform administrator when the email
// is not present yet. Credentials come from configuration, once, at start.
func (s *Service) SeedSuperAdmin(ctx context.Context, email, plaintext string) error {
	email = strings.TrimSpace(email)
	if email == "" || plaintext == "" {
		return errors.New("auth: bootstrap admin credentials are required")
	}
	var existing string
	err := s.db.QueryRowContext(ctx, `
		select id from public.super_admins where email = $1
	`, email).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	hash, err := password.Hash(plaintext)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		insert into public.super_admins (id, email, password_hash, full_name, is_active)
		values ($1, $2, $3, 'Platform Super Admin', true)
	`, ids.NewPrefixed("sad"), email, hash)
	return err
}
