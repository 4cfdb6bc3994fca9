package auth

import (
	"errors"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestTokens(t *testing.T) *TokenService {
	t.Helper()
	svc, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func TestTokenSignAndVerify(t *testing.T) {
	svc := newTestTokens(t)

	token, expiresAt, err := svc.Sign(Claims{
		UserID:         "usr_1",
		Email:          "ada@kraft.example",
		FullName:       "Ada Kraft",
		Role:           RoleReadWrite,
		OrganizationID: "kraft",
		SchemaName:     "org_kraft",
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.UserID != "usr_1" || claims.Role != RoleReadWrite {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.OrganizationID != "kraft" || claims.SchemaName != "org_kraft" {
		t.Fatalf("tenant scope not preserved: %+v", claims)
	}
	if claims.Sudo {
		t.Fatal("plain login claim should not be marked sudo")
	}
	if claims.Issuer != "orgctl" || claims.Subject != "usr_1" || claims.ID == "" {
		t.Fatalf("registered claims not filled: %+v", claims.RegisteredClaims)
	}
}

func TestTokenPreservesImpersonationFields(t *testing.T) {
	svc := newTestTokens(t)

	token, _, err := svc.Sign(Claims{
		UserID:         "usr_admin",
		Email:          "admin@kraft.example",
		Role:           RoleOrgAdmin,
		OrganizationID: "kraft",
		SchemaName:     "org_kraft",
		Sudo:           true,
		ImpersonatedBy: "sad_7",
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	claims, err := svc.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !claims.Sudo || claims.ImpersonatedBy != "sad_7" {
		t.Fatalf("impersonation fields lost: %+v", claims)
	}
}

func TestTokenVerifyRejectsWrongSecret(t *testing.T) {
	svc := newTestTokens(t)
	other, err := NewTokenService("ffffffffffffffffffffffffffffffff", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	token, _, err := svc.Sign(Claims{UserID: "usr_1", Role: RoleViewOnly, OrganizationID: "kraft"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestTokenVerifyRejectsExpired(t *testing.T) {
	svc := newTestTokens(t)
	issued := time.Now().Add(-2 * time.Hour)
	svc.WithClock(func() time.Time { return issued })

	token, _, err := svc.Sign(Claims{UserID: "usr_1", Role: RoleViewOnly, OrganizationID: "kraft"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	svc.WithClock(time.Now)
	if _, err := svc.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenVerifyRejectsGarbage(t *testing.T) {
	svc := newTestTokens(t)
	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := svc.Verify(raw); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", raw, err)
		}
	}
}

func TestSignRequiresIdentity(t *testing.T) {
	svc := newTestTokens(t)
	if _, _, err := svc.Sign(Claims{Role: RoleViewOnly}); err == nil {
		t.Fatal("expected error for missing user id")
	}
	if _, _, err := svc.Sign(Claims{UserID: "usr_1", Role: Role("INTERN")}); err == nil {
		t.Fatal("expected error for unknown role")
	}
}

func TestTenantSchemaCrossCheck(t *testing.T) {
	c := &Claims{UserID: "usr_1", Role: RoleReadWrite, OrganizationID: "kraft", SchemaName: "org_kraft"}
	schema, err := c.TenantSchema()
	if err != nil {
		t.Fatalf("TenantSchema: %v", err)
	}
	if schema.String() != "org_kraft" {
		t.Fatalf("unexpected schema: %s", schema)
	}

	mismatched := &Claims{UserID: "usr_1", Role: RoleReadWrite, OrganizationID: "kraft", SchemaName: "org_other"}
	if _, err := mismatched.TenantSchema(); !errors.Is(err, ErrInvalidTenantContext) {
		t.Fatalf("expected ErrInvalidTenantContext, got %v", err)
	}

	platform := &Claims{UserID: "sad_1", Role: RoleSuperAdmin}
	if _, err := platform.TenantSchema(); !errors.Is(err, ErrInvalidTenantContext) {
		t.Fatalf("expected ErrInvalidTenantContext for platform claim, got %v", err)
	}

	unsafe := &Claims{UserID: "usr_1", Role: RoleReadWrite, OrganizationID: `x";drop`}
	if _, err := unsafe.TenantSchema(); !errors.Is(err, ErrInvalidTenantContext) {
		t.Fatalf("expected ErrInvalidTenantContext for unsafe org id, got %v", err)
	}
}

func TestRoleSets(t *testing.T) {
	if !RoleSuperAdmin.Valid() || !RoleOrgAdmin.Valid() || !RoleServiceSupport.Valid() {
		t.Fatal("known roles must be valid")
	}
	if Role("INTERN").Valid() {
		t.Fatal("unknown role must not be valid")
	}
	if RoleOrgAdmin.Assignable() || RoleSuperAdmin.Assignable() {
		t.Fatal("admin tiers must not be assignable via the directory")
	}
	if !RoleReadWrite.Assignable() || !RoleViewOnly.Assignable() || !RoleServiceSupport.Assignable() {
		t.Fatal("worker tiers must be assignable")
	}
}
