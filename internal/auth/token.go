package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"orgctl/internal/tenant"
)

const issuer = "orgctl"

// Claims is the self-contained session claim embedded in every issued token.
// Tokens are stateless: nothing is stored server-side and nothing can be
// revoked before expiry short of rotating the signing secret.
type Claims struct {
	UserID         string `json:"uid"`
	Email          string `json:"email"`
	FullName       string `json:"name"`
	Role           Role   `json:"role"`
	OrganizationID string `json:"org,omitempty"`
	SchemaName     string `json:"schema,omitempty"`
	Sudo           bool   `json:"sudo"`
	ImpersonatedBy string `json:"impersonated_by,omitempty"`
	jwt.RegisteredClaims
}

// TenantSchema cross-checks the claimed organization id against the schema
// name embedded in the claim and returns the validated schema. A mismatch is
// a hard reject before any tenant operation runs.
func (c *Claims) TenantSchema() (tenant.SchemaName, error) {
	if c.OrganizationID == "" {
		return tenant.SchemaName{}, ErrInvalidTenantContext
	}
	derived, err := tenant.DeriveSchemaName(c.OrganizationID)
	if err != nil {
		return tenant.SchemaName{}, ErrInvalidTenantContext
	}
	if c.SchemaName != "" && c.SchemaName != derived.String() {
		return tenant.SchemaName{}, ErrInvalidTenantContext
	}
	return derived, nil
}

// TokenService signs and verifies bearer tokens with one shared HS256 secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService. ttl bounds every issued token;
// there is no revocation list, so keep it short.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be greater than zero")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// WithClock overrides the time source. Test use only.
func (s *TokenService) WithClock(fn func() time.Time) *TokenService {
	if fn != nil {
		s.now = fn
	}
	return s
}

// TTL returns the configured validity window.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Sign mints a token for the given claims, filling the registered fields.
func (s *TokenService) Sign(claims Claims) (string, time.Time, error) {
	if claims.UserID == "" {
		return "", time.Time{}, errors.New("auth: claims require a user id")
	}
	if !claims.Role.Valid() {
		return "", time.Time{}, errors.New("auth: claims require a known role")
	}
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   claims.UserID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		ID:        uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and registered claims and returns the embedded
// session claims. Every failure surfaces as ErrInvalidToken.
func (s *TokenService) Verify(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
