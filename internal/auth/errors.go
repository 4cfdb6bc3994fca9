package auth

import "errors"

var (
	// ErrInvalidCredentials covers wrong password, unknown email and inactive
	// accounts alike, so callers cannot enumerate users.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	// ErrInvalidToken indicates the bearer token failed verification.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrInvalidTenantContext indicates a claim whose organization id and
	// schema name disagree.
	ErrInvalidTenantContext = errors.New("auth: invalid tenant context")
	// ErrNoActiveAdmin indicates a sudo target partition without an active
	// administrator.
	ErrNoActiveAdmin = errors.New("auth: no active org admin found")
	// ErrNestedImpersonation rejects minting a sudo token from a claim that
	// is itself an impersonation.
	ErrNestedImpersonation = errors.New("auth: already impersonating")
)

// OrgCandidate names one organization an ambiguous login could resolve into.
type OrgCandidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// OrgSelectionError is the disambiguation response for an organization-less
// login that matched more than one tenant. It is not an authentication
// failure; the caller re-submits with an explicit organization id.
type OrgSelectionError struct {
	Organizations []OrgCandidate
}

func (e *OrgSelectionError) Error() string {
	return "auth: multiple organizations found for this account"
}
