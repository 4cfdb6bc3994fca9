package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"orgctl/internal/auth"
	"orgctl/internal/directory"
	"orgctl/internal/org"
	"orgctl/internal/tenant"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, code int, errorCode, msg string, details map[string]any) {
	payload := map[string]any{
		"error":      msg,
		"error_code": errorCode,
	}
	if len(details) > 0 {
		payload["details"] = details
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleDomainError maps domain failures onto HTTP codes. Business-rule
// violations carry enough structured detail to correct the request;
// credential failures stay minimal; everything else is a generic 500.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		selection *auth.OrgSelectionError
		limit     *directory.UserLimitError
	)
	switch {
	case errors.As(err, &selection):
		orgs := make([]auth.OrgCandidate, len(selection.Organizations))
		copy(orgs, selection.Organizations)
		writeErrorCode(w, r, http.StatusConflict, "ORG_SELECTION_REQUIRED",
			"multiple organizations found for this account",
			map[string]any{"organizations": orgs})
	case errors.As(err, &limit):
		writeErrorCode(w, r, http.StatusConflict, "USER_LIMIT_REACHED",
			limit.Error(),
			map[string]any{"current": limit.Current, "max": limit.Max})
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, auth.ErrInvalidTenantContext):
		writeError(w, r, http.StatusForbidden, "invalid tenant context")
	case errors.Is(err, auth.ErrNestedImpersonation):
		writeError(w, r, http.StatusForbidden, "nested impersonation is not allowed")
	case errors.Is(err, auth.ErrNoActiveAdmin):
		writeErrorCode(w, r, http.StatusConflict, "NO_ACTIVE_ADMIN",
			"no active org admin found for this organization", nil)
	case errors.Is(err, org.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "organization not found")
	case errors.Is(err, org.ErrAlreadyExists):
		writeErrorCode(w, r, http.StatusConflict, "ORGANIZATION_EXISTS",
			"organization already exists", nil)
	case errors.Is(err, org.ErrAlreadyArchived):
		writeErrorCode(w, r, http.StatusConflict, "ALREADY_DELETED",
			"organization already deleted", nil)
	case errors.Is(err, directory.ErrUserNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	case errors.Is(err, org.ErrInvalidInput),
		errors.Is(err, directory.ErrInvalidInput),
		errors.Is(err, tenant.ErrInvalidIdentifier),
		errors.Is(err, tenant.ErrUnsafeIdentifier):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
