package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"orgctl/internal/auth"
	"orgctl/internal/obs"
)

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req auth.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.resolver.Login(r.Context(), req)
	if err != nil {
		var selection *auth.OrgSelectionError
		switch {
		case errors.As(err, &selection):
			obs.RecordLogin("ambiguous")
		case errors.Is(err, auth.ErrInvalidCredentials):
			obs.RecordLogin("invalid")
		default:
			obs.RecordLogin("error")
		}
		handleDomainError(w, r, err)
		return
	}

	obs.RecordLogin("success")
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleSudo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := a.requireRole(w, r, auth.RoleSuperAdmin)
	if !ok {
		return
	}

	orgID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/auth/sudo/"), "/")
	if orgID == "" || strings.Contains(orgID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	result, err := a.resolver.CreateSudoToken(r.Context(), claims, orgID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	obs.RecordSudoSession()
	writeJSON(w, http.StatusOK, result)
}
