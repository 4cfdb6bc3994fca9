package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"orgctl/internal/auth"
	"orgctl/internal/obs"
	"orgctl/internal/org"
)

type updateMaxUsersRequest struct {
	MaxUsers int `json:"max_users"`
}

func (a *API) handleOrganizations(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireRole(w, r, auth.RoleSuperAdmin)
	if !ok {
		return
	}

	switch r.Method {
	case http.MethodGet:
		orgs, err := a.orgs.List(r.Context())
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if orgs == nil {
			orgs = []*org.Organization{}
		}
		writeJSON(w, http.StatusOK, orgs)
	case http.MethodPost:
		var req org.CreateInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		created, err := a.orgs.Create(r.Context(), claims.UserID, req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		obs.RecordOrgProvisioned()
		w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%s", created.ID))
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleOrganizationScoped(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireRole(w, r, auth.RoleSuperAdmin)
	if !ok {
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/organizations/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	orgID := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		deleted, err := a.orgs.Delete(r.Context(), claims.UserID, orgID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		obs.RecordOrgArchived()
		writeJSON(w, http.StatusOK, deleted)
	case len(parts) == 2 && parts[1] == "max-users" && r.Method == http.MethodPatch:
		var req updateMaxUsersRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.orgs.UpdateMaxUsers(r.Context(), claims.UserID, orgID, req.MaxUsers)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
