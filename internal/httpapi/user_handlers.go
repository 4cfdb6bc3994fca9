package httpapi

import (
	"net/http"
	"strings"

	"orgctl/internal/auth"
	"orgctl/internal/directory"
)

type updateRoleRequest struct {
	Role auth.Role `json:"role"`
}

type updateStatusRequest struct {
	IsActive *bool `json:"is_active"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		claims, ok := a.requireRole(w, r, auth.RoleOrgAdmin, auth.RoleServiceSupport)
		if !ok {
			return
		}
		schema, ok := a.tenantScope(w, r, claims)
		if !ok {
			return
		}
		users, err := a.users.List(r.Context(), schema)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		if users == nil {
			users = []*directory.User{}
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		claims, ok := a.requireRole(w, r, auth.RoleOrgAdmin)
		if !ok {
			return
		}
		schema, ok := a.tenantScope(w, r, claims)
		if !ok {
			return
		}
		var req directory.CreateInput
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		created, err := a.users.Create(r.Context(), claims.UserID, claims.OrganizationID, schema, req)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	claims, ok := a.requireRole(w, r, auth.RoleOrgAdmin)
	if !ok {
		return
	}
	schema, ok := a.tenantScope(w, r, claims)
	if !ok {
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID := parts[0]

	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	switch parts[1] {
	case "role":
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		updated, err := a.users.UpdateRole(r.Context(), claims.UserID, schema, userID, req.Role)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case "status":
		var req updateStatusRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.IsActive == nil {
			writeError(w, r, http.StatusBadRequest, "is_active is required")
			return
		}
		updated, err := a.users.SetActive(r.Context(), claims.UserID, schema, userID, *req.IsActive)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}
