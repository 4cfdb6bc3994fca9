// Package httpapi is the HTTP boundary of the control plane: bearer
// authentication, role gating, tenant scope checks and JSON framing around
// the domain services.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"orgctl/internal/auth"
	"orgctl/internal/config"
	"orgctl/internal/directory"
	"orgctl/internal/obs"
	"orgctl/internal/org"
)

// ReadyProbe reports whether the backing store answers.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	resolver   *auth.Service
	orgs       *org.Service
	users      *directory.Service
	rateLimit  config.RateLimitConfig
	version    string
}

// New wires the routes.
func New(rp ReadyProbe, resolver *auth.Service, orgs *org.Service, users *directory.Service, rl config.RateLimitConfig, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		resolver:   resolver,
		orgs:       orgs,
		users:      users,
		rateLimit:  rl,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.Handle("/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), rl.LoginBurst, rl.LoginPerSecond))
	a.mux.HandleFunc("/v1/auth/sudo/", a.handleSudo)

	a.mux.HandleFunc("/v1/organizations", a.handleOrganizations)
	a.mux.HandleFunc("/v1/organizations/", a.handleOrganizationScoped)

	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "orgctl-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}
