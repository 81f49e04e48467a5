// Package httpapi is the HTTP routing layer over the auth engine. It maps
// the engine's typed errors to transport responses and owns no auth logic
// itself.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"gatekit.org/internal/auth"
	"gatekit.org/internal/config"
	"gatekit.org/internal/obs"
	"gatekit.org/internal/rbac"
)

// ReadyProbe reports whether backing services answer (for example a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AdminStore mutates identities out-of-band (operator endpoints). Role
// changes take effect for outstanding tokens only after a generation bump.
type AdminStore interface {
	SetRole(ctx context.Context, subjectID string, role rbac.Role) error
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	engine     *auth.Service
	admin      AdminStore
	readyProbe ReadyProbe
	limiter    *ipLimiter
	trustProxy bool
	version    string
}

// New wires routes. admin may be nil; the operator endpoints then answer 404.
func New(engine *auth.Service, admin AdminStore, rp ReadyProbe, rl config.RateLimitConfig, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		engine:     engine,
		admin:      admin,
		readyProbe: rp,
		trustProxy: rl.TrustProxyHeaders,
		version:    version,
	}
	if rl.Enabled {
		a.limiter = newIPLimiter(rl.PerSecond, rl.Burst)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/logout-all", a.requireAuth(rbac.PermPostsRead, a.handleLogoutAll))
	a.mux.HandleFunc("/v1/auth/me", a.requireAuth(rbac.PermPostsRead, a.handleMe))
	a.mux.HandleFunc("/v1/auth/subjects/", a.handleSubjects)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server. RequestID
// wraps outermost so the id it assigns is visible to the logging and handler
// layers beneath it.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = Logging(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- service handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "gatekit-api",
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

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "gatekit-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
