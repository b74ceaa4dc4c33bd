package http

import (
	"net/http"
	"time"

	"github.com/harborview-digital/showcase/internal/auth/cache"
	"github.com/harborview-digital/showcase/internal/auth/store"
	"github.com/harborview-digital/showcase/pkg/httpx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database and the revocation cache. Returns 503 when
//	@Description	either dependency is unreachable.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	healthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	healthResponse	"service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &healthChecks{Database: "ok", Cache: "ok"}
		status := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if err := c.Ping(r.Context()); err != nil {
			checks.Cache = "error: " + err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
