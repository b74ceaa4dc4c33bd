package http

import (
	"net/http"
	"time"

	"github.com/harborview-digital/showcase/pkg/httpx"
)

type healthChecks struct {
	Database string `json:"database,omitempty"`
	Cache    string `json:"cache,omitempty"`
}

type healthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *healthChecks `json:"checks,omitempty"`
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 while the process is running.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	healthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}
