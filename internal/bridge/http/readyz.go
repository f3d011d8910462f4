package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
)

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the audit database and the identity provider.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	bridgesdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	bridgesdk.HealthResponse	"status, uptime, version, checks - service not ready"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, st store.Store, provider Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &bridgesdk.HealthChecks{
			Database: "disabled",
			Provider: "ok",
		}
		overallStatus := "ok"
		statusCode := http.StatusOK

		if st != nil {
			checks.Database = "ok"
			if err := st.Ping(r.Context()); err != nil {
				checks.Database = "error: " + err.Error()
				overallStatus = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		if provider != nil {
			if err := provider.Ping(r.Context()); err != nil {
				checks.Provider = "error: " + err.Error()
				overallStatus = "unavailable"
				statusCode = http.StatusServiceUnavailable
			}
		}

		httpx.WriteJSON(w, statusCode, bridgesdk.HealthResponse{
			Status:  overallStatus,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
