package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
)

// TimeHandler godoc
//
//	@Summary		Server Time
//	@Description	Returns the server clock in the Date header so clients can detect skew before minting assertions.
//	@Tags			System
//	@Success		204	"no content"
//	@Header			204	{string}	Date			"server time, RFC 1123"
//	@Header			204	{string}	Cache-Control	"no-store"
//	@Router			/.well-known/time [get].
func TimeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
		httpx.WriteStatus(w, http.StatusNoContent)
	}
}
