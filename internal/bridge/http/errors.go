package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/service"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
	"github.com/aussiebroadwan/tokenbridge/pkg/slogx"
)

// writeExchangeError maps an exchange failure onto the wire:
//
//   - *service.ValidationError: 400 with an OAuth2 error body
//   - *httpx.StatusError: that status with an empty body
//   - anything else: 500 with an empty body, details only in the log
func writeExchangeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		bridgesdk.NewOAuth2Error(http.StatusBadRequest, ve.Code, ve.Description).WriteError(w)
		return
	}

	var se *httpx.StatusError
	if errors.As(err, &se) {
		httpx.WriteStatus(w, se.Status)
		return
	}

	slogx.FromContext(r.Context()).Error("token exchange failed", "error", err)
	httpx.WriteStatus(w, http.StatusInternalServerError)
}
