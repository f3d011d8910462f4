package http

import (
	"net/http"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
)

// TokenExchangeHandler serves POST /oauth2/token for the RFC 8693 grant.
type TokenExchangeHandler struct {
	Exchanger    Exchanger
	MaxBodyBytes int64
}

// ServeHTTP godoc
//
//	@Summary		Token Exchange Endpoint
//	@Description	Exchanges a subject token for a provider access token (RFC 8693). The subject is resolved,
//	@Description	then a PKCE authorization code flow is driven against the provider on its behalf.
//	@Tags			OAuth2
//	@Accept			application/x-www-form-urlencoded
//	@Produce		json
//	@Param			grant_type				formData	string					true	"urn:ietf:params:oauth:grant-type:token-exchange"
//	@Param			subject_token			formData	string					true	"Token identifying the subject"
//	@Param			subject_token_type		formData	string					false	"Defaults to urn:ietf:params:oauth:token-type:access_token"
//	@Param			requested_token_type	formData	string					false	"Only urn:ietf:params:oauth:token-type:access_token"
//	@Param			scope					formData	string					false	"Space-delimited list of scopes"
//	@Param			audience				formData	[]string				false	"Target audiences"	collectionFormat(multi)
//	@Param			resource				formData	string					false	"Absolute URI of the target service"
//	@Param			actor_token				formData	string					false	"Token identifying the acting party"
//	@Param			actor_token_type		formData	string					false	"Required with actor_token"
//	@Success		200						{object}	bridgesdk.TokenResponse	"access_token, issued_token_type, token_type, expires_in, scope"
//	@Failure		400						{object}	bridgesdk.ErrorResponse	"error, error_description"
//	@Failure		413						"body too large"
//	@Failure		415						"unsupported content type"
//	@Failure		429						{object}	bridgesdk.ErrorResponse	"rate_limit_exceeded"
//	@Failure		500						"exchange failed"
//	@Header			200						{string}	Cache-Control			"no-store"
//	@Header			200						{string}	Pragma					"no-cache"
//	@Router			/oauth2/token [post].
func (h *TokenExchangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	form, err := httpx.ParseForm(r, h.MaxBodyBytes)
	if err != nil {
		writeExchangeError(w, r, err)
		return
	}

	tok, err := h.Exchanger.Exchange(r.Context(), form)
	if err != nil {
		writeExchangeError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, bridgesdk.TokenResponse{
		AccessToken:     tok.AccessToken,
		IssuedTokenType: domain.TokenTypeAccessToken,
		TokenType:       tok.TokenType,
		ExpiresIn:       tok.ExpiresIn,
		Scope:           tok.Scope,
	})
}
