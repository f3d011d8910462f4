/*
Package bridgesdk provides a client SDK for the token bridge, plus the wire
types and OAuth2 errors the bridge itself writes.

# Token Exchange

The bridge implements the RFC 8693 token exchange grant. A caller presents a
subject token it already holds and receives a provider-issued access token
carrying the resolved subject's claims:

	client := bridgesdk.NewSDKClient("https://bridge.example.com")

	tok, err := client.ExchangeToken(ctx, bridgesdk.ExchangeRequest{
		SubjectToken: upstreamToken,
		Scopes:       []string{"read"},
		Audiences:    []string{"https://api.example.com"},
	})

SubjectTokenType defaults to the access token URN.

# Error Handling

Rejected requests come back as *OAuth2Error with the RFC 6749 error code:

	var oauthErr *bridgesdk.OAuth2Error
	if errors.As(err, &oauthErr) && oauthErr.Code == bridgesdk.ErrorCodeInvalidScope {
		// ask for fewer scopes
	}

Responses with an empty body (413, 415, 500) come back as *StatusError.

# Health

GetLiveness and GetReadiness query /livez and /readyz. ServerTime reads the
server clock from /.well-known/time, which is useful for checking skew before
presenting short-lived tokens.
*/
package bridgesdk
