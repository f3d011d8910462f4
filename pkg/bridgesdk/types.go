package bridgesdk

// ============================================================================
// Token Exchange Types
// ============================================================================

// ExchangeRequest is an RFC 8693 token exchange request.
type ExchangeRequest struct {
	// SubjectToken is the token being exchanged
	SubjectToken string

	// SubjectTokenType defaults to TokenTypeAccessToken
	SubjectTokenType string

	// RequestedTokenType is optional; only TokenTypeAccessToken is accepted
	RequestedTokenType string

	Scopes    []string
	Audiences []string

	// Resource is an optional absolute URI of the target service
	Resource string

	// ActorToken and ActorTokenType must be set together
	ActorToken     string
	ActorTokenType string
}

// TokenResponse is the token exchange response.
type TokenResponse struct {
	// AccessToken is the newly issued token
	AccessToken string `json:"access_token"`

	// IssuedTokenType is always the access token URN
	IssuedTokenType string `json:"issued_token_type"`

	// TokenType is the provider's token type, usually "bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token, copied from
	// the provider. Nil when the provider sent none.
	ExpiresIn *int64 `json:"expires_in,omitempty"`

	// Scope is the space-delimited list of granted scopes
	Scope string `json:"scope,omitempty"`
}

// ErrorResponse is an OAuth2 error body.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz (readyz adds Checks).
type HealthResponse struct {
	// Status indicates the overall health status ("ok" or "unavailable")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks is the status of each dependency checked by /readyz.
type HealthChecks struct {
	// Database is the audit database status
	Database string `json:"database"`

	// Provider is the identity provider status
	Provider string `json:"provider"`
}
