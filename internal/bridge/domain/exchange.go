package domain

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// RFC 8693 identifiers.
const (
	GrantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange" //nolint:gosec // G101: not a credential
	TokenTypeAccessToken   = "urn:ietf:params:oauth:token-type:access_token"   //nolint:gosec // G101: not a credential
)

// ExchangeRequest is a token exchange request that passed validation.
type ExchangeRequest struct {
	SubjectToken       string
	SubjectTokenType   string
	RequestedTokenType string   // empty when not requested
	Scopes             []string // canonical spelling from the allowed set, de-duplicated
	Audiences          []string // as requested, in request order
	Resource           *url.URL // nil when not requested
	ActorToken         string
	ActorTokenType     string
}

// HasActor reports whether an actor token pair was supplied.
func (r *ExchangeRequest) HasActor() bool {
	return r.ActorToken != ""
}

// String redacts the tokens so requests can be logged.
func (r ExchangeRequest) String() string {
	actor := "<none>"
	if r.HasActor() {
		actor = "[REDACTED]"
	}
	return fmt.Sprintf(
		"ExchangeRequest{SubjectToken: [REDACTED], SubjectTokenType: %s, Scopes: %v, Audiences: %v, ActorToken: %s}",
		r.SubjectTokenType, r.Scopes, r.Audiences, actor,
	)
}

// SessionClaims describe who the issued token is for. They come from a
// resolver and are forwarded to the provider untouched.
type SessionClaims struct {
	Subject     string
	ACR         string
	AMR         []string
	AccessToken map[string]any // merged into the access token session
	IDToken     map[string]any // merged into the ID token session
}

// Clone returns a deep enough copy for callers that want to mutate claim maps.
func (c *SessionClaims) Clone() *SessionClaims {
	if c == nil {
		return nil
	}

	out := *c
	out.AMR = append([]string(nil), c.AMR...)
	out.AccessToken = cloneMap(c.AccessToken)
	out.IDToken = cloneMap(c.IDToken)
	return &out
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// IssuedToken is the provider's token endpoint response we hand back.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	ExpiresIn   *int64 // nil when the provider omitted expires_in
	Scope       string
}

// String redacts the access token.
func (t IssuedToken) String() string {
	expiresIn := "none"
	if t.ExpiresIn != nil {
		expiresIn = strconv.FormatInt(*t.ExpiresIn, 10)
	}
	return fmt.Sprintf("IssuedToken{AccessToken: [REDACTED], TokenType: %s, ExpiresIn: %s, Scope: %q}",
		t.TokenType, expiresIn, t.Scope)
}

// ExchangeOutcome is the audit classification of one exchange attempt.
type ExchangeOutcome string

const (
	OutcomeIssued   ExchangeOutcome = "issued"   // token minted
	OutcomeRejected ExchangeOutcome = "rejected" // client error, nothing sent to the provider
	OutcomeFailed   ExchangeOutcome = "failed"   // provider flow aborted
)

// ExchangeRecord is one row of the exchange audit log. It never holds tokens.
type ExchangeRecord struct {
	ID         string
	RequestID  string
	Subject    string
	Scopes     []string
	Audiences  []string
	Outcome    ExchangeOutcome
	ErrorCode  string
	FailedStep string
	CreatedAt  time.Time
}
