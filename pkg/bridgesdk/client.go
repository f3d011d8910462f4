package bridgesdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// RFC 8693 identifiers used by ExchangeToken.
const (
	GrantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange" //nolint:gosec // G101: not a credential
	TokenTypeAccessToken   = "urn:ietf:params:oauth:token-type:access_token"   //nolint:gosec // G101: not a credential
)

// SDKClient is a client for the token bridge.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new token bridge client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ExchangeToken trades a subject token for a provider-issued access token.
//
// Rejections come back as *OAuth2Error; responses without an OAuth2 body
// come back as *StatusError.
func (c *SDKClient) ExchangeToken(ctx context.Context, req ExchangeRequest) (*TokenResponse, error) {
	subjectTokenType := req.SubjectTokenType
	if subjectTokenType == "" {
		subjectTokenType = TokenTypeAccessToken
	}

	data := url.Values{
		"grant_type":         {GrantTypeTokenExchange},
		"subject_token":      {req.SubjectToken},
		"subject_token_type": {subjectTokenType},
	}
	if req.RequestedTokenType != "" {
		data.Set("requested_token_type", req.RequestedTokenType)
	}
	if len(req.Scopes) > 0 {
		data.Set("scope", strings.Join(req.Scopes, " "))
	}
	for _, aud := range req.Audiences {
		data.Add("audience", aud)
	}
	if req.Resource != "" {
		data.Set("resource", req.Resource)
	}
	if req.ActorToken != "" || req.ActorTokenType != "" {
		data.Set("actor_token", req.ActorToken)
		data.Set("actor_token_type", req.ActorTokenType)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/oauth2/token", strings.NewReader(data.Encode()), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
		"Accept":       "application/json",
	})
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}

// GetLiveness checks if the service is alive.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	return c.getHealth(ctx, "/livez")
}

// GetReadiness checks if the service and its dependencies are ready.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	return c.getHealth(ctx, "/readyz")
}

func (c *SDKClient) getHealth(ctx context.Context, path string) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}

	var health HealthResponse
	if err := decodeJSON(resp, &health, http.StatusOK); err != nil {
		return nil, err
	}

	return &health, nil
}

// ServerTime returns the server clock from the Date header of
// /.well-known/time.
func (c *SDKClient) ServerTime(ctx context.Context) (time.Time, error) {
	resp, err := c.doRequest(ctx, http.MethodHead, "/.well-known/time", nil, nil)
	if err != nil {
		return time.Time{}, err
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return time.Time{}, &StatusError{StatusCode: resp.StatusCode}
	}

	t, err := http.ParseTime(resp.Header.Get("Date"))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse Date header: %w", err)
	}
	return t, nil
}
