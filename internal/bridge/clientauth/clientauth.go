// Package clientauth attaches OAuth2 client credentials to token endpoint
// requests (RFC 6749 section 2.3.1).
package clientauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Method is a token endpoint client authentication method.
type Method string

const (
	MethodNone              Method = "none"
	MethodClientSecretBasic Method = "client_secret_basic"
	MethodClientSecretPost  Method = "client_secret_post"
)

var (
	ErrUnknownMethod    = errors.New("clientauth: unknown token endpoint auth method")
	ErrMissingClientID  = errors.New("clientauth: client id is required")
	ErrSecretNotAllowed = errors.New("clientauth: secret must be empty for public clients")
	ErrMissingSecret    = errors.New("clientauth: secret must not be empty for confidential clients")
)

// ParseMethod maps a configured method name to a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodNone, MethodClientSecretBasic, MethodClientSecretPost:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Credentials identify an OAuth2 client and how it authenticates.
type Credentials struct {
	Method       Method
	ClientID     string
	ClientSecret string
}

// Validate checks the method is known and the secret matches the client type.
func (c Credentials) Validate() error {
	if _, ok := strategies[c.Method]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, c.Method)
	}
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if c.Method == MethodNone && c.ClientSecret != "" {
		return ErrSecretNotAllowed
	}
	if c.Method != MethodNone && c.ClientSecret == "" {
		return ErrMissingSecret
	}
	return nil
}

// Confidential reports whether the client authenticates with a secret.
func (c Credentials) Confidential() bool {
	return c.Method != MethodNone
}

// String never includes the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Method: %s, ClientID: %s}", c.Method, c.ClientID)
}

// Apply adds the client's credentials to a token request: in the header for
// client_secret_basic, in the form for client_secret_post, and only the
// client_id for public clients.
func (c Credentials) Apply(form url.Values, header http.Header) {
	if s, ok := strategies[c.Method]; ok {
		s.apply(c, form, header)
	}
}

// NewTokenRequest builds a form POST to a token endpoint with the client's
// credentials attached.
func (c Credentials) NewTokenRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	body := url.Values{}
	for k, v := range form {
		body[k] = append([]string(nil), v...)
	}

	header := http.Header{}
	c.Apply(body, header)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	return req, nil
}

type strategy interface {
	apply(c Credentials, form url.Values, header http.Header)
}

var strategies = map[Method]strategy{
	MethodNone:              noCredential{},
	MethodClientSecretBasic: headerCredential{},
	MethodClientSecretPost:  bodyCredential{},
}

// noCredential identifies a public client by client_id alone.
type noCredential struct{}

func (noCredential) apply(c Credentials, form url.Values, _ http.Header) {
	if c.ClientID != "" {
		form.Set("client_id", c.ClientID)
	}
}

// headerCredential sends HTTP Basic with form-encoded id and secret.
type headerCredential struct{}

func (headerCredential) apply(c Credentials, _ url.Values, header http.Header) {
	userinfo := url.QueryEscape(c.ClientID) + ":" + url.QueryEscape(c.ClientSecret)
	header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(userinfo)))
}

// bodyCredential sends client_id and client_secret as form parameters.
type bodyCredential struct{}

func (bodyCredential) apply(c Credentials, form url.Values, _ http.Header) {
	form.Set("client_id", c.ClientID)
	form.Set("client_secret", c.ClientSecret)
}
