// Package provider drives an Ory Hydra authorization-code-with-PKCE flow on
// behalf of an already identified subject, accepting the login and consent
// requests through the admin API instead of a browser.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/clientauth"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/pkg/cryptox"
)

const (
	// DefaultTimeout bounds each outbound call of a flow run.
	DefaultTimeout = 10 * time.Second

	maxResponseBodySize = 1 << 20
)

// Config configures an Orchestrator.
type Config struct {
	PublicURL   string
	AdminURL    string
	Client      clientauth.Credentials
	RedirectURI string

	// PublicClient and AdminClient may carry their own authentication, for
	// example a credential.Cache transport. Redirect following and cookie
	// jars are disabled on the public client.
	PublicClient *http.Client
	AdminClient  *http.Client

	Timeout time.Duration
	Logger  *slog.Logger
}

// Grant is what one flow run asks the provider to issue.
type Grant struct {
	Scopes    []string
	Audiences []string
	Claims    *domain.SessionClaims
}

// Orchestrator runs the six-step flow. It holds no per-run state and is safe
// for concurrent use.
type Orchestrator struct {
	public      *url.URL
	admin       *url.URL
	client      clientauth.Credentials
	redirectURI string
	publicHTTP  *http.Client
	adminHTTP   *http.Client
	timeout     time.Duration
	logger      *slog.Logger
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	public, err := parseBaseURL("public", cfg.PublicURL)
	if err != nil {
		return nil, err
	}
	admin, err := parseBaseURL("admin", cfg.AdminURL)
	if err != nil {
		return nil, err
	}
	if _, err := parseBaseURL("redirect", cfg.RedirectURI); err != nil {
		return nil, err
	}
	if err := cfg.Client.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var publicHTTP http.Client
	if cfg.PublicClient != nil {
		publicHTTP = *cfg.PublicClient
	}
	publicHTTP.Jar = nil
	publicHTTP.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	adminHTTP := cfg.AdminClient
	if adminHTTP == nil {
		adminHTTP = &http.Client{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		public:      public,
		admin:       admin,
		client:      cfg.Client,
		redirectURI: cfg.RedirectURI,
		publicHTTP:  &publicHTTP,
		adminHTTP:   adminHTTP,
		timeout:     timeout,
		logger:      logger.With("component", "provider"),
	}, nil
}

func parseBaseURL(name, raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("provider: invalid %s URL %q", name, raw)
	}
	return u, nil
}

// Run drives one authorization flow and returns the token the provider
// issued for g. Any deviation from the expected responses aborts the run
// with a *StepError; nothing is retried.
func (o *Orchestrator) Run(ctx context.Context, g Grant) (*domain.IssuedToken, error) {
	if g.Claims == nil || g.Claims.Subject == "" {
		return nil, errors.New("provider: session subject is required")
	}

	pkce, err := cryptox.NewPKCE()
	if err != nil {
		return nil, fmt.Errorf("provider: generate pkce: %w", err)
	}

	loginChallenge, loginCookies, err := o.initiate(ctx, pkce, g)
	if err != nil {
		return nil, &StepError{Step: StepInitiate, Err: err}
	}

	consentURL, err := o.acceptLogin(ctx, loginChallenge, g.Claims)
	if err != nil {
		return nil, &StepError{Step: StepAcceptLogin, Err: err}
	}

	consentChallenge, consentCookies, err := o.resumeToConsent(ctx, consentURL, loginCookies)
	if err != nil {
		return nil, &StepError{Step: StepResumeToConsent, Err: err}
	}

	clientURL, err := o.acceptConsent(ctx, consentChallenge, g)
	if err != nil {
		return nil, &StepError{Step: StepAcceptConsent, Err: err}
	}

	code, err := o.resumeToClient(ctx, clientURL, consentCookies, pkce)
	if err != nil {
		return nil, &StepError{Step: StepResumeToClient, Err: err}
	}

	tok, err := o.redeemCode(ctx, code, pkce.Verifier)
	if err != nil {
		return nil, &StepError{Step: StepRedeemCode, Err: err}
	}

	return tok, nil
}

// Ping checks that the public surface reports ready.
func (o *Orchestrator) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.public.JoinPath("health", "ready").String(), nil)
	if err != nil {
		return err
	}

	resp, err := o.publicHTTP.Do(req)
	if err != nil {
		return err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK {
		return unexpected("status %d", resp.StatusCode)
	}
	return nil
}

// initiate starts the authorization request and captures the login challenge.
func (o *Orchestrator) initiate(ctx context.Context, pkce cryptox.PKCE, g Grant) (string, []*http.Cookie, error) {
	q := url.Values{
		"client_id":             {o.client.ClientID},
		"code_challenge":        {pkce.Challenge},
		"code_challenge_method": {cryptox.ChallengeMethodS256},
		"redirect_uri":          {o.redirectURI},
		"response_type":         {"code"},
		"state":                 {pkce.State},
	}
	if len(g.Audiences) > 0 {
		q["audience"] = sorted(g.Audiences)
	}
	if len(g.Scopes) > 0 {
		q.Set("scope", strings.Join(sorted(g.Scopes), " "))
	}

	target := o.public.JoinPath("oauth2", "auth")
	target.RawQuery = q.Encode()

	location, cookies, err := o.expectRedirect(ctx, target, nil)
	if err != nil {
		return "", nil, err
	}

	challenge := location.Query().Get("login_challenge")
	if challenge == "" {
		return "", nil, fmt.Errorf("%w: login_challenge", ErrMissingChallenge)
	}
	return challenge, cookies, nil
}

type acceptLoginRequest struct {
	Subject string   `json:"subject"`
	ACR     string   `json:"acr,omitempty"`
	AMR     []string `json:"amr,omitempty"`
}

func (o *Orchestrator) acceptLogin(ctx context.Context, challenge string, claims *domain.SessionClaims) (*url.URL, error) {
	return o.accept(ctx, "login", "login_challenge", challenge, acceptLoginRequest{
		Subject: claims.Subject,
		ACR:     claims.ACR,
		AMR:     claims.AMR,
	})
}

func (o *Orchestrator) resumeToConsent(ctx context.Context, next *url.URL, cookies []*http.Cookie) (string, []*http.Cookie, error) {
	location, consentCookies, err := o.expectRedirect(ctx, next, cookies)
	if err != nil {
		return "", nil, err
	}

	challenge := location.Query().Get("consent_challenge")
	if challenge == "" {
		return "", nil, fmt.Errorf("%w: consent_challenge", ErrMissingChallenge)
	}
	return challenge, consentCookies, nil
}

type acceptConsentRequest struct {
	GrantAccessTokenAudience []string        `json:"grant_access_token_audience"`
	GrantScope               []string        `json:"grant_scope"`
	Session                  *consentSession `json:"session,omitempty"`
}

type consentSession struct {
	AccessToken map[string]any `json:"access_token,omitempty"`
	IDToken     map[string]any `json:"id_token,omitempty"`
}

func (o *Orchestrator) acceptConsent(ctx context.Context, challenge string, g Grant) (*url.URL, error) {
	body := acceptConsentRequest{
		GrantAccessTokenAudience: nonNil(g.Audiences),
		GrantScope:               nonNil(g.Scopes),
	}
	if len(g.Claims.AccessToken) > 0 || len(g.Claims.IDToken) > 0 {
		body.Session = &consentSession{
			AccessToken: g.Claims.AccessToken,
			IDToken:     g.Claims.IDToken,
		}
	}

	return o.accept(ctx, "consent", "consent_challenge", challenge, body)
}

func (o *Orchestrator) resumeToClient(ctx context.Context, next *url.URL, cookies []*http.Cookie, pkce cryptox.PKCE) (string, error) {
	location, _, err := o.expectRedirect(ctx, next, cookies)
	if err != nil {
		return "", err
	}

	q := location.Query()
	if !pkce.MatchesState(q.Get("state")) {
		return "", ErrInvalidState
	}

	code := q.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   *int64 `json:"expires_in"`
	Scope       string `json:"scope"`
}

func (o *Orchestrator) redeemCode(ctx context.Context, code, verifier string) (*domain.IssuedToken, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	form := url.Values{
		"code":          {code},
		"code_verifier": {verifier},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {o.redirectURI},
	}

	req, err := o.client.NewTokenRequest(ctx, o.public.JoinPath("oauth2", "token").String(), form)
	if err != nil {
		return nil, err
	}

	resp, err := o.publicHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK || !isJSON(resp) {
		return nil, unexpected("status %d content-type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	var tr tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&tr); err != nil {
		return nil, unexpected("decode token response: %v", err)
	}
	if tr.AccessToken == "" {
		return nil, unexpected("empty access_token")
	}

	return &domain.IssuedToken{
		AccessToken: tr.AccessToken,
		TokenType:   tr.TokenType,
		ExpiresIn:   tr.ExpiresIn,
		Scope:       tr.Scope,
	}, nil
}

// expectRedirect GETs target on the public surface, replaying cookies, and
// requires a 3xx answer with a Location. It returns the resolved Location and
// the cookies set by the response.
func (o *Orchestrator) expectRedirect(ctx context.Context, target *url.URL, cookies []*http.Cookie) (*url.URL, []*http.Cookie, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	for _, c := range cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := o.publicHTTP.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer drain(resp)

	if resp.StatusCode < 300 || resp.StatusCode > 399 {
		return nil, nil, unexpected("status %d, want redirect", resp.StatusCode)
	}

	location, err := resp.Location()
	if err != nil {
		return nil, nil, unexpected("redirect without location")
	}

	return location, resp.Cookies(), nil
}

// accept PUTs an accept request for a login or consent challenge and returns
// the redirect_to target rebased onto the public origin.
func (o *Orchestrator) accept(ctx context.Context, kind, param, challenge string, body any) (*url.URL, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	target := o.admin.JoinPath("admin", "oauth2", "auth", "requests", kind, "accept")
	target.RawQuery = url.Values{param: {challenge}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := o.adminHTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp)

	if resp.StatusCode != http.StatusOK || !isJSON(resp) {
		return nil, unexpected("status %d content-type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	var out struct {
		RedirectTo string `json:"redirect_to"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodySize)).Decode(&out); err != nil {
		return nil, unexpected("decode %s accept response: %v", kind, err)
	}

	redirect, err := url.Parse(out.RedirectTo)
	if err != nil || out.RedirectTo == "" {
		return nil, unexpected("invalid redirect_to %q", out.RedirectTo)
	}

	return o.onPublicOrigin(redirect), nil
}

// onPublicOrigin keeps the path and query of u and points it at the
// configured public origin, which may differ from the one the provider
// advertises.
func (o *Orchestrator) onPublicOrigin(u *url.URL) *url.URL {
	return &url.URL{
		Scheme:   o.public.Scheme,
		Host:     o.public.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	}
}

func isJSON(resp *http.Response) bool {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "application/json")
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))
	_ = resp.Body.Close()
}

func sorted(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
