// Package credential keeps a client-credentials bearer token for the
// bridge's own calls to protected provider endpoints.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/clientauth"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultRefreshThreshold is how close to expiry a cached token may get
	// before a background refresh is started.
	DefaultRefreshThreshold = 30 * time.Second

	// DefaultTimeout bounds one token request.
	DefaultTimeout = 10 * time.Second

	// lifetimeFactor shortens the advertised lifetime to absorb clock skew and
	// request latency.
	lifetimeFactor = 0.9802

	maxResponseBodySize = 1 << 20
	refreshKey          = "refresh"
)

var (
	ErrTokenRequest         = errors.New("credential: token request failed")
	ErrInvalidTokenResponse = errors.New("credential: invalid token response")
)

// Observer is told about every completed refresh.
type Observer interface {
	ObserveRefresh(background bool, err error)
}

// Config configures a Cache.
type Config struct {
	TokenURL         string
	Credentials      clientauth.Credentials
	Scope            string // optional, space separated
	Audience         string // optional
	HTTPClient       *http.Client
	RefreshThreshold time.Duration
	Timeout          time.Duration
	Logger           *slog.Logger
	Observer         Observer
}

// Cache holds one bearer token shared by every caller in the process.
//
// A cached token is served until it expires. Once its remaining lifetime
// drops under the refresh threshold a single background refresh is started
// and the still valid token keeps being served. Without a valid token callers
// block on a refresh; concurrent refreshes are collapsed into one request.
// Tokens returned without a positive expires_in are handed to the caller that
// asked for them and never cached.
type Cache struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
	now    func() time.Time

	current    atomic.Pointer[cachedToken]
	refreshing atomic.Bool
	group      singleflight.Group
}

type cachedToken struct {
	accessToken string
	expiresAt   time.Time
}

// New returns a Cache. It does not contact the token endpoint until the first
// AccessToken call.
func New(cfg Config) *Cache {
	if cfg.RefreshThreshold <= 0 {
		cfg.RefreshThreshold = DefaultRefreshThreshold
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{
		cfg:    cfg,
		client: client,
		logger: logger.With("component", "credential_cache", "client_id", cfg.Credentials.ClientID),
		now:    time.Now,
	}
}

// AccessToken returns a bearer token for outbound calls.
func (c *Cache) AccessToken(ctx context.Context) (string, error) {
	now := c.now()
	if tok := c.current.Load(); tok != nil && now.Before(tok.expiresAt) {
		if tok.expiresAt.Sub(now) < c.cfg.RefreshThreshold {
			c.refreshInBackground()
		}
		return tok.accessToken, nil
	}

	return c.refresh(ctx, false)
}

// Token implements oauth2.TokenSource. oauth2.TokenSource carries no
// context, so a blocking refresh started here is bounded only by the
// configured Timeout. Prefer AccessToken or Client where a context exists.
func (c *Cache) Token() (*oauth2.Token, error) {
	tok, err := c.AccessToken(context.Background())
	if err != nil {
		return nil, err
	}
	return bearer(tok), nil
}

// Client returns a copy of base that authenticates every request with the
// cached token. The token is resolved with the request's context, so a
// refresh never outlasts the call that needed it.
func (c *Cache) Client(base *http.Client) *http.Client {
	var out http.Client
	if base != nil {
		out = *base
	}
	out.Transport = &transport{cache: c, base: out.Transport}
	return &out
}

func bearer(tok string) *oauth2.Token {
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
}

type transport struct {
	cache *Cache
	base  http.RoundTripper
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok, err := t.cache.AccessToken(req.Context())
	if err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}

	rt := &oauth2.Transport{Source: oauth2.StaticTokenSource(bearer(tok)), Base: t.base}
	return rt.RoundTrip(req)
}

func (c *Cache) refresh(ctx context.Context, background bool) (string, error) {
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		// Detached so one impatient caller cannot fail a refresh others joined.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
		defer cancel()

		tok, err := c.fetch(fetchCtx)
		if c.cfg.Observer != nil {
			c.cfg.Observer.ObserveRefresh(background, err)
		}
		return tok, err
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Cache) refreshInBackground() {
	if !c.refreshing.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer c.refreshing.Store(false)

		if _, err := c.refresh(context.Background(), true); err != nil {
			c.logger.Warn("background credential refresh failed", "error", err)
			return
		}
		c.logger.Debug("background credential refresh completed")
	}()
}

type tokenResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   json.RawMessage `json:"expires_in"`
}

func (c *Cache) fetch(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	if c.cfg.Scope != "" {
		form.Set("scope", c.cfg.Scope)
	}
	if c.cfg.Audience != "" {
		form.Set("audience", c.cfg.Audience)
	}

	req, err := c.cfg.Credentials.NewTokenRequest(ctx, c.cfg.TokenURL, form)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return "", fmt.Errorf("%w: read body: %w", ErrTokenRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrTokenRequest, resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidTokenResponse, err)
	}
	if tr.AccessToken == "" || !strings.EqualFold(tr.TokenType, "bearer") {
		return "", ErrInvalidTokenResponse
	}

	// A quoted or missing expires_in fails to parse and leaves the token uncached.
	if expiresIn, err := strconv.ParseFloat(string(tr.ExpiresIn), 64); err == nil && expiresIn > 0 {
		lifetime := time.Duration(expiresIn * lifetimeFactor * float64(time.Second))
		c.current.Store(&cachedToken{
			accessToken: tr.AccessToken,
			expiresAt:   c.now().Add(lifetime),
		})
	}

	return tr.AccessToken, nil
}
