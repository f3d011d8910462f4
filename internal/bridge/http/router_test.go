package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/clientauth"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	bridgehttp "github.com/aussiebroadwan/tokenbridge/internal/bridge/http"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/metrics"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/provider"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/provider/providertest"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/resolver"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/service"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/tokenbridge/pkg/httpx"
	"github.com/aussiebroadwan/tokenbridge/pkg/slogx"
)

type bridge struct {
	router *bridgehttp.Router
	hydra  *providertest.Server
}

func newBridge(t *testing.T, hydraCfg providertest.Config, res resolver.Resolver) *bridge {
	t.Helper()

	hydra := providertest.New(t, hydraCfg)
	hc := hydra.Config()

	flow, err := provider.New(provider.Config{
		PublicURL: hydra.Public.URL,
		AdminURL:  hydra.Admin.URL,
		Client: clientauth.Credentials{
			Method:       clientauth.Method(hc.AuthMethod),
			ClientID:     hc.ClientID,
			ClientSecret: hc.ClientSecret,
		},
		RedirectURI: hc.RedirectURI,
		Timeout:     2 * time.Second,
		Logger:      slogx.Discard(),
	})
	require.NoError(t, err)

	if res == nil {
		res = resolver.Func(func(context.Context, *domain.ExchangeRequest) (*domain.SessionClaims, error) {
			return &domain.SessionClaims{Subject: "alice@example.com"}, nil
		})
	}

	reg := prometheus.NewRegistry()
	r := bridgehttp.NewRouter("test", nil, slogx.Discard())
	r.ExchangeService = &service.ExchangeService{
		Policy:   &service.Policy{AllowedScopes: []string{"read", "write"}},
		Resolver: res,
		Flow:     flow,
		Metrics:  metrics.New(reg),
		Logger:   slogx.Discard(),
	}
	r.Provider = flow
	r.Gatherer = reg
	r.MaxBodyBytes = 1024
	r.ApplyRoutes()

	return &bridge{router: r, hydra: hydra}
}

func exchangeForm(scope string) string {
	return url.Values{
		"subject_token":      {"abc"},
		"subject_token_type": {domain.TokenTypeAccessToken},
		"grant_type":         {domain.GrantTypeTokenExchange},
		"scope":              {scope},
	}.Encode()
}

func (b *bridge) post(path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	b.router.ServeHTTP(rec, req)
	return rec
}

func TestTokenExchangeSuccess(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{}, nil)

	for _, path := range []string{"/oauth2/token", "/token"} {
		t.Run(path, func(t *testing.T) {
			rec := b.post(path, httpx.FormContentType, exchangeForm("read"))
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			require.NotEmpty(t, body["access_token"])
			require.Equal(t, domain.TokenTypeAccessToken, body["issued_token_type"])
			require.Equal(t, "bearer", body["token_type"])
			require.EqualValues(t, 3599, body["expires_in"])
			require.Equal(t, "read", body["scope"])
		})
	}

	require.Equal(t, 2, b.hydra.Calls(providertest.HopToken))
}

func TestTokenExchangeExpiresInMirrorsProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		tokResp map[string]any
		want    string
	}{
		{"omitted", map[string]any{"access_token": "at", "token_type": "bearer"}, `{"access_token":"at","issued_token_type":"` + domain.TokenTypeAccessToken + `","token_type":"bearer"}`},
		{"zero", map[string]any{"access_token": "at", "token_type": "bearer", "expires_in": 0}, `{"access_token":"at","issued_token_type":"` + domain.TokenTypeAccessToken + `","token_type":"bearer","expires_in":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBridge(t, providertest.Config{TokenResponse: tt.tokResp}, nil)

			rec := b.post("/oauth2/token", httpx.FormContentType, exchangeForm("read"))
			require.Equal(t, http.StatusOK, rec.Code)
			require.JSONEq(t, tt.want, rec.Body.String())
		})
	}
}

func TestTokenExchangeInvalidScopeMakesNoProviderCalls(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{}, nil)

	rec := b.post("/oauth2/token", httpx.FormContentType, exchangeForm("admin"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.JSONEq(t, `{"error":"invalid_scope"}`, rec.Body.String())
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Zero(t, b.hydra.TotalCalls())
}

func TestTokenExchangeTransportStatuses(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{}, nil)

	tests := []struct {
		name        string
		contentType string
		body        string
		status      int
	}{
		{"json body", "application/json", `{"grant_type":"x"}`, http.StatusUnsupportedMediaType},
		{"empty body", httpx.FormContentType, "", http.StatusBadRequest},
		{"oversized body", httpx.FormContentType, strings.Repeat("a", 2048), http.StatusRequestEntityTooLarge},
		{"bad encoding", httpx.FormContentType, "scope=%zz", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := b.post("/oauth2/token", tt.contentType, tt.body)
			require.Equal(t, tt.status, rec.Code)
			require.Empty(t, rec.Body.String())
		})
	}
	require.Zero(t, b.hydra.TotalCalls())
}

func TestTokenExchangeResolverFailureIs400(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{}, resolver.Func(func(context.Context, *domain.ExchangeRequest) (*domain.SessionClaims, error) {
		return nil, errors.New("userinfo unreachable")
	}))

	rec := b.post("/oauth2/token", httpx.FormContentType, exchangeForm("read"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body bridgesdk.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, bridgesdk.ErrorResponse{Error: "invalid_request", ErrorDescription: "invalid subject_token"}, body)
	require.Zero(t, b.hydra.TotalCalls())
}

func TestTokenExchangeProviderFailureIsBare500(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{FailAt: providertest.HopConsentAccept}, nil)

	rec := b.post("/oauth2/token", httpx.FormContentType, exchangeForm("read"))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Empty(t, rec.Body.String())
	require.Zero(t, b.hydra.Calls(providertest.HopToken))
}

func TestWellKnownTime(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{}, nil)

	for _, method := range []string{http.MethodGet, http.MethodHead} {
		rec := httptest.NewRecorder()
		b.router.ServeHTTP(rec, httptest.NewRequest(method, "/.well-known/time", nil))

		require.Equal(t, http.StatusNoContent, rec.Code, method)
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		date, err := http.ParseTime(rec.Header().Get("Date"))
		require.NoError(t, err)
		require.WithinDuration(t, time.Now(), date, 5*time.Second)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	t.Parallel()

	b := newBridge(t, providertest.Config{}, nil)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		b.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/livez")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = get("/readyz")
	require.Equal(t, http.StatusOK, rec.Code)
	var health bridgesdk.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Checks.Provider)
	require.Equal(t, "disabled", health.Checks.Database)

	b.post("/oauth2/token", httpx.FormContentType, exchangeForm("admin"))
	rec = get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `tokenbridge_exchanges_total{outcome="rejected"} 1`)
}

func TestReadyzReportsProviderOutage(t *testing.T) {
	t.Parallel()

	r := bridgehttp.NewRouter("test", nil, slogx.Discard())
	r.Provider = pingFunc(func(context.Context) error { return errors.New("connection refused") })
	r.ApplyRoutes()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Contains(t, rec.Body.String(), "connection refused")
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }
