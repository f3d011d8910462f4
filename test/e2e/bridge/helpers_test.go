package bridge_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/app"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
)

/*
 * Container setup and fixtures for the token bridge end-to-end tests. Hydra
 * runs in a container; the bridge runs in-process against its mapped ports.
 */

const (
	hydraImage = "oryd/hydra:v2.2.0"

	bridgeClientID     = "token-bridge"
	bridgeClientSecret = "bridge-secret-0123456789"
	bridgeRedirectURI  = "http://bridge.invalid/callback"

	validSubjectToken = "subject-token-alice"
)

var bridgeScopes = []string{"openid", "read", "write"}

type hydra struct {
	PublicURL string
	AdminURL  string
}

// setupHydra starts an in-memory Hydra in dev mode.
func setupHydra(t *testing.T) hydra {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        hydraImage,
		ExposedPorts: []string{"4444/tcp", "4445/tcp"},
		Cmd:          []string{"serve", "all", "--dev"},
		Env: map[string]string{
			"DSN":                           "memory",
			"URLS_SELF_ISSUER":              "http://127.0.0.1:4444",
			"URLS_LOGIN":                    "http://login.invalid/login",
			"URLS_CONSENT":                  "http://consent.invalid/consent",
			"SECRETS_SYSTEM":                "a-very-long-system-secret-for-tests",
			"STRATEGIES_ACCESS_TOKEN":       "opaque",
			"OAUTH2_EXPOSE_INTERNAL_ERRORS": "true",
			"LOG_LEVEL":                     "warn",
		},
		WaitingFor: wait.ForHTTP("/health/ready").
			WithPort("4445/tcp").
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	publicPort, err := container.MappedPort(ctx, "4444")
	require.NoError(t, err)
	adminPort, err := container.MappedPort(ctx, "4445")
	require.NoError(t, err)

	h := hydra{
		PublicURL: fmt.Sprintf("http://%s:%s", host, publicPort.Port()),
		AdminURL:  fmt.Sprintf("http://%s:%s", host, adminPort.Port()),
	}
	h.createClient(t)
	return h
}

// createClient registers the confidential client the bridge runs as.
func (h hydra) createClient(t *testing.T) {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"client_id":                  bridgeClientID,
		"client_secret":              bridgeClientSecret,
		"grant_types":                []string{"authorization_code"},
		"response_types":             []string{"code"},
		"redirect_uris":              []string{bridgeRedirectURI},
		"scope":                      "openid read write",
		"audience":                   []string{"https://api.example.com"},
		"token_endpoint_auth_method": "client_secret_basic",
	})
	require.NoError(t, err)

	resp, err := http.Post(h.AdminURL+"/admin/clients", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

// introspect returns Hydra's view of an issued access token.
func (h hydra) introspect(t *testing.T, token string) map[string]any {
	t.Helper()

	resp, err := http.PostForm(h.AdminURL+"/admin/oauth2/introspect", map[string][]string{"token": {token}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// startUserinfo serves a userinfo endpoint that knows one subject token.
func startUserinfo(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validSubjectToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub": "alice",
			"acr": "urn:acr:pwd",
			"amr": []string{"pwd"},
		})
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/userinfo"
}

// startBridge runs the bridge against h and returns an SDK client for it.
func startBridge(t *testing.T, h hydra, userinfoURL string) *bridgesdk.SDKClient {
	t.Helper()

	cfg := app.Config{
		HydraPublicURL:         h.PublicURL,
		HydraAdminURL:          h.AdminURL,
		HydraClientID:          bridgeClientID,
		HydraClientSecret:      bridgeClientSecret,
		HydraClientAuthMethod:  "client_secret_basic",
		HydraClientRedirectURI: bridgeRedirectURI,
		HydraAdmin:             app.ProtectedClientConfig{AuthMethod: "none"},
		HydraPublic:            app.ProtectedClientConfig{AuthMethod: "none"},
		Policy: app.PolicyConfig{
			Scopes:    bridgeScopes,
			Audiences: []string{"https://api.example.com"},
		},
		ResolverMode:               "userinfo",
		ResolverUserinfoURL:        userinfoURL,
		ResolverSubjectPrefix:      "e2e/",
		FlowTimeout:                10 * time.Second,
		CredentialRefreshThreshold: 30 * time.Second,
		MaxBodyBytes:               64 << 10,
		AuditDatabaseFile:          t.TempDir() + "/audit.db",
		AuditRetention:             time.Hour,
		HousekeepingInterval:       time.Hour,
		Env:                        "test",
		LogLevel:                   "warn",
		LogFormat:                  "json",
		Port:                       8080,
		ShutdownGracePeriod:        time.Second,
	}
	cfg.Policy.Session.AccessToken = map[string]any{"tenant": "e2e"}
	cfg.ExchangeLimit.RequestsPerWindow = 1000
	cfg.ExchangeLimit.Window = time.Minute
	cfg.ExchangeLimit.Burst = 1000
	cfg.ProbeLimit = cfg.ExchangeLimit
	require.NoError(t, cfg.Validate())

	application, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = application.Shutdown()
	})

	return bridgesdk.NewSDKClient(srv.URL)
}

// requireOAuth2Error asserts err is an OAuth2 error with the given code.
func requireOAuth2Error(t *testing.T, err error, status int, code string) {
	t.Helper()

	var oerr *bridgesdk.OAuth2Error
	require.ErrorAs(t, err, &oerr)
	require.Equal(t, status, oerr.StatusCode)
	require.Equal(t, code, oerr.Code)
}
