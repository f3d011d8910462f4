package bridge_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
)

// TestExchangeAgainstHydra runs the full flow and checks Hydra issued a token
// for the resolved subject carrying the session claims.
func TestExchangeAgainstHydra(t *testing.T) {
	h := setupHydra(t)
	client := startBridge(t, h, startUserinfo(t))

	tok, err := client.ExchangeToken(t.Context(), bridgesdk.ExchangeRequest{
		SubjectToken: validSubjectToken,
		Scopes:       []string{"read", "openid"},
		Audiences:    []string{"https://api.example.com"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, "urn:ietf:params:oauth:token-type:access_token", tok.IssuedTokenType)
	require.Equal(t, "bearer", tok.TokenType)
	require.NotNil(t, tok.ExpiresIn)
	require.Positive(t, *tok.ExpiresIn)

	info := h.introspect(t, tok.AccessToken)
	require.Equal(t, true, info["active"])
	require.Equal(t, "e2e/alice", info["sub"])
	require.Equal(t, bridgeClientID, info["client_id"])
	require.ElementsMatch(t, []any{"https://api.example.com"}, info["aud"])

	ext, ok := info["ext"].(map[string]any)
	require.True(t, ok, "expected session claims in ext, got %v", info["ext"])
	require.Equal(t, "e2e", ext["tenant"])
}

// TestExchangeIsRepeatable checks runs do not share provider state.
func TestExchangeIsRepeatable(t *testing.T) {
	h := setupHydra(t)
	client := startBridge(t, h, startUserinfo(t))

	seen := map[string]bool{}
	for range 3 {
		tok, err := client.ExchangeToken(t.Context(), bridgesdk.ExchangeRequest{
			SubjectToken: validSubjectToken,
			Scopes:       []string{"read"},
		})
		require.NoError(t, err)
		require.False(t, seen[tok.AccessToken], "token reused")
		seen[tok.AccessToken] = true
	}
}

func TestExchangeRejections(t *testing.T) {
	h := setupHydra(t)
	client := startBridge(t, h, startUserinfo(t))

	t.Run("unknown subject token", func(t *testing.T) {
		_, err := client.ExchangeToken(t.Context(), bridgesdk.ExchangeRequest{
			SubjectToken: "not-a-known-token",
			Scopes:       []string{"read"},
		})
		requireOAuth2Error(t, err, http.StatusBadRequest, bridgesdk.ErrorCodeInvalidRequest)
	})

	t.Run("scope outside policy", func(t *testing.T) {
		_, err := client.ExchangeToken(t.Context(), bridgesdk.ExchangeRequest{
			SubjectToken: validSubjectToken,
			Scopes:       []string{"admin"},
		})
		requireOAuth2Error(t, err, http.StatusBadRequest, bridgesdk.ErrorCodeInvalidScope)
	})

	t.Run("audience outside policy", func(t *testing.T) {
		_, err := client.ExchangeToken(t.Context(), bridgesdk.ExchangeRequest{
			SubjectToken: validSubjectToken,
			Audiences:    []string{"https://other.example.com"},
		})
		requireOAuth2Error(t, err, http.StatusBadRequest, bridgesdk.ErrorCodeInvalidRequest)
	})
}

func TestHealthAgainstHydra(t *testing.T) {
	h := setupHydra(t)
	client := startBridge(t, h, startUserinfo(t))

	live, err := client.GetLiveness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	ready, err := client.GetReadiness(t.Context())
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Provider)
}
