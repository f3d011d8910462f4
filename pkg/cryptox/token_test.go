package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantLen int
	}{
		{"96-bit token", TokenSize96, 16},
		{"256-bit token", TokenSize256, 43},
		{"custom size", 33, 44},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)
			require.NotContains(t, token, "=")

			token2, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.NotEqual(t, token, token2, "tokens should be unique")
		})
	}
}

func TestGenerateToken_InvalidSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
}

func TestFingerprintToken(t *testing.T) {
	fp1a := FingerprintToken("subject-token-1")
	fp1b := FingerprintToken("subject-token-1")
	fp2 := FingerprintToken("subject-token-2")

	require.Equal(t, fp1a, fp1b, "fingerprint should be deterministic")
	require.NotEqual(t, fp1a, fp2)
	require.Len(t, fp1a, 43, "SHA-256 base64url should be 43 chars")
}

func TestEqualTokens(t *testing.T) {
	require.True(t, EqualTokens("abc", "abc"))
	require.False(t, EqualTokens("abc", "abd"))
	require.False(t, EqualTokens("abc", "abcd"))
}

func TestNewPKCE(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for range 50 {
		p, err := NewPKCE()
		require.NoError(t, err)

		// RFC 7636 verifier length bounds
		require.GreaterOrEqual(t, len(p.Verifier), 43)
		require.LessOrEqual(t, len(p.Verifier), 128)
		require.NotEmpty(t, p.State)

		sum := sha256.Sum256([]byte(p.Verifier))
		require.Equal(t, base64.RawURLEncoding.EncodeToString(sum[:]), p.Challenge)

		require.NotContains(t, seen, p.State, "state reused")
		seen[p.State] = struct{}{}
	}
}

func TestS256Challenge_RFC7636Vector(t *testing.T) {
	// Appendix B of RFC 7636
	verifier := "dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"
	require.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", S256Challenge(verifier))
}

func TestPKCE_MatchesState(t *testing.T) {
	p, err := NewPKCE()
	require.NoError(t, err)

	require.True(t, p.MatchesState(p.State))
	require.False(t, p.MatchesState(""))
	require.False(t, p.MatchesState(p.State+"x"))
}
