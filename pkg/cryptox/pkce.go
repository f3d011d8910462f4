package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
)

// ChallengeMethodS256 is the only PKCE challenge method we emit (RFC 7636).
const ChallengeMethodS256 = "S256"

// PKCE is the per-attempt material for an authorization code flow: the
// anti-replay state plus the verifier and its derived challenge. A value is
// meant for exactly one attempt and is never persisted.
type PKCE struct {
	State     string
	Verifier  string
	Challenge string
}

// NewPKCE generates a fresh state and a 43 character verifier.
func NewPKCE() (PKCE, error) {
	state, err := GenerateToken(TokenSize96)
	if err != nil {
		return PKCE{}, err
	}

	verifier, err := GenerateToken(TokenSize256)
	if err != nil {
		return PKCE{}, err
	}

	return PKCE{
		State:     state,
		Verifier:  verifier,
		Challenge: S256Challenge(verifier),
	}, nil
}

// S256Challenge derives the code_challenge for a verifier:
// BASE64URL-NOPAD(SHA256(verifier)).
func S256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// MatchesState reports whether the state echoed back by the provider is the
// one this attempt started with.
func (p PKCE) MatchesState(state string) bool {
	return state != "" && EqualTokens(p.State, state)
}
