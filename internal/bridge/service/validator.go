package service

import (
	"net/url"
	"slices"
	"strings"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
)

// Policy is the configured set of values a token exchange request may use.
type Policy struct {
	AllowedScopes     []string
	AllowedAudiences  []string
	SubjectTokenTypes []string // defaults to the access token type
	ActorTokenTypes   []string // defaults to none, rejecting every actor token
}

// Validate checks a raw form against RFC 8693 and the policy. Checks run in a
// fixed order and the first failure is returned as *ValidationError.
func (p *Policy) Validate(form url.Values) (*domain.ExchangeRequest, error) {
	subjectToken := form.Get("subject_token")
	if subjectToken == "" {
		return nil, invalidRequest("missing subject_token")
	}

	subjectTokenType := form.Get("subject_token_type")
	if !containsFold(p.subjectTokenTypes(), subjectTokenType) {
		return nil, invalidRequest("invalid subject_token_type")
	}

	if !strings.EqualFold(form.Get("grant_type"), domain.GrantTypeTokenExchange) {
		return nil, &ValidationError{Code: bridgesdk.ErrorCodeUnsupportedGrantType}
	}

	requestedTokenType, requested := form.Get("requested_token_type"), form.Has("requested_token_type")
	if requested && !strings.EqualFold(requestedTokenType, domain.TokenTypeAccessToken) {
		return nil, invalidRequest("invalid requested_token_type")
	}

	scopes, ok := p.canonicalScopes(form.Get("scope"))
	if !ok {
		return nil, &ValidationError{Code: bridgesdk.ErrorCodeInvalidScope}
	}

	audiences := form["audience"]
	for _, aud := range audiences {
		if !slices.Contains(p.AllowedAudiences, aud) {
			return nil, invalidRequest("invalid audience")
		}
	}

	var resource *url.URL
	if raw := form.Get("resource"); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, invalidRequest("invalid resource")
		}
		resource = u
	}

	// Presence decides the pairing, so an empty actor_token still needs a type.
	if form.Has("actor_token") != form.Has("actor_token_type") {
		return nil, invalidRequest("missing actor_token or actor_token_type")
	}
	actorToken := form.Get("actor_token")
	actorTokenType := form.Get("actor_token_type")
	if form.Has("actor_token_type") && !containsFold(p.ActorTokenTypes, actorTokenType) {
		return nil, invalidRequest("invalid actor_token_type")
	}

	return &domain.ExchangeRequest{
		SubjectToken:       subjectToken,
		SubjectTokenType:   subjectTokenType,
		RequestedTokenType: requestedTokenType,
		Scopes:             scopes,
		Audiences:          append([]string(nil), audiences...),
		Resource:           resource,
		ActorToken:         actorToken,
		ActorTokenType:     actorTokenType,
	}, nil
}

func (p *Policy) subjectTokenTypes() []string {
	if len(p.SubjectTokenTypes) == 0 {
		return []string{domain.TokenTypeAccessToken}
	}
	return p.SubjectTokenTypes
}

// canonicalScopes maps each requested scope onto its configured spelling and
// drops duplicates. It reports false when any scope is not allowed.
func (p *Policy) canonicalScopes(raw string) ([]string, bool) {
	var (
		out  []string
		seen = make(map[string]struct{})
	)
	for _, s := range strings.Split(raw, " ") {
		if s == "" {
			continue
		}
		canonical, ok := lookupFold(p.AllowedScopes, s)
		if !ok {
			return nil, false
		}
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}
	return out, true
}

func lookupFold(set []string, v string) (string, bool) {
	for _, s := range set {
		if strings.EqualFold(s, v) {
			return s, true
		}
	}
	return "", false
}

func containsFold(set []string, v string) bool {
	_, ok := lookupFold(set, v)
	return ok
}
