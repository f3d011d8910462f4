package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/pkg/jwtx"
)

// JWT resolves subject tokens that are signed JWTs by verifying them locally.
type JWT struct {
	verifier      jwtx.Verifier
	subjectPrefix string
}

// NewJWT returns a JWT resolver backed by verifier.
func NewJWT(verifier jwtx.Verifier, subjectPrefix string) *JWT {
	return &JWT{verifier: verifier, subjectPrefix: subjectPrefix}
}

// Resolve verifies the subject token and maps sub, acr and amr.
func (j *JWT) Resolve(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error) {
	claims, err := j.verifier.Verify(ctx, req.SubjectToken)
	if err != nil {
		if errors.Is(err, jwtx.ErrJWKSFetch) {
			return nil, fmt.Errorf("resolver: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidSubjectToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: token has no sub", ErrInvalidSubjectToken)
	}

	return &domain.SessionClaims{
		Subject: j.subjectPrefix + claims.Subject,
		ACR:     claims.ACR,
		AMR:     claims.AMR,
	}, nil
}
