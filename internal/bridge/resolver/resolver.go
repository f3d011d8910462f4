// Package resolver turns a validated subject token into the session claims
// injected at the provider's login and consent steps.
package resolver

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
)

var (
	// ErrInvalidSubjectToken means the subject token was rejected by its issuer.
	ErrInvalidSubjectToken = errors.New("resolver: invalid subject token")

	// ErrUnexpectedStatus means the issuer answered with a status we do not handle.
	ErrUnexpectedStatus = errors.New("resolver: unexpected status")
)

// Resolver looks up who a subject token belongs to.
type Resolver interface {
	Resolve(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error)
}

// Func adapts a plain function to Resolver.
type Func func(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error)

func (f Func) Resolve(ctx context.Context, req *domain.ExchangeRequest) (*domain.SessionClaims, error) {
	return f(ctx, req)
}
