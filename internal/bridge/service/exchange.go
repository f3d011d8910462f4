package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/provider"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/resolver"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
	"github.com/aussiebroadwan/tokenbridge/pkg/bridgesdk"
	"github.com/aussiebroadwan/tokenbridge/pkg/idx"
	"github.com/aussiebroadwan/tokenbridge/pkg/slogx"
)

// Flow mints a provider token for a resolved subject.
type Flow interface {
	Run(ctx context.Context, g provider.Grant) (*domain.IssuedToken, error)
}

// Recorder receives exchange metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObserveExchange(outcome domain.ExchangeOutcome, took time.Duration)
	ObserveStepFailure(step string)
	ObserveResolverFailure()
}

// ExchangeService validates a token exchange request, resolves its subject
// and runs the provider flow.
type ExchangeService struct {
	Policy   *Policy
	Resolver resolver.Resolver
	Flow     Flow

	// Audit and Metrics are optional.
	Audit   store.Exchanges
	Metrics Recorder

	// ExtraAccessClaims are merged into every access token session. Claims
	// from the resolver take precedence.
	ExtraAccessClaims map[string]any

	Logger *slog.Logger
}

// Exchange handles one token exchange. Errors are either *ValidationError
// (client caused) or opaque.
func (s *ExchangeService) Exchange(ctx context.Context, form url.Values) (*domain.IssuedToken, error) {
	start := time.Now()
	l := s.logger(ctx)

	req, err := s.Policy.Validate(form)
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			s.finish(ctx, start, domain.ExchangeRecord{Outcome: domain.OutcomeRejected, ErrorCode: ve.Code})
		}
		l.Info("token exchange rejected", "error", err)
		return nil, err
	}

	rec := domain.ExchangeRecord{Scopes: req.Scopes, Audiences: req.Audiences}

	claims, err := s.Resolver.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, resolver.ErrInvalidSubjectToken) {
			l.Info("subject token rejected", "error", err)
		} else {
			l.Warn("subject token resolution failed", "error", err)
		}
		if s.Metrics != nil {
			s.Metrics.ObserveResolverFailure()
		}

		ve := invalidRequest("invalid subject_token")
		rec.Outcome, rec.ErrorCode = domain.OutcomeRejected, ve.Code
		s.finish(ctx, start, rec)
		return nil, ve
	}
	if claims == nil || claims.Subject == "" {
		ve := invalidRequest("invalid subject_token")
		rec.Outcome, rec.ErrorCode = domain.OutcomeRejected, ve.Code
		s.finish(ctx, start, rec)
		return nil, ve
	}

	claims = claims.Clone()
	claims.AccessToken = mergeClaims(s.ExtraAccessClaims, claims.AccessToken)
	rec.Subject = claims.Subject

	tok, err := s.Flow.Run(ctx, provider.Grant{
		Scopes:    req.Scopes,
		Audiences: req.Audiences,
		Claims:    claims,
	})
	if err != nil {
		var se *provider.StepError
		if errors.As(err, &se) {
			rec.FailedStep = se.Step.String()
			if s.Metrics != nil {
				s.Metrics.ObserveStepFailure(rec.FailedStep)
			}
		}
		l.Error("provider flow failed", "error", err, "subject", claims.Subject, "step", rec.FailedStep)

		rec.Outcome, rec.ErrorCode = domain.OutcomeFailed, bridgesdk.ErrorCodeServerError
		s.finish(ctx, start, rec)
		return nil, err
	}

	rec.Outcome = domain.OutcomeIssued
	s.finish(ctx, start, rec)
	l.Info("token exchanged", "subject", claims.Subject, "scopes", req.Scopes, "audiences", req.Audiences)

	return tok, nil
}

// finish writes the audit row and metrics. Neither can fail the exchange.
func (s *ExchangeService) finish(ctx context.Context, start time.Time, rec domain.ExchangeRecord) {
	if s.Metrics != nil {
		s.Metrics.ObserveExchange(rec.Outcome, time.Since(start))
	}
	if s.Audit == nil {
		return
	}

	now := time.Now().UTC()
	rec.ID = idx.NewAt(now).String()
	rec.RequestID = slogx.RequestID(ctx)
	rec.CreatedAt = now

	// The caller may already be gone; the audit row is still wanted.
	auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.Audit.RecordExchange(auditCtx, rec); err != nil {
		s.logger(ctx).Error("failed to record exchange", "error", err, "outcome", rec.Outcome)
	}
}

func (s *ExchangeService) logger(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, s.Logger)
}

// mergeClaims layers over on top of base. Nil when both are empty.
func mergeClaims(base, over map[string]any) map[string]any {
	if len(base) == 0 && len(over) == 0 {
		return nil
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
