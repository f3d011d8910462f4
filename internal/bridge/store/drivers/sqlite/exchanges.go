package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store/drivers/sqlite/gen"
	"github.com/aussiebroadwan/tokenbridge/pkg/idx"
)

type exchangesRepo struct {
	q *gen.Queries
}

func (r *exchangesRepo) RecordExchange(ctx context.Context, rec domain.ExchangeRecord) error {
	return r.q.CreateExchange(ctx, gen.CreateExchangeParams{
		ID:         rec.ID,
		RequestID:  mapStringNull(rec.RequestID),
		Subject:    rec.Subject,
		Scopes:     strings.Join(rec.Scopes, " "),
		Audiences:  strings.Join(rec.Audiences, " "),
		Outcome:    string(rec.Outcome),
		ErrorCode:  mapStringNull(rec.ErrorCode),
		FailedStep: mapStringNull(rec.FailedStep),
		CreatedAt:  rec.CreatedAt.UTC(),
	})
}

func (r *exchangesRepo) GetExchange(ctx context.Context, id string) (domain.ExchangeRecord, error) {
	parsed, err := idx.Parse(id)
	if err != nil {
		return domain.ExchangeRecord{}, store.ErrNotFound
	}

	row, err := r.q.GetExchange(ctx, parsed.String())
	if err != nil {
		return domain.ExchangeRecord{}, mapNotFound(err)
	}
	return mapExchange(row), nil
}

func (r *exchangesRepo) ListRecentExchanges(ctx context.Context, limit int) ([]domain.ExchangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.ListRecentExchanges(ctx, int64(limit))
	if err != nil {
		return nil, err
	}

	out := make([]domain.ExchangeRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapExchange(row))
	}
	return out, nil
}

func (r *exchangesRepo) DeleteExchangesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.q.DeleteExchangesBefore(ctx, cutoff.UTC())
}
