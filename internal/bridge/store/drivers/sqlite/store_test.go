package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store"
	"github.com/aussiebroadwan/tokenbridge/internal/bridge/store/drivers/sqlite"
	"github.com/aussiebroadwan/tokenbridge/pkg/idx"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	s, err := sqlite.NewStore("file:" + filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.ApplyMigrations())
	return s
}

func record(outcome domain.ExchangeOutcome, at time.Time) domain.ExchangeRecord {
	return domain.ExchangeRecord{
		ID:        idx.NewAt(at).String(),
		RequestID: "req-1",
		Subject:   "alice",
		Scopes:    []string{"read", "write"},
		Audiences: []string{"https://api.example.com"},
		Outcome:   outcome,
		CreatedAt: at,
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ApplyMigrations())
	require.NoError(t, s.Ping(context.Background()))
}

func TestRecordAndGetExchange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	issued := record(domain.OutcomeIssued, now)
	require.NoError(t, s.Exchanges().RecordExchange(ctx, issued))

	got, err := s.Exchanges().GetExchange(ctx, issued.ID)
	require.NoError(t, err)
	require.Equal(t, issued.Subject, got.Subject)
	require.Equal(t, issued.Scopes, got.Scopes)
	require.Equal(t, issued.Audiences, got.Audiences)
	require.Equal(t, domain.OutcomeIssued, got.Outcome)
	require.Empty(t, got.ErrorCode)
	require.Empty(t, got.FailedStep)
	require.True(t, now.Equal(got.CreatedAt))

	failed := record(domain.OutcomeFailed, now.Add(time.Second))
	failed.Scopes = nil
	failed.ErrorCode = "server_error"
	failed.FailedStep = "accept_login"
	require.NoError(t, s.Exchanges().RecordExchange(ctx, failed))

	got, err = s.Exchanges().GetExchange(ctx, failed.ID)
	require.NoError(t, err)
	require.Nil(t, got.Scopes)
	require.Equal(t, "server_error", got.ErrorCode)
	require.Equal(t, "accept_login", got.FailedStep)

	_, err = s.Exchanges().GetExchange(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListAndPruneExchanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	old := record(domain.OutcomeRejected, now.Add(-48*time.Hour))
	mid := record(domain.OutcomeIssued, now.Add(-time.Hour))
	recent := record(domain.OutcomeIssued, now)
	for _, r := range []domain.ExchangeRecord{old, mid, recent} {
		require.NoError(t, s.Exchanges().RecordExchange(ctx, r))
	}

	list, err := s.Exchanges().ListRecentExchanges(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, recent.ID, list[0].ID)
	require.Equal(t, mid.ID, list[1].ID)

	deleted, err := s.Exchanges().DeleteExchangesBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, deleted)

	list, err = s.Exchanges().ListRecentExchanges(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
}
