package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers implement it and
// expose sub-repositories so callers only see the queries they need.
type Store interface {
	Exchanges() Exchanges

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Exchanges is the audit log of token exchange attempts.
type Exchanges interface {
	// RecordExchange inserts one audit row. The ID is provided by the caller.
	RecordExchange(ctx context.Context, rec domain.ExchangeRecord) error

	// GetExchange returns one audit row by id.
	GetExchange(ctx context.Context, id string) (domain.ExchangeRecord, error)

	// ListRecentExchanges returns up to limit rows, newest first.
	ListRecentExchanges(ctx context.Context, limit int) ([]domain.ExchangeRecord, error)

	// DeleteExchangesBefore prunes rows created before cutoff and reports
	// how many were removed.
	DeleteExchangesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
