package tournament

import (
	"context"

	"github.com/park285/swiss-tournament-bot/internal/domain"
)

// Store is the persistence collaborator. WithTx must commit when fn returns
// nil and roll back on error or panic; the Tx must not be used after fn returns.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Close() error
}

// Tx exposes the player and match records inside one transaction.
// GetPlayer returns (nil, nil) for an unknown id.
type Tx interface {
	CreatePlayer(ctx context.Context, name string) (int64, error)
	GetPlayer(ctx context.Context, id int64) (*domain.Player, error)
	CountPlayers(ctx context.Context) (int, error)
	ListPlayers(ctx context.Context) ([]domain.Player, error)
	DeleteAllPlayers(ctx context.Context) error

	RecordMatch(ctx context.Context, winnerID, loserID int64) (int64, error)
	IncrementCounters(ctx context.Context, winnerID, loserID int64) error
	ListMatchesFor(ctx context.Context, playerID int64) ([]domain.Match, error)
	// DeleteAllMatches also zeroes the cached counters.
	DeleteAllMatches(ctx context.Context) error
}
