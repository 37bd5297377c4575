package tournament

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/park285/swiss-tournament-bot/internal/domain"
)

const (
	StandingsDerived = "derived"
	StandingsCached  = "cached"
)

// StandingsStrategy computes the ranked standings from inside a transaction.
type StandingsStrategy interface {
	Name() string
	Standings(ctx context.Context, tx Tx) ([]domain.Standing, error)
}

// NewStandingsStrategy resolves a strategy by name; empty selects derived.
func NewStandingsStrategy(name string) (StandingsStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", StandingsDerived:
		return Derived{}, nil
	case StandingsCached:
		return Cached{}, nil
	default:
		return nil, fmt.Errorf("unknown standings strategy %q", name)
	}
}

// Derived recounts every player's record from the match history.
type Derived struct{}

func (Derived) Name() string { return StandingsDerived }

func (Derived) Standings(ctx context.Context, tx Tx) ([]domain.Standing, error) {
	players, err := tx.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]domain.Standing, 0, len(players))
	for _, p := range players {
		matches, err := tx.ListMatchesFor(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("list matches for %d: %w", p.ID, err)
		}
		wins, losses := 0, 0
		for _, m := range matches {
			switch p.ID {
			case m.WinnerID:
				wins++
			case m.LoserID:
				losses++
			}
		}
		out = append(out, domain.Standing{PlayerID: p.ID, Name: p.Name, Wins: wins, Matches: wins + losses})
	}
	rank(out)
	return out, nil
}

// Cached reads the counters maintained by ReportMatch.
type Cached struct{}

func (Cached) Name() string { return StandingsCached }

func (Cached) Standings(ctx context.Context, tx Tx) ([]domain.Standing, error) {
	players, err := tx.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	out := make([]domain.Standing, 0, len(players))
	for _, p := range players {
		out = append(out, domain.Standing{PlayerID: p.ID, Name: p.Name, Wins: p.Wins, Matches: p.Matches})
	}
	rank(out)
	return out, nil
}

// rank orders by wins descending, then by lower id (registration order).
func rank(s []domain.Standing) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Wins != s[j].Wins {
			return s[i].Wins > s[j].Wins
		}
		return s[i].PlayerID < s[j].PlayerID
	})
}
