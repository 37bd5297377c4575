package tournament

import (
	"fmt"
	"sort"
	"strings"

	"github.com/park285/swiss-tournament-bot/internal/domain"
)

const (
	PairingAdjacent = "adjacent"
	PairingGreedy   = "greedy"
)

// PairingStrategy turns ranked standings into next-round pairings. Callers
// validate the player count first (see checkPairable).
type PairingStrategy interface {
	Name() string
	Pair(standings []domain.Standing) []domain.Pairing
}

func NewPairingStrategy(name string) (PairingStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", PairingAdjacent:
		return Adjacent{}, nil
	case PairingGreedy:
		return Greedy{}, nil
	default:
		return nil, fmt.Errorf("unknown pairing strategy %q", name)
	}
}

func checkPairable(n int) error {
	if n < 2 {
		return ErrNotEnoughPlayers
	}
	if n%2 != 0 {
		return ErrOddPlayerCount
	}
	return nil
}

// Adjacent pairs rank 2k with rank 2k+1.
type Adjacent struct{}

func (Adjacent) Name() string { return PairingAdjacent }

func (Adjacent) Pair(standings []domain.Standing) []domain.Pairing {
	out := make([]domain.Pairing, 0, len(standings)/2)
	for i := 0; i+1 < len(standings); i += 2 {
		out = append(out, pairOf(standings[i], standings[i+1]))
	}
	return out
}

// Greedy accepts candidate pairs in order of combined wins, skipping any pair
// with an already claimed player. Equal weights keep rank-order enumeration.
type Greedy struct{}

func (Greedy) Name() string { return PairingGreedy }

type candidate struct {
	a, b   int
	weight int
}

func (Greedy) Pair(standings []domain.Standing) []domain.Pairing {
	n := len(standings)
	cands := make([]candidate, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			cands = append(cands, candidate{a: i, b: j, weight: standings[i].Wins + standings[j].Wins})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].weight > cands[j].weight })

	claimed := make([]bool, n)
	out := make([]domain.Pairing, 0, n/2)
	for _, c := range cands {
		if len(out) == n/2 {
			break
		}
		if claimed[c.a] || claimed[c.b] {
			continue
		}
		claimed[c.a], claimed[c.b] = true, true
		out = append(out, pairOf(standings[c.a], standings[c.b]))
	}
	return out
}

func pairOf(a, b domain.Standing) domain.Pairing {
	return domain.Pairing{ID1: a.PlayerID, Name1: a.Name, ID2: b.PlayerID, Name2: b.Name}
}
